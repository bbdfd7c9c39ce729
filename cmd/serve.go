package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cmazet/ragchat/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	a.logger.Info("configuration loaded", "config", a.cfg)

	server := api.NewServer(a.engine, a.conversations, a.knowledge,
		a.client, a.activity, a.client.Budget(), a.pool, a.logger)

	if err := server.Run(ctx, a.cfg.ListenAddr); err != nil {
		return fmt.Errorf("HTTP server: %w", err)
	}
	return nil
}
