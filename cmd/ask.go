package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	askUser      string
	askNoPublic  bool
	askShowChunk bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question from the command line",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(strings.Join(args, " "))
	},
}

func init() {
	askCmd.Flags().StringVar(&askUser, "user", "cli", "user identity for retrieval and history")
	askCmd.Flags().BoolVar(&askNoPublic, "no-public", false, "exclude public documents from retrieval")
	askCmd.Flags().BoolVar(&askShowChunk, "show-context", false, "print the fused context entries")
	rootCmd.AddCommand(askCmd)
}

func runAsk(question string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	answer, err := a.engine.Ask(ctx, askUser, question, !askNoPublic)
	if err != nil {
		return err
	}

	fmt.Println(answer.Answer)

	if askShowChunk {
		fmt.Println()
		for i, c := range answer.Chunks {
			fmt.Printf("--- context %d (%s, similarity %.3f) ---\n", i+1, c.Type, c.OriginalSimilarity)
			fmt.Println(c.ContentPreview)
		}
	}
	if len(answer.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		seen := make(map[string]bool)
		for _, s := range answer.Sources {
			if !seen[s.Filename] {
				seen[s.Filename] = true
				fmt.Printf("  %s\n", s.Filename)
			}
		}
	}
	return nil
}
