// Package cmd implements the ragchat command line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ragchat",
	Short: "Retrieval-augmented chat backend",
	Long: `ragchat answers questions over a user's documents and conversation
history. Documents are stored as embedded text chunks in PostgreSQL with
pgvector; each question retrieves the most relevant chunks, blends them with
recent dialogue and prompts the model with the fused context.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var debug bool

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
