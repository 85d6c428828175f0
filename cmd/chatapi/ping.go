package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check whether the Ollama server answers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), startupPing)
		defer cancel()

		if !newOllamaClient(cfg).Ping(ctx) {
			return fmt.Errorf("ollama is not reachable at %s", cfg.OllamaURL)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ollama is reachable at %s\n", cfg.OllamaURL)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pingCmd)
}
