package main

import (
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/petedillo/ollama-chat-api/internal/adapter/telegram"
	"github.com/petedillo/ollama-chat-api/internal/usecase/chat"
)

var telegramCmd = &cobra.Command{
	Use:   "telegram",
	Short: "Run the Telegram bot",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		shutdown, err := setupTelemetry(ctx, cfg)
		if err != nil {
			return err
		}
		defer flushTelemetry(shutdown)

		store, closeStore, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := closeStore(); err != nil {
				log.Printf("failed to close store: %v", err)
			}
		}()

		chatSvc := chat.NewService(store, newOllamaClient(cfg))
		bot, err := telegram.NewBot(cfg, chatSvc)
		if err != nil {
			return err
		}

		if err := bot.Run(ctx); err != nil {
			if ctx.Err() != nil {
				log.Printf("shutdown: %v", err)
				return nil
			}
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(telegramCmd)
}
