package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/petedillo/ollama-chat-api/internal/adapter/httpapi"
	"github.com/petedillo/ollama-chat-api/internal/usecase/chat"
)

const (
	shutdownTimeout = 5 * time.Second
	startupPing     = 5 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat API over HTTP",
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
		logBackendStatus(ctx, chatSvc)

		server := httpapi.NewServer(httpapi.Config{
			Addr:           cfg.Addr(),
			RateLimitRPS:   cfg.RateLimitRPS,
			RateLimitBurst: cfg.RateLimitBurst,
		}, chatSvc)

		if err := server.Run(ctx); err != nil {
			if ctx.Err() != nil {
				log.Printf("shutdown: %v", err)
				return nil
			}
			return err
		}
		return nil
	},
}

func logBackendStatus(ctx context.Context, chatSvc *chat.Service) {
	ctx, cancel := context.WithTimeout(ctx, startupPing)
	defer cancel()
	if chatSvc.Healthy(ctx) {
		log.Printf("ollama is reachable at %s (model %s)", cfg.OllamaURL, cfg.OllamaModel)
		return
	}
	log.Printf("ollama is not reachable at %s, chat requests will fail until it is", cfg.OllamaURL)
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
