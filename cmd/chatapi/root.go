package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/petedillo/ollama-chat-api/internal/adapter/memory"
	"github.com/petedillo/ollama-chat-api/internal/adapter/ollama"
	"github.com/petedillo/ollama-chat-api/internal/adapter/sqlite"
	"github.com/petedillo/ollama-chat-api/internal/config"
	"github.com/petedillo/ollama-chat-api/internal/domain"
	"github.com/petedillo/ollama-chat-api/internal/telemetry"
)

const serviceName = "ollama-chat-api"

var (
	envFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "chatapi",
	Short: "Chat sessions backed by an Ollama server",
	Long: `chatapi stores chat sessions and relays each conversation to an Ollama
server. It serves a JSON API over HTTP and can run as a Telegram bot.`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.Load(envFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file to load before reading the environment")
}

func newOllamaClient(cfg config.Config) *ollama.Client {
	return ollama.NewClient(ollama.Config{
		BaseURL:      cfg.OllamaURL,
		Model:        cfg.OllamaModel,
		ChatTimeout:  cfg.OllamaTimeout,
		TitleTimeout: cfg.OllamaTimeout,
		Options:      cfg.Generation,
	})
}

// openStore returns the configured session store and a func releasing it.
func openStore(cfg config.Config) (domain.SessionStore, func() error, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		log.Printf("using in-memory session store")
		return memory.NewStore(), func() error { return nil }, nil
	default:
		store, err := sqlite.Open(cfg.DatabasePath)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("using sqlite session store at %s", cfg.DatabasePath)
		return store, store.Close, nil
	}
}

func setupTelemetry(ctx context.Context, cfg config.Config) (telemetry.ShutdownFunc, error) {
	return telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.OTelEnabled,
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: serviceName,
		Version:     Version,
	})
}

func flushTelemetry(shutdown telemetry.ShutdownFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Printf("failed to flush traces: %v", err)
	}
}
