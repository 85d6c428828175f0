package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/petedillo/ollama-chat-api/internal/adapter/ollama"
)

const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

type Config struct {
	Port int

	OllamaURL     string
	OllamaModel   string
	OllamaTimeout time.Duration
	Generation    ollama.GenerationOptions

	StoreDriver  string
	DatabasePath string

	RateLimitRPS   float64
	RateLimitBurst int

	TelegramToken  string
	AdminUserIDs   []int64
	AllowedUserIDs []int64

	OTelEnabled  bool
	OTelEndpoint string
}

// Load reads the dotenv file at path (variables already set in the
// environment win) and builds the configuration from the environment.
func Load(path string) (Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			log.Printf("could not read %s: %v", path, err)
		}
	}

	cfg := Config{
		Port:           getenvIntDefault("PORT", 3000),
		OllamaURL:      getenvDefault("OLLAMA_API_URL", ollama.DefaultBaseURL),
		OllamaModel:    getenvDefault("OLLAMA_MODEL", ollama.DefaultModel),
		OllamaTimeout:  time.Duration(getenvIntDefault("OLLAMA_TIMEOUT_SECONDS", 30)) * time.Second,
		Generation:     ollama.DefaultOptions(),
		StoreDriver:    strings.ToLower(getenvDefault("STORE_DRIVER", StoreSQLite)),
		DatabasePath:   getenvDefault("DATABASE_PATH", "data/chat.db"),
		RateLimitRPS:   getenvFloatDefault("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getenvIntDefault("RATE_LIMIT_BURST", 10),
		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		OTelEnabled:    getenvBoolDefault("OTEL_ENABLED", false),
		OTelEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	cfg.AdminUserIDs = parseIDs(os.Getenv("ADMIN_USER_IDS"))
	cfg.AllowedUserIDs = parseIDs(os.Getenv("ALLOWED_TELEGRAM_USER_IDS"))

	if cfg.StoreDriver != StoreSQLite && cfg.StoreDriver != StoreMemory {
		return cfg, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	if file := os.Getenv("GENERATION_OPTIONS_FILE"); file != "" {
		opts, err := loadGenerationOptions(file)
		if err != nil {
			return cfg, err
		}
		cfg.Generation = cfg.Generation.Merge(opts)
	}

	return cfg, nil
}

// RequireTelegram checks the settings the Telegram bot cannot run without.
func (c Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return errors.New("telegram token is required")
	}
	return nil
}

func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

type optionsFile struct {
	Generation ollama.GenerationOptions `toml:"generation"`
}

func loadGenerationOptions(path string) (ollama.GenerationOptions, error) {
	var f optionsFile
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return ollama.GenerationOptions{}, fmt.Errorf("read generation options: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		log.Printf("ignoring unknown keys in %s: %v", path, undecoded)
	}
	return f.Generation, nil
}

func parseIDs(raw string) []int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			log.Printf("skipping user id %q: %v", p, err)
			continue
		}
		ids = append(ids, v)
	}
	return ids
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvIntDefault(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid int for %s=%q, using default %d", key, v, def)
		return def
	}
	return n
}

func getenvFloatDefault(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("invalid number for %s=%q, using default %g", key, v, def)
		return def
	}
	return f
}

func getenvBoolDefault(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("invalid bool for %s=%q, using default %t", key, v, def)
		return def
	}
	return b
}
