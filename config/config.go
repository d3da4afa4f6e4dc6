package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config carries everything the binary needs from its environment.
type Config struct {
	SheetID         string        `env:"SHEET_ID"`
	Worksheet       string        `env:"WORKSHEET"`
	CredentialsFile string        `env:"GOOGLE_CREDENTIALS_FILE"`
	ListenAddr      string        `env:"LISTEN_ADDR" envDefault:":8080"`
	SnapshotTTL     time.Duration `env:"SNAPSHOT_TTL" envDefault:"30s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads optional dotenv files, then the process environment.
func Load() (Config, error) {
	for _, file := range []string{".env", ".env.local"} {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return Config{}, fmt.Errorf("config: load %s: %w", file, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse environment: %w", err)
	}
	if cfg.SheetID == "" {
		return Config{}, fmt.Errorf("config: SHEET_ID is required")
	}
	if cfg.CredentialsFile == "" {
		return Config{}, fmt.Errorf("config: GOOGLE_CREDENTIALS_FILE is required")
	}
	return cfg, nil
}
