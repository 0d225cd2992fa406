package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

type Config struct {
	Storage      string
	DBSource     string
	SQLitePath   string
	Port         string
	Env          string
	LogLevel     string
	QueryTimeout time.Duration
	TypesFile    string
}

// Load reads the environment, after merging in a .env file when one exists.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	timeout, err := time.ParseDuration(getEnv("QUERY_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("QUERY_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Storage:      getEnv("LEDGER_STORAGE", StorageMemory),
		DBSource:     os.Getenv("DB_SOURCE"),
		SQLitePath:   getEnv("SQLITE_PATH", "./data/ledger.db"),
		Port:         getEnv("SERVER_PORT", "8080"),
		Env:          getEnv("ENVIRONMENT", "development"),
		LogLevel:     os.Getenv("LOG_LEVEL"),
		QueryTimeout: timeout,
		TypesFile:    os.Getenv("LEDGER_TYPES_FILE"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports missing or inconsistent settings.
func (c *Config) Validate() error {
	switch c.Storage {
	case StorageMemory:
	case StoragePostgres:
		if c.DBSource == "" {
			return fmt.Errorf("DB_SOURCE environment variable is required for %s storage", c.Storage)
		}
	case StorageSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH environment variable is required for %s storage", c.Storage)
		}
	default:
		return fmt.Errorf("LEDGER_STORAGE must be one of %s, %s or %s, got %q",
			StorageMemory, StoragePostgres, StorageSQLite, c.Storage)
	}

	if c.QueryTimeout <= 0 {
		return fmt.Errorf("QUERY_TIMEOUT must be positive, got %s", c.QueryTimeout)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}
