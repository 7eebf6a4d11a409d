// Package config reads the configuration of the pmv command from the
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Store        string // Store is the storage spec, e.g. "sqlite:valuation.db".
	Currency     string // Currency is given to new portfolios.
	QuoteWorkers int
	// QuoteURL and QuotePath configure the "json" quote provider, see
	// quote.JSONProvider. An empty QuoteURL disables it.
	QuoteURL  string
	QuotePath string
	LogLevel  string
	LogPretty bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Store:        getEnv("VALUATION_STORE", "file:.valuation"),
		Currency:     strings.ToUpper(getEnv("VALUATION_CURRENCY", "EUR")),
		QuoteWorkers: getEnvAsInt("VALUATION_QUOTE_WORKERS", 8),
		QuoteURL:     getEnv("VALUATION_QUOTE_URL", ""),
		QuotePath:    getEnv("VALUATION_QUOTE_PATH", "$.last"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogPretty:    getEnvAsBool("LOG_PRETTY", true),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Store == "" {
		return fmt.Errorf("VALUATION_STORE is required")
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("VALUATION_CURRENCY must be an ISO 4217 code, got %q", c.Currency)
	}
	if c.QuoteWorkers < 1 {
		return fmt.Errorf("VALUATION_QUOTE_WORKERS must be positive, got %d", c.QuoteWorkers)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
