package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"VALUATION_STORE", "VALUATION_CURRENCY", "VALUATION_QUOTE_WORKERS", "VALUATION_QUOTE_URL", "VALUATION_QUOTE_PATH", "LOG_LEVEL", "LOG_PRETTY"} {
		t.Setenv(key, "")
	}
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, &Config{Store: "file:.valuation", Currency: "EUR", QuoteWorkers: 8, QuotePath: "$.last", LogLevel: "info", LogPretty: true}, cfg)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("VALUATION_STORE", "sqlite:/tmp/v.db")
	t.Setenv("VALUATION_CURRENCY", "usd")
	t.Setenv("VALUATION_QUOTE_WORKERS", "2")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_PRETTY", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite:/tmp/v.db", cfg.Store)
	assert.Equal(t, "USD", cfg.Currency)
	assert.Equal(t, 2, cfg.QuoteWorkers)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.LogPretty)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("VALUATION_CURRENCY", "EURO")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("VALUATION_CURRENCY", "EUR")
	t.Setenv("VALUATION_QUOTE_WORKERS", "0")
	_, err = Load()
	assert.Error(t, err)

	// Unparsable values fall back to the default.
	t.Setenv("VALUATION_QUOTE_WORKERS", "many")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.QuoteWorkers)
}
