// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
// The scheduler and server receive this object explicitly; no component reads
// process-wide mutable settings at runtime.
type Config struct {
	DataDir           string // Base directory for the portfolio database (always absolute)
	Port              int
	LogLevel          string
	DevMode           bool
	CORSAllowedOrigin string

	// Market calendar and job timing
	MarketTimezone      string // IANA zone the trading calendar runs in (e.g. "America/New_York")
	QuoteRefreshMinutes int    // Live quote refresh cadence during market hours
	EODHour             int    // Hour (in MarketTimezone) for the end-of-day snapshot job
	EODMinute           int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("PORTFOLIO_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:             absDataDir,
		Port:                getEnvAsInt("GO_PORT", 8001),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		DevMode:             getEnvAsBool("DEV_MODE", false),
		CORSAllowedOrigin:   getEnv("CORS_ALLOWED_ORIGIN", "*"),
		MarketTimezone:      getEnv("MARKET_TIMEZONE", "America/New_York"),
		QuoteRefreshMinutes: getEnvAsInt("QUOTE_REFRESH_MINUTES", 15),
		EODHour:             getEnvAsInt("EOD_HOUR", 16),
		EODMinute:           getEnvAsInt("EOD_MINUTE", 30),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.MarketTimezone); err != nil {
		return fmt.Errorf("invalid market timezone %q: %w", c.MarketTimezone, err)
	}
	if c.QuoteRefreshMinutes <= 0 {
		return fmt.Errorf("quote refresh interval must be positive, got %d", c.QuoteRefreshMinutes)
	}
	if c.EODHour < 0 || c.EODHour > 23 || c.EODMinute < 0 || c.EODMinute > 59 {
		return fmt.Errorf("invalid EOD schedule %02d:%02d", c.EODHour, c.EODMinute)
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
