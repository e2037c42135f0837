package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/adapters/logger" // Import the logger package for LogLevel
)

// Config holds all application configuration.
type Config struct {
	// Database
	DBPath string

	// Logging
	LogLevel  logger.LogLevel // Use the LogLevel type from the logger adapter
	LogFormat string          // "text" or "json"

	// HTTP API
	HTTPAddr        string
	ShutdownTimeout time.Duration

	// Reveal scheduler
	TickSchedule string // Cron spec with optional seconds field

	// Engine
	PolicyFile    string // YAML policy; missing file means built-in defaults
	RandomSeed    int64  // 0 seeds from the clock
	DecimalPlaces int32  // Currency precision of payouts and trades
	SettleAfter   time.Duration

	// Demo sessions
	DemoDuration   time.Duration
	DemoTargetGain decimal.Decimal
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/yield_engine.db")

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "text"))
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, "LOG_FORMAT must be 'text' or 'json'")
	}

	// HTTP API
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")
	shutdownSeconds, err := getEnvAsIntRequired("SHUTDOWN_TIMEOUT_SECONDS", 10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid SHUTDOWN_TIMEOUT_SECONDS: %v", err))
	} else if shutdownSeconds <= 0 {
		errs = append(errs, "SHUTDOWN_TIMEOUT_SECONDS must be positive")
	}
	cfg.ShutdownTimeout = time.Duration(shutdownSeconds) * time.Second

	// Reveal scheduler
	cfg.TickSchedule = getEnv("TICK_SCHEDULE", "@every 1s")

	// Engine
	cfg.PolicyFile = getEnv("POLICY_FILE", "./config/policy.yaml")

	cfg.RandomSeed, err = getEnvAsInt64Required("RANDOM_SEED", 0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RANDOM_SEED: %v", err))
	}

	places, err := getEnvAsIntRequired("DECIMAL_PLACES", 2)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DECIMAL_PLACES: %v", err))
	} else if places < 0 || places > 8 {
		errs = append(errs, "DECIMAL_PLACES must be between 0 and 8")
	}
	cfg.DecimalPlaces = int32(places)

	settleHours, err := getEnvAsFloatRequired("SETTLE_AFTER_HOURS", 24)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid SETTLE_AFTER_HOURS: %v", err))
	} else if settleHours <= 0 {
		errs = append(errs, "SETTLE_AFTER_HOURS must be positive")
	}
	cfg.SettleAfter = time.Duration(settleHours * float64(time.Hour))

	// Demo sessions
	demoSeconds, err := getEnvAsIntRequired("DEMO_DURATION_SECONDS", 240)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DEMO_DURATION_SECONDS: %v", err))
	} else if demoSeconds <= 0 {
		errs = append(errs, "DEMO_DURATION_SECONDS must be positive")
	}
	cfg.DemoDuration = time.Duration(demoSeconds) * time.Second

	cfg.DemoTargetGain, err = decimal.NewFromString(getEnv("DEMO_TARGET_GAIN", "0.25"))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DEMO_TARGET_GAIN: %v", err))
	} else if cfg.DemoTargetGain.IsNegative() {
		errs = append(errs, "DEMO_TARGET_GAIN cannot be negative")
	}

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsInt64Required(key string, defaultValue int64) (int64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}
