package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/brojonat/arproxy/service/arweave"
	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr     string
	LogLevel       string
	LogFormat      string
	MetricsEnabled bool

	// Arweave configuration
	ArweaveGatewayURL       string
	ArweaveTimeout          time.Duration
	ArweaveMaxResponseBytes int64

	// MinConfirmations is the number of confirmations a transaction needs
	// before it is reported as CONFIRMED.
	MinConfirmations int64

	// Cache configuration
	CacheBackend string // "none", "memory" or "redis"
	CacheTTL     time.Duration
	RedisAddr    string

	// NATS configuration (optional; empty disables lookup events)
	NATSURL string

	// Tracing configuration (optional; empty disables export)
	OTLPEndpoint string
}

// Load reads configuration from environment variables and validates all fields.
// A .env file in the working directory (or at DOTENV_PATH) is loaded first;
// variables already set in the environment take precedence over it.
// Returns an error if any configuration is missing or invalid.
func Load() (*Config, error) {
	if err := loadDotEnv(getEnvOrDefault("DOTENV_PATH", ".env")); err != nil {
		return nil, err
	}

	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getEnvOrDefault("LOG_FORMAT", "json")

	metricsEnabled, err := parseBool("METRICS_ENABLED", true)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.MetricsEnabled = metricsEnabled

	// Arweave configuration
	cfg.ArweaveGatewayURL = getEnvOrDefault("ARWEAVE_GATEWAY_URL", arweave.DefaultGatewayURL)

	timeout, err := parseDuration("ARWEAVE_TIMEOUT", "30s")
	if err != nil {
		errs = append(errs, err)
	}
	cfg.ArweaveTimeout = timeout

	maxResponseBytes, err := parseInt64("ARWEAVE_MAX_RESPONSE_BYTES", arweave.DefaultMaxResponseBytes)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.ArweaveMaxResponseBytes = maxResponseBytes

	minConfirmations, err := parseInt("MIN_NUMBER_OF_CONFIRMATIONS", 2)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.MinConfirmations = int64(minConfirmations)

	// Cache configuration
	cfg.CacheBackend = getEnvOrDefault("CACHE_BACKEND", "none")
	cacheTTL, err := parseDuration("CACHE_TTL", "1h")
	if err != nil {
		errs = append(errs, err)
	}
	cfg.CacheTTL = cacheTTL
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")

	// Optional integrations
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.ServerAddr == "" {
		errs = append(errs, fmt.Errorf("SERVER_ADDR is required"))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error (got %q)", c.LogLevel))
	}

	switch c.LogFormat {
	case "json", "text", "tint":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be one of json, text, tint (got %q)", c.LogFormat))
	}

	if c.ArweaveGatewayURL == "" {
		errs = append(errs, fmt.Errorf("ARWEAVE_GATEWAY_URL is required"))
	} else if u, err := url.Parse(c.ArweaveGatewayURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("ARWEAVE_GATEWAY_URL must be an http(s) URL (got %q)", c.ArweaveGatewayURL))
	}

	if c.ArweaveTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ARWEAVE_TIMEOUT must be positive"))
	}

	if c.ArweaveMaxResponseBytes <= 0 {
		errs = append(errs, fmt.Errorf("ARWEAVE_MAX_RESPONSE_BYTES must be positive"))
	}

	if c.MinConfirmations < 1 {
		errs = append(errs, fmt.Errorf("MIN_NUMBER_OF_CONFIRMATIONS must be at least 1"))
	}

	switch c.CacheBackend {
	case "none":
	case "memory", "redis":
		if c.CacheTTL <= 0 {
			errs = append(errs, fmt.Errorf("CACHE_TTL must be positive when CACHE_BACKEND is %s", c.CacheBackend))
		}
		if c.CacheBackend == "redis" && c.RedisAddr == "" {
			errs = append(errs, fmt.Errorf("REDIS_ADDR is required when CACHE_BACKEND is redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("CACHE_BACKEND must be one of none, memory, redis (got %q)", c.CacheBackend))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// loadDotEnv loads path into the environment if it exists.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

// parseInt64 parses a 64-bit integer from an environment variable or uses a default.
func parseInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

// parseBool parses a boolean from an environment variable or uses a default.
func parseBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q: %w", key, value, err)
	}
	return result, nil
}
