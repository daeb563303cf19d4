// Package config builds client configuration from environment variables so
// the composition root stays lean.
package config

import (
	"os"
	"strconv"
	"time"
)

// Client captures configuration for the whole resilience layer.
type Client struct {
	BaseURL string

	// Token lifecycle
	RefreshThreshold time.Duration

	// Security codec
	StalenessWindow time.Duration

	// Session guard
	MaxSessionDuration   time.Duration
	MaxInactivity        time.Duration
	WarningBeforeTimeout time.Duration

	// Rate limiter
	SweepInterval time.Duration

	// Pipeline defaults
	RequestTimeout time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	// GlobalRPS caps outbound requests per second across all endpoints.
	// Zero disables the global throttle.
	GlobalRPS float64

	// Storage
	StorePath string
	// DeviceSecret seeds the at-rest key derivation for the secure store.
	DeviceSecret string

	LogFilePath string
}

// Defaults mirror the timeouts the backend contract assumes.
const (
	DefaultRefreshThreshold     = 5 * time.Minute
	DefaultStalenessWindow      = 5 * time.Minute
	DefaultMaxSessionDuration   = 24 * time.Hour
	DefaultMaxInactivity        = 30 * time.Minute
	DefaultWarningBeforeTimeout = 5 * time.Minute
	DefaultSweepInterval        = 5 * time.Minute
	DefaultRequestTimeout       = 30 * time.Second
	DefaultRetryDelay           = time.Second
)

// FromEnv builds a Client config from environment variables.
func FromEnv() Client {
	cfg := Client{
		BaseURL:              getenv("AEGIS_BASE_URL", "http://localhost:9000"),
		RefreshThreshold:     duration("AEGIS_REFRESH_THRESHOLD", DefaultRefreshThreshold),
		StalenessWindow:      duration("AEGIS_STALENESS_WINDOW", DefaultStalenessWindow),
		MaxSessionDuration:   duration("AEGIS_MAX_SESSION_DURATION", DefaultMaxSessionDuration),
		MaxInactivity:        duration("AEGIS_MAX_INACTIVITY", DefaultMaxInactivity),
		WarningBeforeTimeout: duration("AEGIS_TIMEOUT_WARNING", DefaultWarningBeforeTimeout),
		SweepInterval:        duration("AEGIS_SWEEP_INTERVAL", DefaultSweepInterval),
		RequestTimeout:       duration("AEGIS_REQUEST_TIMEOUT", DefaultRequestTimeout),
		MaxRetries:           integer("AEGIS_MAX_RETRIES", 3),
		RetryDelay:           duration("AEGIS_RETRY_DELAY", DefaultRetryDelay),
		GlobalRPS:            float("AEGIS_GLOBAL_RPS", 0),
		StorePath:            getenv("AEGIS_STORE_PATH", "aegis.db"),
		DeviceSecret:         getenv("AEGIS_DEVICE_SECRET", ""),
		LogFilePath:          os.Getenv("AEGIS_LOG_FILE"),
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func integer(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func float(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
