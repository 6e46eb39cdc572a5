package config

import (
	"os"
	"strconv"
	"time"
)

type AppConfig struct {
	// Server endpoints
	APIBaseURL string
	WSURL      string

	// Default credentials for non-interactive use
	Email    string
	Password string

	// HTTP
	RequestTimeout time.Duration

	// Session
	TokenCheckInterval time.Duration

	// Realtime
	ReconnectBaseDelay   time.Duration
	MaxReconnectAttempts int
	PingInterval         time.Duration

	// Notification cache
	ReconcileDelay time.Duration
	ListStaleAfter time.Duration
}

// Load loads environment variables into AppConfig.
func Load() AppConfig {
	return AppConfig{
		APIBaseURL: getEnv("CODEPANEL_API_URL", "http://localhost:8080"),
		WSURL:      getEnv("CODEPANEL_WS_URL", "ws://localhost:8080/ws"),

		Email:    getEnv("CODEPANEL_EMAIL", ""),
		Password: getEnv("CODEPANEL_PASSWORD", ""),

		RequestTimeout: getEnvDuration("CODEPANEL_REQUEST_TIMEOUT", 15*time.Second),

		TokenCheckInterval: getEnvDuration("CODEPANEL_TOKEN_CHECK_INTERVAL", 60*time.Second),

		ReconnectBaseDelay:   getEnvDuration("CODEPANEL_RECONNECT_BASE_DELAY", 3*time.Second),
		MaxReconnectAttempts: getEnvInt("CODEPANEL_MAX_RECONNECT_ATTEMPTS", 5),
		PingInterval:         getEnvDuration("CODEPANEL_PING_INTERVAL", 30*time.Second),

		ReconcileDelay: getEnvDuration("CODEPANEL_RECONCILE_DELAY", 500*time.Millisecond),
		ListStaleAfter: getEnvDuration("CODEPANEL_LIST_STALE_AFTER", 2*time.Minute),
	}
}

// --- Helper functions ---

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
