package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Persistence backend: REST document store when RESTBackendURL is set,
	// otherwise a local JSON file.
	RESTBackendURL string
	RESTAPIKey     string
	DataFile       string

	// HTTP client (REST backend)
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache (REST backend read cache)
	CacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Unlock sessions (PIN lock)
	JWTSecret string
	UnlockTTL time.Duration

	// CORS: origin of the browser UI collaborator
	AllowedOrigins []string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		RESTBackendURL: getEnv("REST_BACKEND_URL", ""),
		RESTAPIKey:     getEnv("REST_BACKEND_API_KEY", ""),
		DataFile:       getEnv("DATA_FILE", "grana-data.json"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		CacheTTL: getEnvDuration("CACHE_TTL", 1*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		JWTSecret: getEnv("JWT_SECRET", "grana-default-dev-secret-change-me"),
		UnlockTTL: getEnvDuration("UNLOCK_TTL", 30*time.Minute),

		AllowedOrigins: []string{getEnv("ALLOWED_ORIGIN", "*")},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
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
