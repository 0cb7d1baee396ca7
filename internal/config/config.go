package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults;
// an optional TOML file (STUDIO_CONFIG) provides a base layer that env
// vars always override.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// CORS (the API fronts a browser-rendered site)
	AllowedOrigins []string

	// Firebase Realtime Database
	FirebaseURL       string // e.g. https://myproject-default-rtdb.firebaseio.com
	FirebaseAuthToken string // database secret or OAuth access token
	UseFirebase       bool   // false => in-process store (local dev, tests)

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Session / identity
	SessionSecret       string        // HS256 secret for ID-token verification
	BanMarkerPath       string        // SQLite file for the durable banned marker
	ProfileEditCooldown time.Duration // 0 disables the cooldown
}

// Load reads configuration from environment variables with defaults.
// If STUDIO_CONFIG points at a TOML file, it is loaded first and acts
// as the default layer.
func Load() *Config {
	if path := os.Getenv("STUDIO_CONFIG"); path != "" {
		// Errors here are non-fatal: env + defaults still apply.
		_ = applyFile(path)
	}

	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"*"}),

		FirebaseURL:       getEnv("FIREBASE_DATABASE_URL", ""),
		FirebaseAuthToken: getEnv("FIREBASE_AUTH_TOKEN", ""),
		UseFirebase:       getEnv("USE_FIREBASE", "true") == "true",

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		CacheTTL: getEnvDuration("CACHE_TTL", 5*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		SessionSecret:       getEnv("SESSION_SECRET", "studio-default-dev-secret-change-me"),
		BanMarkerPath:       getEnv("BAN_MARKER_PATH", "studio-local.db"),
		ProfileEditCooldown: getEnvDuration("PROFILE_EDIT_COOLDOWN", 0),
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

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
