package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// fileConfig mirrors Config for TOML decoding. Only fields that make
// sense in a checked-in config file are included; secrets stay in env.
type fileConfig struct {
	Port           int      `toml:"port"`
	LogLevel       string   `toml:"log_level"`
	AllowedOrigins []string `toml:"allowed_origins"`

	FirebaseURL string `toml:"firebase_database_url"`
	UseFirebase *bool  `toml:"use_firebase"`

	HTTPTimeout    string `toml:"http_timeout"`
	MaxRetries     int    `toml:"max_retries"`
	InitialBackoff string `toml:"initial_backoff"`
	MaxConcurrency int    `toml:"max_concurrency"`

	CacheTTL     string `toml:"cache_ttl"`
	OTLPEndpoint string `toml:"otlp_endpoint"`

	BanMarkerPath       string `toml:"ban_marker_path"`
	ProfileEditCooldown string `toml:"profile_edit_cooldown"`
}

// applyFile decodes a TOML config file and projects its values into the
// environment for keys that are not already set. Load then reads the
// environment as usual, so precedence is env > file > default.
func applyFile(path string) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}

	setIfMissing := func(key, value string) {
		if value != "" && os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}

	if fc.Port != 0 {
		setIfMissing("PORT", strconv.Itoa(fc.Port))
	}
	setIfMissing("LOG_LEVEL", fc.LogLevel)
	if len(fc.AllowedOrigins) > 0 {
		setIfMissing("ALLOWED_ORIGINS", strings.Join(fc.AllowedOrigins, ","))
	}
	setIfMissing("FIREBASE_DATABASE_URL", fc.FirebaseURL)
	if fc.UseFirebase != nil {
		setIfMissing("USE_FIREBASE", strconv.FormatBool(*fc.UseFirebase))
	}
	setIfMissing("HTTP_TIMEOUT", fc.HTTPTimeout)
	if fc.MaxRetries != 0 {
		setIfMissing("MAX_RETRIES", strconv.Itoa(fc.MaxRetries))
	}
	setIfMissing("INITIAL_BACKOFF", fc.InitialBackoff)
	if fc.MaxConcurrency != 0 {
		setIfMissing("MAX_CONCURRENCY", strconv.Itoa(fc.MaxConcurrency))
	}
	setIfMissing("CACHE_TTL", fc.CacheTTL)
	setIfMissing("OTEL_EXPORTER_OTLP_ENDPOINT", fc.OTLPEndpoint)
	setIfMissing("BAN_MARKER_PATH", fc.BanMarkerPath)
	setIfMissing("PROFILE_EDIT_COOLDOWN", fc.ProfileEditCooldown)

	return nil
}
