package api

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the server configuration, loaded from environment variables.
type Config struct {
	ListenAddr      string
	StaticDir       string
	DBPath          string
	ShutdownTimeout time.Duration
	LogFormat       string // "json" (default) or "text"
	LogLevel        string // "debug", "info" (default), "warn", "error"

	AdminEmail    string // seeded admin account; empty disables seeding
	AdminPassword string

	RateLimitAuth int   // /api/auth/* per IP per minute (default: 10)
	MaxBodyBytes  int64 // request body limit (default: 1 MiB)

	CORSAllowedOrigins []string // allowed origins; empty = disabled

	WebhookURL    string // record.created notifications; empty disables
	WebhookSecret string
}

// LoadConfig reads configuration from environment variables with sensible defaults.
func LoadConfig() Config {
	cfg := Config{
		ListenAddr:      ":3000",
		StaticDir:       ".",
		DBPath:          "./data/imtti.db",
		ShutdownTimeout: 30 * time.Second,
		LogFormat:       "json",
		LogLevel:        "info",
		RateLimitAuth:   10,
		MaxBodyBytes:    1 << 20,
	}

	// PORT is what most hosting platforms inject.
	if v := os.Getenv("PORT"); v != "" {
		cfg.ListenAddr = ":" + v
	}
	if v := os.Getenv("IMTTI_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("IMTTI_STATIC_DIR"); v != "" {
		cfg.StaticDir = v
	}
	if v := os.Getenv("IMTTI_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("IMTTI_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ShutdownTimeout = d
		}
	}
	if v := os.Getenv("IMTTI_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("IMTTI_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	cfg.AdminEmail = os.Getenv("IMTTI_ADMIN_EMAIL")
	cfg.AdminPassword = os.Getenv("IMTTI_ADMIN_PASSWORD")

	if v := os.Getenv("IMTTI_RATE_LIMIT_AUTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimitAuth = n
		}
	}
	if v := os.Getenv("IMTTI_MAX_BODY_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxBodyBytes = n
		}
	}

	if v := os.Getenv("IMTTI_CORS_ALLOWED_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
			}
		}
	}

	cfg.WebhookURL = os.Getenv("IMTTI_WEBHOOK_URL")
	cfg.WebhookSecret = os.Getenv("IMTTI_WEBHOOK_SECRET")

	return cfg
}
