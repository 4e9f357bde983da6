package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const minOperatorTokenLength = 16

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	AppURL      string `env:"APP_URL" default:"http://localhost:8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	LiveKitURL       string `env:"LIVEKIT_URL"`
	LiveKitAPIKey    string `env:"LIVEKIT_API_KEY"`
	LiveKitAPISecret string `env:"LIVEKIT_API_SECRET"`

	OperatorAPIToken string `env:"OPERATOR_API_TOKEN"`

	// Comma-separated origins allowed to open subscriber WebSockets besides APP_URL.
	WebSocketAllowedOrigins string `env:"WS_ALLOWED_ORIGINS"`
	// Use the Redis broker for fan-out so every instance reaches its own subscribers.
	WebSocketRedisBroker bool `env:"WS_REDIS_BROKER" default:"false"`

	DebounceWindow    time.Duration `env:"DEBOUNCE_WINDOW" default:"60s"`
	MarkerTTL         time.Duration `env:"MARKER_TTL" default:"1h"`
	EgressStopTimeout time.Duration `env:"EGRESS_STOP_TIMEOUT" default:"10s"`
	WebhookDedupTTL   time.Duration `env:"WEBHOOK_DEDUP_TTL" default:"10m"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// IsProduction reports whether APP_ENV selects production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// AllowedOrigins splits WS_ALLOWED_ORIGINS, dropping empty entries.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for o := range strings.SplitSeq(c.WebSocketAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func validate(cfg *Config) error {
	required := []struct{ name, value string }{
		{"DATABASE_URL", cfg.DatabaseURL},
		{"REDIS_URL", cfg.RedisURL},
		{"LIVEKIT_URL", cfg.LiveKitURL},
		{"LIVEKIT_API_KEY", cfg.LiveKitAPIKey},
		{"LIVEKIT_API_SECRET", cfg.LiveKitAPISecret},
		{"OPERATOR_API_TOKEN", cfg.OperatorAPIToken},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s is required", r.name)
		}
	}

	if len(cfg.OperatorAPIToken) < minOperatorTokenLength {
		return fmt.Errorf("OPERATOR_API_TOKEN must be at least %d characters", minOperatorTokenLength)
	}

	if cfg.DebounceWindow <= 0 {
		return errors.New("DEBOUNCE_WINDOW must be positive")
	}
	// A marker that expires before its reconciliation fires would read as superseded.
	if cfg.MarkerTTL <= cfg.DebounceWindow {
		return fmt.Errorf("MARKER_TTL (%s) must exceed DEBOUNCE_WINDOW (%s)", cfg.MarkerTTL, cfg.DebounceWindow)
	}
	if cfg.EgressStopTimeout <= 0 {
		return errors.New("EGRESS_STOP_TIMEOUT must be positive")
	}
	if cfg.WebhookDedupTTL <= 0 {
		return errors.New("WEBHOOK_DEDUP_TTL must be positive")
	}

	if cfg.IsProduction() {
		if mode := sslMode(cfg.DatabaseURL); mode == "disable" || mode == "allow" {
			return fmt.Errorf("DATABASE_URL uses sslmode=%s which is not allowed in production", mode)
		}
	}

	return nil
}

func sslMode(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Query().Get("sslmode"))
}
