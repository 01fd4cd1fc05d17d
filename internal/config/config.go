package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	SequenceBackendStore = "store"
	SequenceBackendRedis = "redis"

	SequenceStrategyAtomic     = "atomic"
	SequenceStrategyOptimistic = "optimistic"
)

type Config struct {
	AppEnv        string `envconfig:"APP_ENV" default:"development"`
	Port          string `envconfig:"PORT" default:"8080"`
	AllowedOrigin string `envconfig:"ALLOWED_ORIGIN" default:"http://127.0.0.1:3000"`
	LogFormat     string `envconfig:"LOG_FORMAT" default:"text"`

	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	AuthSecret     string        `envconfig:"AUTH_SECRET"`
	AccessTokenTTL time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"8h"`

	SequenceBackend    string          `envconfig:"SEQUENCE_BACKEND" default:"store"`
	SequenceStrategy   string          `envconfig:"SEQUENCE_STRATEGY" default:"atomic"`
	SequenceMaxRetries int             `envconfig:"SEQUENCE_MAX_RETRIES" default:"5"`
	AmountCeiling      decimal.Decimal `envconfig:"AMOUNT_CEILING" default:"99999999999999999999999999999999999999.99"`
	ReferenceCacheTTL  time.Duration   `envconfig:"REFERENCE_CACHE_TTL" default:"5m"`
	TimeFallback       string          `envconfig:"TIME_FALLBACK" default:"23:59"`
	ShutdownTimeout    time.Duration   `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Load reads the environment. Secrets have no defaults; the caller decides
// whether an empty secret is fatal.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)
	cfg.SequenceBackend = strings.ToLower(strings.TrimSpace(cfg.SequenceBackend))
	cfg.SequenceStrategy = strings.ToLower(strings.TrimSpace(cfg.SequenceStrategy))

	switch cfg.SequenceBackend {
	case SequenceBackendStore:
	case SequenceBackendRedis:
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return Config{}, errors.New("SEQUENCE_BACKEND=redis requires REDIS_ADDR")
		}
	default:
		return Config{}, fmt.Errorf("unknown SEQUENCE_BACKEND %q", cfg.SequenceBackend)
	}
	if cfg.SequenceStrategy != SequenceStrategyAtomic && cfg.SequenceStrategy != SequenceStrategyOptimistic {
		return Config{}, fmt.Errorf("unknown SEQUENCE_STRATEGY %q", cfg.SequenceStrategy)
	}
	if cfg.SequenceMaxRetries < 1 {
		return Config{}, errors.New("SEQUENCE_MAX_RETRIES must be at least 1")
	}
	if !cfg.AmountCeiling.IsPositive() {
		return Config{}, errors.New("AMOUNT_CEILING must be positive")
	}
	if cfg.AccessTokenTTL <= 0 {
		return Config{}, errors.New("ACCESS_TOKEN_TTL must be positive")
	}
	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// NewLogger returns a JSON logger when LOG_FORMAT=json and a text logger
// otherwise.
func NewLogger(c Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: c.IsProduction()}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
