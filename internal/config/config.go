package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"authservice/internal/settings"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPAddr              = ":8080"
	defaultDatabaseURL           = "authservice.db"
	defaultJWTSecret             = "change-me-jwt-secret"
	defaultAccessTokenLifetime   = "30s"
	defaultRefreshTokenLifetime  = "720h"
	defaultLogLevel              = "info"
	defaultLogFormat             = "json"
	defaultShutdownTimeout       = "30s"
	defaultSettingsRecomputeWait = "30s"
)

// Config is the static process configuration read once at startup.
// Token lifetimes here only seed the runtime settings store; the live
// values are owned by settings.Provider.
type Config struct {
	AppEnv      string
	HTTPAddr    string
	DatabaseURL string
	RedisURL    string

	JWTSecret string
	JWTIssuer string

	AccessTokenLifetime  time.Duration
	RefreshTokenLifetime time.Duration

	// RecomputeTimeout bounds the background expiry recompute that runs
	// after the refresh lifetime changes.
	RecomputeTimeout time.Duration

	LogLevel  string
	LogFormat string

	CORSAllowedOrigins []string
	ShutdownTimeout    time.Duration
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{}

	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.HTTPAddr = strings.TrimSpace(getEnv("HTTP_ADDR", defaultHTTPAddr))
	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", defaultDatabaseURL))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))
	cfg.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", defaultLogLevel)))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(getEnv("LOG_FORMAT", defaultLogFormat)))

	if extra := os.Getenv("CORS_ALLOWED_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
			}
		}
	}

	var err error
	cfg.AccessTokenLifetime, err = parseDurationEnv("ACCESS_TOKEN_LIFETIME", defaultAccessTokenLifetime)
	if err != nil {
		return nil, err
	}
	cfg.RefreshTokenLifetime, err = parseDurationEnv("REFRESH_TOKEN_LIFETIME", defaultRefreshTokenLifetime)
	if err != nil {
		return nil, err
	}
	cfg.RecomputeTimeout, err = parseDurationEnv("SETTINGS_RECOMPUTE_TIMEOUT", defaultSettingsRecomputeWait)
	if err != nil {
		return nil, err
	}
	cfg.ShutdownTimeout, err = parseDurationEnv("SHUTDOWN_TIMEOUT", defaultShutdownTimeout)
	if err != nil {
		return nil, err
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether the environment requires hardened settings.
func (c *Config) IsProduction() bool {
	return isProdLike(c.AppEnv)
}

func validateConfig(cfg *Config) error {
	// Lifetimes seed the runtime settings store and follow its rule.
	if err := settings.Validate(settings.AccessTokenLifetime, cfg.AccessTokenLifetime); err != nil {
		return err
	}
	if err := settings.Validate(settings.RefreshTokenLifetime, cfg.RefreshTokenLifetime); err != nil {
		return err
	}
	if cfg.RecomputeTimeout <= 0 {
		return fmt.Errorf("SETTINGS_RECOMPUTE_TIMEOUT must be > 0")
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be > 0")
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be one of: json, text")
	}

	if isProdLike(cfg.AppEnv) && isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
		return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
