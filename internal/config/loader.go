// Package config loads process configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every environment key, e.g. MEAL_HTTP_ADDR.
const Prefix = "MEAL"

// Lock backends.
const (
	LockBackendLocal = "local"
	LockBackendRedis = "redis"
)

// MinLockTTL is the shortest accepted Redis lock lease. Held leases are
// renewed, so the TTL only bounds how long a crashed holder blocks others.
const MinLockTTL = time.Second

// Config captures environment driven configuration values for the meal access service.
type Config struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	SQLiteDSN         string        `envconfig:"SQLITE_DSN" default:"meal-access.db"`
	SQLiteBusyTimeout time.Duration `envconfig:"SQLITE_BUSY_TIMEOUT" default:"5s"`

	Timezone       string  `envconfig:"TIMEZONE" default:"America/Sao_Paulo"`
	MatchThreshold float64 `envconfig:"MATCH_THRESHOLD" default:"0.5"`

	FaceExtractorURL     string        `envconfig:"FACE_EXTRACTOR_URL" default:"http://127.0.0.1:5001/extract"`
	FaceExtractorTimeout time.Duration `envconfig:"FACE_EXTRACTOR_TIMEOUT" default:"10s"`

	SessionTTL      time.Duration `envconfig:"SESSION_TTL" default:"12h"`
	ReportAccessTTL time.Duration `envconfig:"REPORT_ACCESS_TTL" default:"15m"`

	LockBackend string        `envconfig:"LOCK_BACKEND" default:"local"`
	RedisAddr   string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	LockTTL     time.Duration `envconfig:"LOCK_TTL" default:"10s"`

	LoginRateLimit int `envconfig:"LOGIN_RATE_LIMIT" default:"10"`
	MealRateLimit  int `envconfig:"MEAL_RATE_LIMIT" default:"120"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	InitialAdminUsername string `envconfig:"INITIAL_ADMIN_USERNAME"`
	InitialAdminName     string `envconfig:"INITIAL_ADMIN_NAME" default:"Administrator"`
	InitialAdminEmail    string `envconfig:"INITIAL_ADMIN_EMAIL"`
	InitialAdminPassword string `envconfig:"INITIAL_ADMIN_PASSWORD"`

	location *time.Location
}

// LoadEnvFile loads key/value pairs from path into the process environment.
// Variables already set win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Load parses configuration values from the current process environment.
//
// Defaults come from struct tags. Values that parse but make no sense, such as
// a non-positive TTL or an unknown lock backend, are reported together.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	invalid := make([]string, 0, 2)
	key := func(name string) string { return Prefix + "_" + name }

	cfg.Timezone = strings.TrimSpace(cfg.Timezone)
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil || cfg.Timezone == "" {
		invalid = append(invalid, key("TIMEZONE"))
	} else {
		cfg.location = loc
	}

	if cfg.MatchThreshold <= 0 {
		invalid = append(invalid, key("MATCH_THRESHOLD"))
	}
	if strings.TrimSpace(cfg.SQLiteDSN) == "" {
		invalid = append(invalid, key("SQLITE_DSN"))
	}
	for name, value := range map[string]time.Duration{
		"SESSION_TTL":            cfg.SessionTTL,
		"REPORT_ACCESS_TTL":      cfg.ReportAccessTTL,
		"FACE_EXTRACTOR_TIMEOUT": cfg.FaceExtractorTimeout,
	} {
		if value <= 0 {
			invalid = append(invalid, key(name))
		}
	}

	if cfg.LockTTL < MinLockTTL {
		invalid = append(invalid, key("LOCK_TTL"))
	}

	cfg.LockBackend = strings.ToLower(strings.TrimSpace(cfg.LockBackend))
	switch cfg.LockBackend {
	case LockBackendLocal:
	case LockBackendRedis:
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			invalid = append(invalid, key("REDIS_ADDR"))
		}
	default:
		invalid = append(invalid, key("LOCK_BACKEND"))
	}

	if _, err := parseLevel(cfg.LogLevel); err != nil {
		invalid = append(invalid, key("LOG_LEVEL"))
	}
	if cfg.LoginRateLimit <= 0 {
		invalid = append(invalid, key("LOGIN_RATE_LIMIT"))
	}
	if cfg.MealRateLimit <= 0 {
		invalid = append(invalid, key("MEAL_RATE_LIMIT"))
	}

	cfg.InitialAdminUsername = strings.TrimSpace(cfg.InitialAdminUsername)
	if cfg.InitialAdminUsername != "" && cfg.InitialAdminPassword == "" {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", key("INITIAL_ADMIN_PASSWORD"))
	}

	if len(invalid) > 0 {
		slices.Sort(invalid)
		return Config{}, fmt.Errorf("invalid environment values: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

// Location returns the zone used for calendar days and venue windows.
func (c Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

// Level returns the configured log level, defaulting to info.
func (c Config) Level() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// HasInitialAdmin reports whether a bootstrap super admin is configured.
func (c Config) HasInitialAdmin() bool {
	return c.InitialAdminUsername != ""
}

func parseLevel(value string) (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(strings.TrimSpace(value)))
	return level, err
}
