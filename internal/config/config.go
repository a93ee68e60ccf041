// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

// Package config loads the server configuration from a YAML file overlaid
// by command-line flags.
package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/samber/oops"
)

// Config is the full server configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http" json:"http,omitempty" jsonschema:"description=Account API listener"`
	Metrics  MetricsConfig  `koanf:"metrics" json:"metrics,omitempty" jsonschema:"description=Metrics and health listener"`
	Log      LogConfig      `koanf:"log" json:"log,omitempty"`
	Database DatabaseConfig `koanf:"database" json:"database,omitempty"`
	Session  SessionConfig  `koanf:"session" json:"session,omitempty"`
	Redis    RedisConfig    `koanf:"redis" json:"redis,omitempty"`
	Password PasswordConfig `koanf:"password" json:"password,omitempty"`
}

// HTTPConfig configures the API server. Timeouts are in seconds.
type HTTPConfig struct {
	Addr            string `koanf:"addr" json:"addr,omitempty" jsonschema:"description=listen address,example=:8000"`
	ReadTimeout     int    `koanf:"read_timeout" json:"read_timeout,omitempty" jsonschema:"minimum=1"`
	WriteTimeout    int    `koanf:"write_timeout" json:"write_timeout,omitempty" jsonschema:"minimum=1"`
	ShutdownTimeout int    `koanf:"shutdown_timeout" json:"shutdown_timeout,omitempty" jsonschema:"minimum=1"`
}

// MetricsConfig configures the observability server. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty" jsonschema:"description=listen address; empty disables"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// DatabaseConfig configures PostgreSQL. URL falls back to DATABASE_URL.
type DatabaseConfig struct {
	URL             string `koanf:"url" json:"url,omitempty"`
	MaxConns        int32  `koanf:"max_conns" json:"max_conns,omitempty" jsonschema:"minimum=1"`
	ConnectAttempts uint64 `koanf:"connect_attempts" json:"connect_attempts,omitempty" jsonschema:"minimum=1"`
	AutoMigrate     bool   `koanf:"auto_migrate" json:"auto_migrate,omitempty" jsonschema:"description=apply pending migrations on serve"`
}

// Session backends.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// SessionConfig configures web sessions and their cookie.
type SessionConfig struct {
	Backend      string `koanf:"backend" json:"backend,omitempty" jsonschema:"enum=postgres,enum=redis,enum=memory"`
	CookieName   string `koanf:"cookie_name" json:"cookie_name,omitempty" jsonschema:"pattern=^[A-Za-z0-9_-]+$"`
	MaxAge       int    `koanf:"max_age" json:"max_age,omitempty" jsonschema:"minimum=60,description=session lifetime in seconds"`
	SecureCookie bool   `koanf:"secure_cookie" json:"secure_cookie,omitempty"`
}

// MaxAgeDuration returns MaxAge as a duration.
func (s SessionConfig) MaxAgeDuration() time.Duration {
	return time.Duration(s.MaxAge) * time.Second
}

// RedisConfig configures the Redis session backend. URL falls back to
// REDIS_URL.
type RedisConfig struct {
	URL       string `koanf:"url" json:"url,omitempty"`
	PoolSize  int    `koanf:"pool_size" json:"pool_size,omitempty" jsonschema:"minimum=1"`
	KeyPrefix string `koanf:"key_prefix" json:"key_prefix,omitempty"`
}

// PasswordConfig configures password policy and hashing cost.
type PasswordConfig struct {
	MinLength int          `koanf:"min_length" json:"min_length,omitempty" jsonschema:"minimum=8"`
	Argon2    Argon2Config `koanf:"argon2" json:"argon2,omitempty"`
}

// Argon2Config configures the argon2id cost parameters.
type Argon2Config struct {
	Time      uint32 `koanf:"time" json:"time,omitempty" jsonschema:"minimum=1"`
	MemoryKiB uint32 `koanf:"memory_kib" json:"memory_kib,omitempty" jsonschema:"minimum=1024"`
	Threads   uint8  `koanf:"threads" json:"threads,omitempty" jsonschema:"minimum=1,maximum=255"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:            ":8000",
			ReadTimeout:     15,
			WriteTimeout:    15,
			ShutdownTimeout: 10,
		},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
		Log:     LogConfig{Format: "json", Level: "info"},
		Database: DatabaseConfig{
			MaxConns:        10,
			ConnectAttempts: 5,
		},
		Session: SessionConfig{
			Backend:    BackendPostgres,
			CookieName: "sessionid",
			MaxAge:     int((14 * 24 * time.Hour).Seconds()),
		},
		Redis:    RedisConfig{PoolSize: 10, KeyPrefix: "parking:"},
		Password: PasswordConfig{
			MinLength: 8,
			Argon2:    Argon2Config{Time: 1, MemoryKiB: 64 * 1024, Threads: 4},
		},
	}
}

var (
	logFormats = []string{"json", "text"}
	logLevels  = []string{"debug", "info", "warn", "error"}
	backends   = []string{BackendPostgres, BackendRedis, BackendMemory}
)

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.HTTP.Addr != "", "http.addr is required")
	check(c.HTTP.ReadTimeout > 0, "http.read_timeout must be positive")
	check(c.HTTP.WriteTimeout > 0, "http.write_timeout must be positive")
	check(c.HTTP.ShutdownTimeout > 0, "http.shutdown_timeout must be positive")
	check(slices.Contains(logFormats, c.Log.Format), "log.format must be one of %v, got %q", logFormats, c.Log.Format)
	check(slices.Contains(logLevels, c.Log.Level), "log.level must be one of %v, got %q", logLevels, c.Log.Level)
	check(slices.Contains(backends, c.Session.Backend), "session.backend must be one of %v, got %q", backends, c.Session.Backend)
	check(c.Session.CookieName != "", "session.cookie_name is required")
	check(c.Session.MaxAge >= 60, "session.max_age must be at least 60 seconds")
	check(c.Password.MinLength >= 8, "password.min_length must be at least 8")
	check(c.Password.Argon2.Time > 0, "password.argon2.time must be positive")
	check(c.Password.Argon2.MemoryKiB >= 1024, "password.argon2.memory_kib must be at least 1024")
	check(c.Password.Argon2.Threads > 0, "password.argon2.threads must be positive")
	check(c.Session.Backend != BackendRedis || c.Redis.URL != "", "redis.url (or REDIS_URL) is required for the redis session backend")

	if len(errs) > 0 {
		return oops.Code("CONFIG_INVALID").Wrap(errors.Join(errs...))
	}
	return nil
}

// NeedsDatabase reports whether serving requires PostgreSQL. Users always
// live there unless the memory backend is selected for development.
func (c *Config) NeedsDatabase() bool {
	return c.Session.Backend != BackendMemory
}
