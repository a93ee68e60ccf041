// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	"github.com/stornco/parking/internal/auth"
	"github.com/stornco/parking/internal/auth/memory"
	"github.com/stornco/parking/internal/auth/postgres"
	authredis "github.com/stornco/parking/internal/auth/redis"
	"github.com/stornco/parking/internal/config"
	"github.com/stornco/parking/internal/observability"
	"github.com/stornco/parking/internal/store"
)

// backend is the wired account service and the connections behind it.
type backend struct {
	service *auth.Service
	ready   observability.ReadinessChecker
	closers []func()
}

// Close releases connections in reverse order of opening.
func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// openBackend connects the stores selected by cfg and builds the account
// service. Users live in PostgreSQL unless the memory backend is chosen;
// sessions live in the configured backend.
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	b := &backend{}
	var checks []observability.ReadinessChecker

	var (
		pool  *pgxpool.Pool
		users auth.UserRepository
	)
	if cfg.NeedsDatabase() {
		if cfg.Database.URL == "" {
			return nil, oops.Code("DB_URL_REQUIRED").
				With("session_backend", cfg.Session.Backend).
				Errorf("database.url (or DATABASE_URL) is required")
		}
		var err error
		pool, err = store.Connect(ctx, cfg.Database.URL, store.ConnectOptions{
			MaxConns: cfg.Database.MaxConns,
			Attempts: cfg.Database.ConnectAttempts,
			Logger:   logger,
		})
		if err != nil {
			return nil, err //nolint:wrapcheck // store.Connect returns coded oops errors
		}
		b.closers = append(b.closers, pool.Close)
		checks = append(checks, pool.Ping)
		users = postgres.NewUserRepository(pool)
	} else {
		logger.WarnContext(ctx, "using in-memory stores; accounts are lost on exit")
		users = memory.NewUserRepository()
	}

	var sessions auth.SessionRepository
	switch cfg.Session.Backend {
	case config.BackendRedis:
		client, err := authredis.NewClient(ctx, cfg.Redis.URL, authredis.ClientOptions{PoolSize: cfg.Redis.PoolSize})
		if err != nil {
			b.Close()
			return nil, err //nolint:wrapcheck // NewClient returns coded oops errors
		}
		b.closers = append(b.closers, func() {
			if err := client.Close(); err != nil {
				logger.Warn("failed to close redis client", "error", err)
			}
		})
		checks = append(checks, func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		sessions = authredis.NewSessionRepository(client, authredis.WithKeyPrefix(cfg.Redis.KeyPrefix))
	case config.BackendMemory:
		sessions = memory.NewSessionRepository()
	default:
		sessions = postgres.NewSessionRepository(pool)
	}

	service, err := newService(cfg, users, sessions, logger)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.service = service
	b.ready = func(ctx context.Context) error {
		for _, check := range checks {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
	return b, nil
}

// newService builds the account service over the given repositories with
// the configured session lifetime, hashing cost and password policy.
func newService(cfg *config.Config, users auth.UserRepository, sessions auth.SessionRepository, logger *slog.Logger) (*auth.Service, error) {
	manager, err := auth.NewSessionManager(sessions, users, cfg.Session.MaxAgeDuration(), logger)
	if err != nil {
		return nil, oops.Code("BACKEND_INIT_FAILED").Wrap(err)
	}

	hasher := auth.NewArgon2idHasherWithParams(auth.Argon2Params{
		Time:    cfg.Password.Argon2.Time,
		Memory:  cfg.Password.Argon2.MemoryKiB,
		Threads: cfg.Password.Argon2.Threads,
		SaltLen: auth.DefaultArgon2Params.SaltLen,
		KeyLen:  auth.DefaultArgon2Params.KeyLen,
	})

	service, err := auth.NewService(users, manager, hasher,
		auth.WithLogger(logger),
		auth.WithPasswordPolicy(auth.DefaultPasswordPolicy(cfg.Password.MinLength)))
	if err != nil {
		return nil, oops.Code("BACKEND_INIT_FAILED").Wrap(err)
	}
	return service, nil
}
