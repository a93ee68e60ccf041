// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stornco/parking/internal/config"
	"github.com/stornco/parking/internal/observability"
	"github.com/stornco/parking/internal/store"
)

// statusTimeout bounds one status query.
const statusTimeout = 2 * time.Second

// Deps contains injectable dependencies for the commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// OpenBackend wires the repositories and the account service.
	// Default: openBackend
	OpenBackend func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error)

	// MigratorFactory opens a schema migrator for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)

	// ObservabilityServerFactory creates the metrics/health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, reg *prometheus.Registry, isReady observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer

	// Getenv reads environment variables.
	// Default: os.Getenv
	Getenv func(string) string

	// HTTPClient queries a running server.
	// Default: a client with statusTimeout
	HTTPClient *http.Client
}

func (d *Deps) withDefaults() *Deps {
	out := &Deps{}
	if d != nil {
		*out = *d
	}
	if out.OpenBackend == nil {
		out.OpenBackend = openBackend
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(url string) (Migrator, error) {
			return store.NewMigrator(url)
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, reg *prometheus.Registry, isReady observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, reg, isReady, logger)
		}
	}
	if out.Getenv == nil {
		out.Getenv = os.Getenv
	}
	if out.HTTPClient == nil {
		out.HTTPClient = &http.Client{Timeout: statusTimeout}
	}
	return out
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Status() (*store.Status, error)
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}
