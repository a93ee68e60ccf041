// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/stornco/parking/internal/access"
	"github.com/stornco/parking/internal/config"
	"github.com/stornco/parking/internal/logging"
	"github.com/stornco/parking/internal/observability"
	"github.com/stornco/parking/internal/web"
)

func newServeCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the account API",
		Long: `Run the account API and, unless metrics.addr is empty, the metrics
and health server. Stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, deps)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cmd, cfg, deps)
		},
	}
}

// runServe runs until ctx is cancelled, a signal arrives or a server fails.
func runServe(ctx context.Context, cmd *cobra.Command, cfg *config.Config, deps *Deps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := logging.SetDefault(serviceName, version, cfg.Log.Format, cfg.Log.Level, cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.InfoContext(ctx, "starting account service",
		"version", version,
		"http_addr", cfg.HTTP.Addr,
		"session_backend", cfg.Session.Backend)

	if cfg.Database.AutoMigrate && cfg.NeedsDatabase() {
		if err := autoMigrate(ctx, cfg, deps, logger); err != nil {
			return err
		}
	}

	b, err := deps.OpenBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	registry := observability.NewRegistry()
	metrics := observability.NewMetrics(registry)

	handler, err := web.NewHandler(web.Config{
		Accounts: b.service,
		Access:   access.NewStaticAccessControl(logger),
		Metrics:  metrics,
		Cookie: web.CookieConfig{
			Name:   cfg.Session.CookieName,
			MaxAge: cfg.Session.MaxAgeDuration(),
			Secure: cfg.Session.SecureCookie,
		},
		Logger: logger,
	})
	if err != nil {
		return oops.Code("SERVE_INIT_FAILED").Wrap(err)
	}

	listener, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		return oops.Code("HTTP_LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}
	api := &http.Server{
		Handler:           handler.Routes(),
		ReadTimeout:       seconds(cfg.HTTP.ReadTimeout),
		ReadHeaderTimeout: seconds(cfg.HTTP.ReadTimeout),
		WriteTimeout:      seconds(cfg.HTTP.WriteTimeout),
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	apiErrs := make(chan error, 1)
	go func() {
		defer close(apiErrs)
		if err := api.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			apiErrs <- err
		}
	}()
	logger.InfoContext(ctx, "account API listening", "addr", listener.Addr().String())

	var obsServer ObservabilityServer
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, registry, b.ready, logger)
		obsErrs, err := obsServer.Start()
		if err != nil {
			shutdown(api, nil, seconds(cfg.HTTP.ShutdownTimeout), logger)
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrs, "observability", logger)
		logger.InfoContext(ctx, "observability server started", "addr", obsServer.Addr())
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err, ok := <-apiErrs:
		if ok && err != nil {
			serveErr = oops.Code("HTTP_SERVE_FAILED").Wrap(err)
		}
	}

	shutdown(api, obsServer, seconds(cfg.HTTP.ShutdownTimeout), logger)
	logger.Info("shutdown complete")
	return serveErr
}

// autoMigrate applies pending migrations before serving.
func autoMigrate(ctx context.Context, cfg *config.Config, deps *Deps, logger *slog.Logger) error {
	if cfg.Database.URL == "" {
		return oops.Code("DB_URL_REQUIRED").Errorf("database.url (or DATABASE_URL) is required")
	}
	migrator, err := deps.MigratorFactory(cfg.Database.URL)
	if err != nil {
		return oops.Code("AUTO_MIGRATION_FAILED").With("operation", "open migrator").Wrap(err)
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			logger.WarnContext(ctx, "failed to close migrator", "error", err)
		}
	}()

	if err := migrator.Up(); err != nil {
		return oops.Code("AUTO_MIGRATION_FAILED").With("operation", "apply migrations").Wrap(err)
	}
	logger.InfoContext(ctx, "database schema up to date")
	return nil
}

func shutdown(api *http.Server, obs ObservabilityServer, timeout time.Duration, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := api.Shutdown(ctx); err != nil {
		logger.Warn("error stopping account API", "error", err)
	}
	if obs != nil {
		if err := obs.Stop(ctx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}
}

// monitorServerErrors cancels ctx when a background server fails. It exits
// when the channel closes or ctx is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
