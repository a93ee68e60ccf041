// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stornco/parking/internal/auth/memory"
	"github.com/stornco/parking/internal/config"
)

const testPassword = "Qz7!vLp2@mW9#rT4$kXb"

// noEnv hides the process environment from commands under test.
func noEnv(string) string { return "" }

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, deps *Deps, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	if deps == nil {
		deps = &Deps{}
	}
	if deps.Getenv == nil {
		deps.Getenv = noEnv
	}

	cmd := newRootCmd(deps)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

type memoryStores struct {
	users    *memory.UserRepository
	sessions *memory.SessionRepository
}

// memoryBackend returns a backend over fresh in-memory repositories with
// cheap password hashing.
func memoryBackend(t *testing.T) (*backend, memoryStores) {
	t.Helper()
	stores := memoryStores{users: memory.NewUserRepository(), sessions: memory.NewSessionRepository()}

	cfg := config.Default()
	cfg.Password.Argon2 = config.Argon2Config{Time: 1, MemoryKiB: 1024, Threads: 1}
	svc, err := newService(cfg, stores.users, stores.sessions, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	return &backend{service: svc, ready: func(context.Context) error { return nil }}, stores
}

// backendDeps injects b as the backend of every command.
func backendDeps(b *backend) *Deps {
	return &Deps{
		OpenBackend: func(context.Context, *config.Config, *slog.Logger) (*backend, error) {
			return b, nil
		},
	}
}
