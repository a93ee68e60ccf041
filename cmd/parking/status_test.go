// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stornco/parking/internal/observability"
)

func healthServer(t *testing.T, isReady observability.ReadinessChecker) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(observability.NewServer("", nil, isReady, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestStatus_Table(t *testing.T) {
	srv := healthServer(t, nil)

	stdout, _, err := execute(t, nil, "", "status", "--addr", srv.URL)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"ADDR", "LIVE", "READY", "ERROR"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{srv.URL, "yes", "yes", "-"}, strings.Fields(lines[1]))
}

func TestStatus_JSON(t *testing.T) {
	srv := healthServer(t, func(context.Context) error { return errors.New("database unreachable") })

	stdout, _, err := execute(t, nil, "", "status", "--addr", srv.URL, "--json")
	require.NoError(t, err)

	var got ServerStatus
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, ServerStatus{Addr: srv.URL, Live: true, Ready: false, Error: "database unreachable"}, got)
}

func TestStatus_AddrFromConfig(t *testing.T) {
	srv := healthServer(t, nil)
	hostPort := strings.TrimPrefix(srv.URL, "http://")

	stdout, _, err := execute(t, nil, "", "status", "--metrics-addr", hostPort, "--json")
	require.NoError(t, err)

	var got ServerStatus
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, hostPort, got.Addr)
	assert.True(t, got.Ready)
}

func TestQueryServerStatus(t *testing.T) {
	t.Run("metrics disabled", func(t *testing.T) {
		got := queryServerStatus(context.Background(), nil, "")
		assert.Equal(t, "metrics listener disabled", got.Error)
		assert.False(t, got.Live)
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := healthServer(t, nil)
		url := srv.URL
		srv.Close()

		got := queryServerStatus(context.Background(), (&Deps{}).withDefaults().HTTPClient, url)
		assert.False(t, got.Live)
		assert.False(t, got.Ready)
		assert.Contains(t, got.Error, "failed to connect")
	})
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{":9100", "http://localhost:9100"},
		{"127.0.0.1:9100", "http://127.0.0.1:9100"},
		{"http://metrics.internal:9100/", "http://metrics.internal:9100"},
		{"https://metrics.internal", "https://metrics.internal"},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.want, baseURL(tt.addr))
		})
	}
}
