// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

package observability

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/stornco/parking/pkg/errutil"
)

func get(t *testing.T, h http.Handler, path string) (*http.Response, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	resp := rec.Result()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestServer_Liveness(t *testing.T) {
	s := NewServer("", nil, func(context.Context) error { return errors.New("db down") }, nil)

	resp, body := get(t, s.Handler(), "/healthz/liveness")
	assert.Equal(t, http.StatusOK, resp.StatusCode, "liveness ignores readiness")
	assert.JSONEq(t, `{"status":"ok"}`, body)
}

func TestServer_Readiness(t *testing.T) {
	tests := []struct {
		name    string
		checker ReadinessChecker
		status  int
		body    HealthStatus
	}{
		{"nil checker", nil, http.StatusOK, HealthStatus{Status: "ok"}},
		{"ready", func(context.Context) error { return nil }, http.StatusOK, HealthStatus{Status: "ok"}},
		{
			"not ready",
			func(context.Context) error { return errors.New("database: connection refused") },
			http.StatusServiceUnavailable,
			HealthStatus{Status: "not ready", Error: "database: connection refused"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer("", nil, tt.checker, nil)
			resp, body := get(t, s.Handler(), "/healthz/readiness")
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

			var got HealthStatus
			require.NoError(t, json.Unmarshal([]byte(body), &got))
			assert.Equal(t, tt.body, got)
		})
	}
}

func TestServer_ReadinessHasDeadline(t *testing.T) {
	var hadDeadline bool
	s := NewServer("", nil, func(ctx context.Context) error {
		_, hadDeadline = ctx.Deadline()
		return nil
	}, nil)
	get(t, s.Handler(), "/healthz/readiness")
	assert.True(t, hadDeadline)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	reg := NewRegistry()
	m := NewMetrics(reg)
	m.ObserveRequest(http.MethodPost, "/api/v1/user/login/", http.StatusOK, 20*time.Millisecond)
	m.RecordAuthEvent("login", true)

	s := NewServer("", reg, nil, nil)
	resp, body := get(t, s.Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "go_goroutines")
	assert.Contains(t, body, "process_")
	assert.Contains(t, body, `parking_http_requests_total{method="POST",route="/api/v1/user/login/",status="200"} 1`)
	assert.Contains(t, body, "parking_http_request_duration_seconds")
	assert.Contains(t, body, `parking_auth_events_total{event="login",outcome="success"} 1`)
}

func TestMetrics_Counts(t *testing.T) {
	m := NewMetrics(NewRegistry())

	m.RecordAuthEvent("register", false)
	m.RecordAuthEvent("register", false)
	m.RecordAuthEvent("register", true)
	assert.InDelta(t, 2, testutil.ToFloat64(m.AuthEventsTotal.WithLabelValues("register", OutcomeFailure)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.AuthEventsTotal.WithLabelValues("register", OutcomeSuccess)), 0)

	m.ObserveRequest(http.MethodGet, "/api/v1/user/", http.StatusForbidden, time.Millisecond)
	assert.InDelta(t, 1, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/user/", "403")), 0)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
		m.RecordAuthEvent("login", true)
	})
}

func TestServer_Lifecycle(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := NewServer("127.0.0.1:0", nil, nil, nil)
	errCh, err := s.Start()
	require.NoError(t, err)
	require.NotEmpty(t, s.Addr())

	_, err = s.Start()
	errutil.AssertErrorCode(t, err, "OBSERVABILITY_ALREADY_RUNNING")

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + s.Addr() + "/healthz/liveness")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx), "second stop is a no-op")

	_, open := <-errCh
	assert.False(t, open, "error channel closes on clean shutdown")
}

func TestServer_StartFailsOnBusyPort(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	s := NewServer(l.Addr().String(), nil, nil, nil)
	_, err = s.Start()
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "OBSERVABILITY_LISTEN_FAILED")

	// A failed start leaves the server startable.
	assert.NoError(t, s.Stop(context.Background()))
}
