// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stornco/parking/internal/access"
	"github.com/stornco/parking/internal/auth"
	"github.com/stornco/parking/internal/auth/memory"
	"github.com/stornco/parking/internal/observability"
	"github.com/stornco/parking/internal/web"
)

const (
	strongPassword = "Qz7!vLp2@mW9#rT4$kXb"
	adminEmail     = "admin@example.com"
)

// fastParams keeps argon2 cheap in tests.
var fastParams = auth.Argon2Params{Time: 1, Memory: 1024, Threads: 1, SaltLen: 16, KeyLen: 32}

type apiFixture struct {
	t        *testing.T
	server   *httptest.Server
	handler  http.Handler
	svc      *auth.Service
	users    *memory.UserRepository
	sessions *memory.SessionRepository
	metrics  *observability.Metrics
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	return newAPIWithLogger(t, slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func newAPIWithLogger(t *testing.T, logger *slog.Logger) *apiFixture {
	t.Helper()
	users := memory.NewUserRepository()
	sessions := memory.NewSessionRepository()
	manager, err := auth.NewSessionManager(sessions, users, time.Hour, logger)
	require.NoError(t, err)
	svc, err := auth.NewService(users, manager, auth.NewArgon2idHasherWithParams(fastParams), auth.WithLogger(logger))
	require.NoError(t, err)

	metrics := observability.NewMetrics(observability.NewRegistry())
	h, err := web.NewHandler(web.Config{
		Accounts: svc,
		Access:   access.NewStaticAccessControl(logger),
		Metrics:  metrics,
		Cookie:   web.CookieConfig{MaxAge: time.Hour},
		Logger:   logger,
	})
	require.NoError(t, err)

	routes := h.Routes()
	server := httptest.NewServer(routes)
	t.Cleanup(server.Close)

	return &apiFixture{
		t:        t,
		server:   server,
		handler:  routes,
		svc:      svc,
		users:    users,
		sessions: sessions,
		metrics:  metrics,
	}
}

// client returns an HTTP client with its own cookie jar, i.e. one browser.
func (a *apiFixture) client() *http.Client {
	a.t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(a.t, err)
	return &http.Client{Jar: jar}
}

// do sends body as JSON, or verbatim when it is a string, and returns the
// response with its body read.
func (a *apiFixture) do(c *http.Client, method, path string, body any) (*http.Response, []byte) {
	a.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(a.t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, a.server.URL+path, reader)
	require.NoError(a.t, err)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	return resp, data
}

// register signs up email with a fresh client, which stays logged in.
func (a *apiFixture) register(email string) (*http.Client, map[string]any) {
	a.t.Helper()
	c := a.client()
	resp, body := a.do(c, http.MethodPost, web.UserPrefix+"/register/", map[string]string{
		"email":    email,
		"phone":    "5551234567",
		"password": strongPassword,
	})
	require.Equal(a.t, http.StatusCreated, resp.StatusCode, string(body))
	return c, decodeObject(a.t, body)
}

// staff creates a superuser and returns a client logged in as them.
func (a *apiFixture) staff() *http.Client {
	a.t.Helper()
	_, err := a.svc.CreateSuperuser(context.Background(), auth.RegisterInput{
		Email:    adminEmail,
		Phone:    "5550000000",
		Password: strongPassword,
	})
	require.NoError(a.t, err)

	c := a.client()
	resp, body := a.do(c, http.MethodPost, web.UserPrefix+"/login/", map[string]string{
		"email":    adminEmail,
		"password": strongPassword,
	})
	require.Equal(a.t, http.StatusOK, resp.StatusCode, string(body))
	return c
}

func decodeObject(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return out
}

func decodeErrors(t *testing.T, body []byte) map[string][]string {
	t.Helper()
	var out map[string][]string
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return out
}

// jarSession looks up the stored session behind the cookie c carries.
func (a *apiFixture) jarSession(c *http.Client) (*auth.WebSession, error) {
	a.t.Helper()
	u, err := url.Parse(a.server.URL + web.UserPrefix + "/")
	require.NoError(a.t, err)
	for _, cookie := range c.Jar.Cookies(u) {
		if cookie.Name == web.DefaultCookieName {
			return a.sessions.GetByTokenHash(context.Background(), auth.HashSessionToken(cookie.Value))
		}
	}
	return nil, auth.ErrNotFound
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == web.DefaultCookieName {
			return c
		}
	}
	return nil
}
