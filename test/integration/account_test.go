// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/stornco/parking/internal/access"
	"github.com/stornco/parking/internal/auth"
	"github.com/stornco/parking/internal/auth/postgres"
	authredis "github.com/stornco/parking/internal/auth/redis"
	"github.com/stornco/parking/internal/observability"
	"github.com/stornco/parking/internal/web"
)

const (
	password   = "Qz7!vLp2@mW9#rT4$kXb"
	staffEmail = "ops@stornco.example"
)

// apiEnv is one account API over the shared containers.
type apiEnv struct {
	server *httptest.Server
	svc    *auth.Service
}

func newAPIEnv(sessionBackend string) *apiEnv {
	ctx := context.Background()
	_, err := pool.Exec(ctx, "TRUNCATE users CASCADE")
	Expect(err).NotTo(HaveOccurred())
	Expect(redisClient.FlushAll(ctx).Err()).To(Succeed())

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	users := postgres.NewUserRepository(pool)
	var sessions auth.SessionRepository = postgres.NewSessionRepository(pool)
	if sessionBackend == "redis" {
		sessions = authredis.NewSessionRepository(redisClient)
	}

	manager, err := auth.NewSessionManager(sessions, users, time.Hour, logger)
	Expect(err).NotTo(HaveOccurred())
	hasher := auth.NewArgon2idHasherWithParams(auth.Argon2Params{Time: 1, Memory: 1024, Threads: 1, SaltLen: 16, KeyLen: 32})
	svc, err := auth.NewService(users, manager, hasher, auth.WithLogger(logger))
	Expect(err).NotTo(HaveOccurred())

	handler, err := web.NewHandler(web.Config{
		Accounts: svc,
		Access:   access.NewStaticAccessControl(logger),
		Metrics:  observability.NewMetrics(observability.NewRegistry()),
		Logger:   logger,
	})
	Expect(err).NotTo(HaveOccurred())

	env := &apiEnv{server: httptest.NewServer(handler.Routes()), svc: svc}
	DeferCleanup(env.server.Close)
	return env
}

func (e *apiEnv) client() *http.Client {
	jar, err := cookiejar.New(nil)
	Expect(err).NotTo(HaveOccurred())
	return &http.Client{Jar: jar}
}

func (e *apiEnv) do(c *http.Client, method, path string, body any) (int, map[string]any) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, e.server.URL+path, reader)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	var out map[string]any
	if len(data) > 0 {
		_ = json.Unmarshal(data, &out)
	}
	return resp.StatusCode, out
}

func (e *apiEnv) staff() *http.Client {
	_, err := e.svc.CreateSuperuser(context.Background(), auth.RegisterInput{
		Email: staffEmail, Phone: "5550000000", Password: password,
	})
	Expect(err).NotTo(HaveOccurred())

	c := e.client()
	status, _ := e.do(c, http.MethodPost, web.UserPrefix+"/login/", map[string]string{
		"email": staffEmail, "password": password,
	})
	Expect(status).To(Equal(http.StatusOK))
	return c
}

var _ = Describe("Account API", func() {
	for _, backend := range []string{"postgres", "redis"} {
		Context("with "+backend+" sessions", func() {
			var env *apiEnv

			BeforeEach(func() {
				env = newAPIEnv(backend)
			})

			It("registers, logs out and logs back in", func() {
				c := env.client()
				status, body := env.do(c, http.MethodPost, web.UserPrefix+"/register/", map[string]string{
					"email": "alice@Example.COM", "phone": "5551234567", "password": password,
				})
				Expect(status).To(Equal(http.StatusCreated))
				Expect(body).To(HaveKeyWithValue("email", "alice@example.com"))
				Expect(body).NotTo(HaveKey("password"))

				status, _ = env.do(c, http.MethodGet, web.UserPrefix+"/logout/", nil)
				Expect(status).To(Equal(http.StatusNoContent))

				status, _ = env.do(c, http.MethodGet, web.UserPrefix+"/logout/", nil)
				Expect(status).To(Equal(http.StatusUnauthorized))

				status, body = env.do(c, http.MethodPost, web.UserPrefix+"/login/", map[string]string{
					"email": "alice@example.com", "password": password,
				})
				Expect(status).To(Equal(http.StatusOK))
				Expect(body).To(Equal(map[string]any{"email": "alice@example.com", "phone": "5551234567"}))
			})

			It("rejects a duplicate email with a field error", func() {
				input := map[string]string{"email": "bob@example.com", "phone": "5551234567", "password": password}
				status, _ := env.do(env.client(), http.MethodPost, web.UserPrefix+"/register/", input)
				Expect(status).To(Equal(http.StatusCreated))

				status, body := env.do(env.client(), http.MethodPost, web.UserPrefix+"/register/", input)
				Expect(status).To(Equal(http.StatusBadRequest))
				Expect(body).To(HaveKey("email"))
			})

			It("lets staff manage users and ends a deleted user's sessions", func() {
				member := env.client()
				status, created := env.do(member, http.MethodPost, web.UserPrefix+"/register/", map[string]string{
					"email": "carol@example.com", "phone": "5551234567", "password": password,
				})
				Expect(status).To(Equal(http.StatusCreated))
				id, _ := created["id"].(string)
				Expect(id).NotTo(BeEmpty())

				status, _ = env.do(member, http.MethodGet, web.UserPrefix+"/", nil)
				Expect(status).To(Equal(http.StatusForbidden))

				admin := env.staff()
				status, _ = env.do(admin, http.MethodGet, web.UserPrefix+"/", nil)
				Expect(status).To(Equal(http.StatusOK))

				status, updated := env.do(admin, http.MethodPatch, web.UserPrefix+"/"+id+"/", map[string]string{
					"phone": "5559876543",
				})
				Expect(status).To(Equal(http.StatusOK))
				Expect(updated).To(HaveKeyWithValue("phone", "5559876543"))

				status, _ = env.do(admin, http.MethodDelete, web.UserPrefix+"/"+id+"/", nil)
				Expect(status).To(Equal(http.StatusNoContent))

				status, _ = env.do(admin, http.MethodGet, web.UserPrefix+"/"+id+"/", nil)
				Expect(status).To(Equal(http.StatusNotFound))

				status, _ = env.do(member, http.MethodGet, web.UserPrefix+"/logout/", nil)
				Expect(status).To(Equal(http.StatusUnauthorized))
			})

			It("refuses direct creation on the collection", func() {
				status, _ := env.do(env.staff(), http.MethodPost, web.UserPrefix+"/", map[string]string{
					"email": "dave@example.com",
				})
				Expect(status).To(Equal(http.StatusMethodNotAllowed))
			})
		})
	}
})
