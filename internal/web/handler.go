// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

// Package web serves the account API over HTTP.
//
// Routes follow the /api/v1/user/ resource: administrators list, read,
// update and delete users; anyone may register or log in; authenticated
// clients may log out or change their password. Sessions ride on a cookie
// holding an opaque token.
package web

import (
	"context"
	"log/slog"
	"maps"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/stornco/parking/internal/access"
	"github.com/stornco/parking/internal/auth"
	"github.com/stornco/parking/internal/observability"
)

// UserPrefix is the path of the user collection.
const UserPrefix = "/api/v1/user"

const tracerName = "github.com/stornco/parking/internal/web"

// Accounts is the account service behind the handlers. *auth.Service
// satisfies it.
type Accounts interface {
	Register(ctx context.Context, current *auth.WebSession, in auth.RegisterInput, meta auth.SessionMeta) (*auth.User, *auth.WebSession, string, error)
	Login(ctx context.Context, current *auth.WebSession, in auth.LoginInput, meta auth.SessionMeta) (*auth.User, *auth.WebSession, string, error)
	Logout(ctx context.Context, current *auth.WebSession) error
	Authenticate(ctx context.Context, token string) (*auth.WebSession, *auth.User, error)
	ChangePassword(ctx context.Context, user *auth.User, in auth.ChangePasswordInput, meta auth.SessionMeta) (*auth.WebSession, string, error)
	ListUsers(ctx context.Context) ([]*auth.User, error)
	GetUser(ctx context.Context, id ulid.ULID) (*auth.User, error)
	UpdateUser(ctx context.Context, id ulid.ULID, upd auth.UserUpdate, partial bool) (*auth.User, error)
	DeleteUser(ctx context.Context, id ulid.ULID) error
}

// Config holds the handler's dependencies. Accounts and Access are
// required.
type Config struct {
	Accounts Accounts
	Access   access.AccessControl
	Metrics  *observability.Metrics
	Cookie   CookieConfig
	Logger   *slog.Logger

	// TracerProvider starts a server span per request. Default: the
	// global otel provider.
	TracerProvider trace.TracerProvider
}

// Handler serves the account API.
type Handler struct {
	accounts Accounts
	access   access.AccessControl
	metrics  *observability.Metrics
	cookie   CookieConfig
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewHandler creates a Handler. A zero Cookie gets DefaultCookieName and
// auth.DefaultSessionMaxAge.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Accounts == nil {
		return nil, oops.Code("WEB_HANDLER_INVALID").Errorf("accounts service is required")
	}
	if cfg.Access == nil {
		return nil, oops.Code("WEB_HANDLER_INVALID").Errorf("access control is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	return &Handler{
		accounts: cfg.Accounts,
		access:   cfg.Access,
		metrics:  cfg.Metrics,
		cookie:   cfg.Cookie.withDefaults(),
		logger:   cfg.Logger,
		tracer:   cfg.TracerProvider.Tracer(tracerName),
	}, nil
}

// Routes returns the router with the full middleware chain.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(
		requestID,
		middleware.RealIP,
		clientMetadata,
		h.instrument,
		h.recoverer,
		h.authenticate,
	)
	r.NotFound(h.notFound)
	r.MethodNotAllowed(h.methodNotAllowed)

	h.mount(r, route{path: "/", methods: methods{http.MethodGet: h.home}})
	h.Register(r)
	return r
}

// methods maps an HTTP method to the handler offered for it.
type methods map[string]http.HandlerFunc

// route is one path of the API and the methods it offers.
type route struct {
	path    string
	methods methods
}

// routedMethods are answered explicitly on every route: the offered ones by
// their handler, the rest with 405. Fixed action paths therefore never fall
// through to the {id} routes.
var routedMethods = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodOptions,
	http.MethodTrace,
}

// userRoutes is the static route table of the user resource.
func (h *Handler) userRoutes() []route {
	return []route{
		{UserPrefix + "/", methods{http.MethodGet: h.listUsers}},
		{UserPrefix + "/register/", methods{http.MethodPost: h.register}},
		{UserPrefix + "/login/", methods{http.MethodPost: h.login}},
		{UserPrefix + "/logout/", methods{http.MethodGet: h.logout}},
		{UserPrefix + "/password/", methods{http.MethodPost: h.changePassword}},
		{UserPrefix + "/{id}/", methods{
			http.MethodGet:    h.getUser,
			http.MethodPut:    h.updateUser(false),
			http.MethodPatch:  h.updateUser(true),
			http.MethodDelete: h.deleteUser,
		}},
	}
}

// Register mounts the user routes on r. Methods a path does not offer,
// such as POST on the collection, answer 405 with an Allow header.
func (h *Handler) Register(r chi.Router) {
	for _, rt := range h.userRoutes() {
		h.mount(r, rt)
	}
}

// mount registers every routed method on rt.path. HEAD is served by the GET
// handler.
func (h *Handler) mount(r chi.Router, rt route) {
	offered := rt.methods
	if get, ok := offered[http.MethodGet]; ok {
		if _, ok := offered[http.MethodHead]; !ok {
			offered = maps.Clone(offered)
			offered[http.MethodHead] = get
		}
	}

	allow := make([]string, 0, len(offered))
	for _, m := range routedMethods {
		if _, ok := offered[m]; ok {
			allow = append(allow, m)
		}
	}
	notAllowed := h.notAllowed(strings.Join(allow, ", "))

	for _, m := range routedMethods {
		if fn, ok := offered[m]; ok {
			r.Method(m, rt.path, fn)
			continue
		}
		r.Method(m, rt.path, notAllowed)
	}
}

const homePage = "<h1>Welcome to StornCo Parking</h1>Get yourself some space, man!"

func (h *Handler) home(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(homePage))
}
