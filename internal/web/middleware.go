// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/stornco/parking/internal/access"
	"github.com/stornco/parking/internal/auth"
	"github.com/stornco/parking/internal/logging"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLen bounds a client-supplied request id.
const maxRequestIDLen = 128

// traceContext reads W3C traceparent headers from callers.
var traceContext = propagation.TraceContext{}

type (
	metaKey    struct{}
	sessionKey struct{}
	userKey    struct{}
)

// requestID reuses a sane client X-Request-ID or generates one, echoes it
// and stores it for logging.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

// clientMetadata records the client address and User-Agent for sessions.
// It runs after middleware.RealIP, so RemoteAddr already reflects proxy
// headers.
func clientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta := auth.SessionMeta{
			UserAgent: r.UserAgent(),
			IPAddress: clientIP(r.RemoteAddr),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), metaKey{}, meta)))
	})
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func sessionMeta(ctx context.Context) auth.SessionMeta {
	meta, _ := ctx.Value(metaKey{}).(auth.SessionMeta)
	return meta
}

// instrument runs the request inside a server span, then writes one access
// log line and the request metrics. The route label is the matched pattern
// so ids do not explode cardinality.
func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := traceContext.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := h.tracer.Start(ctx, "HTTP "+r.Method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		r = r.WithContext(ctx)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(ctx); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		elapsed := time.Since(start)

		span.SetName(r.Method + " " + route)
		span.SetAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.String("http.route", route),
			attribute.Int("http.response.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}

		h.metrics.ObserveRequest(r.Method, route, status, elapsed)
		h.logger.InfoContext(ctx, "http request",
			"method", r.Method,
			"route", route,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", elapsed.Milliseconds())
	})
}

// recoverer turns a handler panic into a logged 500.
func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}
			h.logger.ErrorContext(r.Context(), "panic serving request",
				"panic", rec,
				"stack", string(debug.Stack()))
			writeJSON(w, http.StatusInternalServerError, detail{detailServerError})
		}()
		next.ServeHTTP(w, r)
	})
}

// authenticate resolves the session cookie. Requests without a valid
// session continue as anonymous; a stale cookie is cleared.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.cookie.token(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		session, user, err := h.accounts.Authenticate(r.Context(), token)
		if err != nil {
			if !errors.Is(err, auth.ErrUnauthenticated) {
				h.writeError(w, r, err)
				return
			}
			h.cookie.clear(w)
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey{}, session)
		ctx = context.WithValue(ctx, userKey{}, user)
		ctx = access.WithSubject(ctx, access.SubjectFor(user))
		ctx = logging.WithUserID(ctx, user.ID.String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// currentSession returns the caller's session, or nil when anonymous.
func currentSession(ctx context.Context) *auth.WebSession {
	s, _ := ctx.Value(sessionKey{}).(*auth.WebSession)
	return s
}

// currentUser returns the caller's user, or nil when anonymous.
func currentUser(ctx context.Context) *auth.User {
	u, _ := ctx.Value(userKey{}).(*auth.User)
	return u
}
