// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

package web

import (
	"net/http"

	"github.com/stornco/parking/internal/access"
	"github.com/stornco/parking/internal/auth"
)

// Auth event names recorded in metrics.
const (
	eventRegister       = "register"
	eventLogin          = "login"
	eventLogout         = "logout"
	eventPasswordChange = "password_change"
)

// loginResponse is returned by a successful login.
type loginResponse struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := access.Require(ctx, h.access, access.SubjectFromContext(ctx), access.ActionCreate, access.ResourceRegister); err != nil {
		h.writeError(w, r, err)
		return
	}

	var in auth.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	user, _, token, err := h.accounts.Register(ctx, currentSession(ctx), in, sessionMeta(ctx))
	h.metrics.RecordAuthEvent(eventRegister, err == nil)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if token != "" {
		h.cookie.set(w, token)
	}
	h.logger.InfoContext(ctx, "user registered", "new_user_id", user.ID.String())
	writeJSON(w, http.StatusCreated, newUserResponse(user))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := access.Require(ctx, h.access, access.SubjectFromContext(ctx), access.ActionCreate, access.ResourceSession); err != nil {
		h.writeError(w, r, err)
		return
	}

	var in auth.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	user, _, token, err := h.accounts.Login(ctx, currentSession(ctx), in, sessionMeta(ctx))
	h.metrics.RecordAuthEvent(eventLogin, err == nil)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if token != "" {
		h.cookie.set(w, token)
	}
	writeJSON(w, http.StatusOK, loginResponse{Email: user.Email, Phone: user.Phone})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := access.SubjectFromContext(ctx)
	if err := access.Require(ctx, h.access, subject, access.ActionDelete, access.SessionResource(subject.UserID)); err != nil {
		h.writeError(w, r, err)
		return
	}

	err := h.accounts.Logout(ctx, currentSession(ctx))
	h.metrics.RecordAuthEvent(eventLogout, err == nil)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.cookie.clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := access.SubjectFromContext(ctx)
	if err := access.Require(ctx, h.access, subject, access.ActionWrite, access.PasswordResource(subject.UserID)); err != nil {
		h.writeError(w, r, err)
		return
	}

	var in auth.ChangePasswordInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	_, token, err := h.accounts.ChangePassword(ctx, currentUser(ctx), in, sessionMeta(ctx))
	h.metrics.RecordAuthEvent(eventPasswordChange, err == nil)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.cookie.set(w, token)
	w.WriteHeader(http.StatusNoContent)
}
