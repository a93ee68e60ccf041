// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/stornco/parking/internal/access"
	"github.com/stornco/parking/internal/auth"
)

// userResponse is the public view of a user. It never carries the
// password hash.
type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func newUserResponse(u *auth.User) userResponse {
	return userResponse{ID: u.ID.String(), Email: u.Email, Phone: u.Phone}
}

// invalidIDResource stands in for a path id that is not a ULID, so the
// permission check still runs before the 404.
const invalidIDResource = "-"

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := access.Require(ctx, h.access, access.SubjectFromContext(ctx), access.ActionList, access.ResourceUsers); err != nil {
		h.writeError(w, r, err)
		return
	}

	users, err := h.accounts.ListUsers(ctx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, newUserResponse(u))
	}
	writeJSON(w, http.StatusOK, out)
}

// userID authorizes action on the user named in the path and parses its
// id. On failure the response has been written and ok is false.
func (h *Handler) userID(w http.ResponseWriter, r *http.Request, action string) (id ulid.ULID, ok bool) {
	ctx := r.Context()
	raw := chi.URLParam(r, "id")
	id, parseErr := ulid.ParseStrict(raw)

	resource := access.UserResource(invalidIDResource)
	if parseErr == nil {
		resource = access.UserResource(id.String())
	}
	if err := access.Require(ctx, h.access, access.SubjectFromContext(ctx), action, resource); err != nil {
		h.writeError(w, r, err)
		return ulid.ULID{}, false
	}
	if parseErr != nil {
		h.writeError(w, r, oops.Code("USER_ID_INVALID").With("id", raw).Wrap(auth.ErrNotFound))
		return ulid.ULID{}, false
	}
	return id, true
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r, access.ActionRead)
	if !ok {
		return
	}
	user, err := h.accounts.GetUser(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user))
}

// updateUser serves PUT (every field required) and PATCH (partial).
func (h *Handler) updateUser(partial bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.userID(w, r, access.ActionWrite)
		if !ok {
			return
		}

		var upd auth.UserUpdate
		if err := decodeJSON(w, r, &upd); err != nil {
			h.writeError(w, r, err)
			return
		}
		user, err := h.accounts.UpdateUser(r.Context(), id, upd, partial)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newUserResponse(user))
	}
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r, access.ActionDelete)
	if !ok {
		return
	}
	if err := h.accounts.DeleteUser(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
