// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"

	"github.com/stornco/parking/internal/access"
	"github.com/stornco/parking/internal/auth"
	"github.com/stornco/parking/pkg/errutil"
)

// Client-facing messages for non-validation failures.
const (
	detailNotFound         = "Not found."
	detailUnauthenticated  = "Authentication credentials were not provided."
	detailPermissionDenied = "You do not have permission to perform this action."
	detailServerError      = "A server error occurred."
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// detail is the body of every non-validation error.
type detail struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps err to a status and body. Validation problems become 400
// with per-field messages; unclassified errors are logged and hidden
// behind a generic 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *auth.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, ve.Map())
	case errors.Is(err, auth.ErrNotFound):
		writeJSON(w, http.StatusNotFound, detail{detailNotFound})
	case access.IsDenied(err):
		h.logger.DebugContext(r.Context(), "access denied", "error", err)
		if errors.Is(err, auth.ErrUnauthenticated) {
			writeJSON(w, http.StatusUnauthorized, detail{detailUnauthenticated})
			return
		}
		writeJSON(w, http.StatusForbidden, detail{detailPermissionDenied})
	default:
		errutil.LogErrorContext(r.Context(), h.logger, "request failed", err)
		writeJSON(w, http.StatusInternalServerError, detail{detailServerError})
	}
}

// Messages for bodies that do not decode.
const (
	msgBodyTooLarge   = "Request body is too large."
	msgMalformedJSON  = "JSON parse error - malformed request body."
	msgTrailingData   = "JSON parse error - unexpected data after the JSON object."
	msgNotAnObject    = "Invalid data. Expected a dictionary, but got %s."
	msgNotAString     = "Not a valid string."
	msgNotABoolean    = "Must be a valid boolean."
	msgInvalidFieldIn = "Invalid value."
)

// decodeJSON reads the request body, which must hold one JSON object, into
// dst. An empty body leaves dst untouched so missing fields surface as
// validation errors; anything else that does not decode is a validation
// error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)

	err := dec.Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		_, err = dec.Token()
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.As(err, new(*http.MaxBytesError)):
		default:
			err = errTrailingData
		}
	}
	return decodeError(err)
}

var errTrailingData = errors.New("trailing data")

// decodeError turns a decoding failure into client-facing messages without
// exposing Go type names.
func decodeError(err error) *auth.ValidationError {
	ve := auth.NewValidationError()

	var (
		tooLarge *http.MaxBytesError
		typeErr  *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &tooLarge):
		ve.AddNonField(msgBodyTooLarge)
	case errors.As(err, &typeErr) && typeErr.Field == "":
		ve.AddNonField(fmt.Sprintf(msgNotAnObject, typeErr.Value))
	case errors.As(err, &typeErr):
		ve.Add(typeErr.Field, typeMessage(typeErr.Type))
	case errors.Is(err, errTrailingData):
		ve.AddNonField(msgTrailingData)
	default:
		ve.AddNonField(msgMalformedJSON)
	}
	return ve
}

func typeMessage(t reflect.Type) string {
	if t == nil {
		return msgInvalidFieldIn
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return msgNotAString
	case reflect.Bool:
		return msgNotABoolean
	default:
		return msgInvalidFieldIn
	}
}

func (h *Handler) notFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, detail{detailNotFound})
}

// methodNotAllowed answers methods chi does not route at all.
func (h *Handler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, detail{`Method "` + r.Method + `" not allowed.`})
}

// notAllowed answers a method a route does not offer; allow lists the ones
// it does.
func (h *Handler) notAllowed(allow string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", allow)
		h.methodNotAllowed(w, r)
	}
}
