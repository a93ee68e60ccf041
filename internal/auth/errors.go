// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

package auth

import (
	"errors"
	"sort"
	"strings"
)

// Sentinel errors. Callers classify failures with errors.Is; the oops
// wrapping added along the way carries codes and context for logs only.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail is returned by repositories when the email is taken.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrUserDoesNotExist is returned by Login for an unknown email.
	ErrUserDoesNotExist = errors.New("user does not exist")

	// ErrPasswordIncorrect is returned by Login for a wrong password.
	ErrPasswordIncorrect = errors.New("password is incorrect")

	// ErrInactiveUser is returned by Login when the account is disabled.
	ErrInactiveUser = errors.New("user is inactive")

	// ErrUnauthenticated is returned when an operation needs a logged-in caller.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrPermissionDenied is returned when the caller lacks a capability.
	ErrPermissionDenied = errors.New("permission denied")
)

// Messages reported to API clients.
const (
	MsgRequired          = "This field is required."
	MsgInvalidEmail      = "Enter a valid email address."
	MsgDuplicateEmail    = "user with this email already exists."
	MsgUserDoesNotExist  = "User does not exist."
	MsgPasswordIncorrect = "Password is incorrect."
	MsgInactiveUser      = "This account is inactive."
	MsgPasswordReadOnly  = "Password cannot be changed through this endpoint."
	MsgOldPasswordWrong  = "Your old password was entered incorrectly. Please enter it again."
)

// NonFieldKey is the key under which errors not tied to one field are reported.
const NonFieldKey = "non_field_errors"

// ValidationError collects every problem found in one request. Fields maps
// a wire field name to its messages; NonField holds request-wide messages.
type ValidationError struct {
	Fields   map[string][]string
	NonField []string
	cause    error
}

// NewValidationError returns an empty ValidationError.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

// newFieldError builds a single-field error that unwraps to cause.
func newFieldError(field, msg string, cause error) *ValidationError {
	ve := NewValidationError()
	ve.Add(field, msg)
	ve.cause = cause
	return ve
}

// newNonFieldError builds a request-wide error that unwraps to cause.
func newNonFieldError(msg string, cause error) *ValidationError {
	ve := NewValidationError()
	ve.AddNonField(msg)
	ve.cause = cause
	return ve
}

// Add records msg against field.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// AddNonField records a request-wide message.
func (e *ValidationError) AddNonField(msg string) {
	e.NonField = append(e.NonField, msg)
}

// Merge copies every message of other into e. A nil other is ignored.
func (e *ValidationError) Merge(other *ValidationError) {
	if other == nil {
		return
	}
	for field, msgs := range other.Fields {
		for _, msg := range msgs {
			e.Add(field, msg)
		}
	}
	e.NonField = append(e.NonField, other.NonField...)
	if e.cause == nil {
		e.cause = other.cause
	}
}

// HasField reports whether field has at least one message.
func (e *ValidationError) HasField(field string) bool {
	return len(e.Fields[field]) > 0
}

// Empty reports whether no message was recorded.
func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0 && len(e.NonField) == 0
}

// OrNil returns e as an error, or nil when it is empty.
func (e *ValidationError) OrNil() error {
	if e == nil || e.Empty() {
		return nil
	}
	return e
}

// Map renders the error in wire shape, with request-wide messages under
// NonFieldKey.
func (e *ValidationError) Map() map[string][]string {
	out := make(map[string][]string, len(e.Fields)+1)
	for field, msgs := range e.Fields {
		out[field] = append([]string(nil), msgs...)
	}
	if len(e.NonField) > 0 {
		out[NonFieldKey] = append([]string(nil), e.NonField...)
	}
	return out
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields)+1)
	for _, field := range fields {
		parts = append(parts, field+": "+strings.Join(e.Fields[field], " "))
	}
	if len(e.NonField) > 0 {
		parts = append(parts, strings.Join(e.NonField, " "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap exposes the sentinel behind the error, if any.
func (e *ValidationError) Unwrap() error {
	return e.cause
}
