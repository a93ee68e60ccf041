// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

// Package access decides which account operations a caller may perform.
//
// Permissions are "action:resource" strings such as "read:user:01ABC" or
// "delete:session:01XYZ". Roles grant glob patterns over them; "$self" in a
// pattern stands for the caller's own user ID.
package access

import (
	"context"
	"errors"

	"github.com/samber/oops"

	"github.com/stornco/parking/internal/auth"
)

// Role names.
const (
	RoleAnonymous = "anonymous"
	RoleMember    = "member"
	RoleStaff     = "staff"
)

// Subject is the caller a permission is checked for.
type Subject struct {
	// UserID is empty for anonymous callers.
	UserID string
	Role   string
}

// Anonymous is the subject of a request without a session.
var Anonymous = Subject{Role: RoleAnonymous}

// SubjectFor derives the subject of an authenticated user. A nil user is
// anonymous; staff status grants the staff role.
func SubjectFor(user *auth.User) Subject {
	if user == nil {
		return Anonymous
	}
	role := RoleMember
	if user.IsStaff {
		role = RoleStaff
	}
	return Subject{UserID: user.ID.String(), Role: role}
}

// IsAnonymous reports whether s has no user behind it.
func (s Subject) IsAnonymous() bool {
	return s.UserID == ""
}

// AccessControl checks permissions.
//
//nolint:revive // AccessControl reads better than access.Control at call sites
type AccessControl interface {
	// Check returns true if subject may perform action on resource. Unknown
	// roles and unmatched permissions are denied.
	Check(ctx context.Context, subject Subject, action, resource string) bool
}

// Require returns nil when the check passes. A denied anonymous caller gets
// auth.ErrUnauthenticated, anyone else auth.ErrPermissionDenied.
func Require(ctx context.Context, ac AccessControl, subject Subject, action, resource string) error {
	if ac.Check(ctx, subject, action, resource) {
		return nil
	}
	sentinel := auth.ErrPermissionDenied
	if subject.IsAnonymous() {
		sentinel = auth.ErrUnauthenticated
	}
	return oops.In("access").
		Code("ACCESS_DENIED").
		With("role", subject.Role).
		With("action", action).
		With("resource", resource).
		Wrap(sentinel)
}

// IsDenied reports whether err came from a failed Require.
func IsDenied(err error) bool {
	return errors.Is(err, auth.ErrPermissionDenied) || errors.Is(err, auth.ErrUnauthenticated)
}
