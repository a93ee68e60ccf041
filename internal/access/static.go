// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

package access

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// StaticAccessControl implements AccessControl with a fixed role table.
// It is immutable after construction.
type StaticAccessControl struct {
	roles  map[string][]compiledPermission
	logger *slog.Logger
}

type compiledPermission struct {
	pattern string
	glob    glob.Glob // nil when pattern contains $self
}

// NewStaticAccessControl returns a controller with DefaultRoles. It panics
// if the built-in patterns fail to compile.
func NewStaticAccessControl(logger *slog.Logger) *StaticAccessControl {
	ac, err := NewStaticAccessControlWithRoles(DefaultRoles(), logger)
	if err != nil {
		panic("invalid permission pattern in DefaultRoles: " + err.Error())
	}
	return ac
}

// NewStaticAccessControlWithRoles compiles roles into a controller.
func NewStaticAccessControlWithRoles(roles map[string][]string, logger *slog.Logger) (*StaticAccessControl, error) {
	if logger == nil {
		logger = slog.Default()
	}

	compiled := make(map[string][]compiledPermission, len(roles))
	for role, perms := range roles {
		list := make([]compiledPermission, 0, len(perms))
		for _, p := range perms {
			// Placeholder substitution validates $self patterns up front.
			g, err := glob.Compile(resolveSelf(p, "x"), ':')
			if err != nil {
				return nil, oops.In("access").
					Code("INVALID_PERMISSION_PATTERN").
					With("role", role).
					With("pattern", p).
					Wrap(err)
			}
			if strings.Contains(p, "$self") {
				g = nil
			}
			list = append(list, compiledPermission{pattern: p, glob: g})
		}
		compiled[role] = list
	}

	return &StaticAccessControl{roles: compiled, logger: logger}, nil
}

// Check implements AccessControl.
func (s *StaticAccessControl) Check(_ context.Context, subject Subject, action, resource string) bool {
	permissions, ok := s.roles[subject.Role]
	if !ok {
		s.logger.Warn("permission check for unknown role",
			"role", subject.Role,
			"action", action,
			"resource", resource)
		return false
	}

	requested := action + ":" + resource
	for _, perm := range permissions {
		if perm.glob != nil {
			if perm.glob.Match(requested) {
				return true
			}
			continue
		}
		// $self never matches for anonymous callers.
		if subject.UserID == "" {
			continue
		}
		g, err := glob.Compile(resolveSelf(perm.pattern, subject.UserID), ':')
		if err != nil {
			s.logger.Warn("failed to compile resolved permission pattern",
				"role", subject.Role,
				"pattern", perm.pattern,
				"error", err)
			continue
		}
		if g.Match(requested) {
			return true
		}
	}
	return false
}

func resolveSelf(pattern, userID string) string {
	return strings.ReplaceAll(pattern, "$self", userID)
}
