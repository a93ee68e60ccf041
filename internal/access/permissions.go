// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

package access

// Actions.
const (
	ActionList   = "list"
	ActionCreate = "create"
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionDelete = "delete"
)

// Resources.
const (
	ResourceUsers    = "users"
	ResourceRegister = "user:register"
	ResourceSession  = "session"
)

// UserResource names one user record.
func UserResource(id string) string { return "user:" + id }

// SessionResource names the sessions of one user.
func SessionResource(userID string) string { return "session:" + userID }

// PasswordResource names the password of one user.
func PasswordResource(userID string) string { return "password:" + userID }

// Permission groups. Roles compose these rather than inheriting.

var publicPowers = []string{
	"create:user:register",
	"create:session",
}

var memberPowers = []string{
	"delete:session:$self",
	"write:password:$self",
}

// Only staff reach the user endpoints, for their own record too.
var staffPowers = []string{
	"list:users",
	"read:user:*",
	"write:user:*",
	"delete:user:*",
}

// DefaultRoles returns the built-in role definitions.
func DefaultRoles() map[string][]string {
	return map[string][]string{
		RoleAnonymous: publicPowers,
		RoleMember:    compose(publicPowers, memberPowers),
		RoleStaff:     compose(publicPowers, memberPowers, staffPowers),
	}
}

func compose(groups ...[]string) []string {
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	result := make([]string, 0, total)
	for _, g := range groups {
		result = append(result, g...)
	}
	return result
}
