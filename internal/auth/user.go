// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Field limits for user accounts.
const (
	MaxEmailLength = 254
	MinPhoneLength = 10
	MaxPhoneLength = 20
)

// User is an account that can authenticate against the API.
type User struct {
	ID           ulid.ULID
	Email        string
	Phone        string
	PasswordHash string
	IsActive     bool
	IsStaff      bool
	IsSuperuser  bool
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserFlags holds the permission flags assigned at creation.
type UserFlags struct {
	IsActive    bool
	IsStaff     bool
	IsSuperuser bool
}

// RegularUser is the flag set given to self-registered accounts.
var RegularUser = UserFlags{IsActive: true}

// Superuser is the flag set given by CreateSuperuser.
var Superuser = UserFlags{IsActive: true, IsStaff: true, IsSuperuser: true}

// NormalizeEmail trims surrounding whitespace and lower-cases the domain
// part. The local part is kept as typed.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}

// NormalizePhone trims surrounding whitespace.
func NormalizePhone(phone string) string {
	return strings.TrimSpace(phone)
}

// NewUser creates a User with a fresh ID. Email and phone are normalized;
// field-level rules are enforced by the Validator before this point.
func NewUser(email, phone, passwordHash string, flags UserFlags) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, oops.Code("USER_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_PASSWORD_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now().UTC()
	return &User{
		ID:           ulid.Make(),
		Email:        email,
		Phone:        NormalizePhone(phone),
		PasswordHash: passwordHash,
		IsActive:     flags.IsActive,
		IsStaff:      flags.IsStaff,
		IsSuperuser:  flags.IsSuperuser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// UserRepository manages user persistence. Implementations enforce email
// uniqueness and report a clash as ErrDuplicateEmail.
type UserRepository interface {
	// Create stores a new user.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by normalized email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// List returns every user ordered by creation time.
	List(ctx context.Context) ([]*User, error)

	// Update persists email, phone, flags and UpdatedAt.
	Update(ctx context.Context, user *User) error

	// UpdatePassword replaces the stored password hash.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// UpdateLastLogin records a successful login.
	UpdateLastLogin(ctx context.Context, id ulid.ULID, at time.Time) error

	// Delete removes a user.
	Delete(ctx context.Context, id ulid.ULID) error
}
