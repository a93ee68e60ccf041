// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Service implements the account operations: registration, login,
// logout, password changes and administrative user management.
// Authorization is the caller's concern.
type Service struct {
	users    UserRepository
	sessions *SessionManager
	hasher   PasswordHasher
	policy   *PasswordPolicy
	validate *Validator
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for best-effort failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPasswordPolicy replaces the default password policy.
func WithPasswordPolicy(policy *PasswordPolicy) Option {
	return func(s *Service) {
		if policy != nil {
			s.policy = policy
		}
	}
}

// NewService creates a Service. All dependencies are required.
func NewService(users UserRepository, sessions *SessionManager, hasher PasswordHasher, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("users repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("session manager is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("password hasher is required")
	}

	s := &Service{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		policy:   DefaultPasswordPolicy(DefaultMinPasswordLength),
		validate: NewValidator(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Sessions returns the session manager backing the service.
func (s *Service) Sessions() *SessionManager {
	return s.sessions
}

// Register creates a regular account and logs the client in as the new
// user. Every validation problem, including password policy violations
// and a taken email, is reported in one *ValidationError.
func (s *Service) Register(ctx context.Context, current *WebSession, in RegisterInput, meta SessionMeta) (*User, *WebSession, string, error) {
	user, err := s.createUser(ctx, in, RegularUser)
	if err != nil {
		return nil, nil, "", err
	}

	session, token, err := s.sessions.Login(ctx, current, user, meta)
	if err != nil {
		return nil, nil, "", oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "login new user").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return user, session, token, nil
}

// CreateSuperuser creates an active staff superuser. It applies the same
// validation as Register but establishes no session.
func (s *Service) CreateSuperuser(ctx context.Context, in RegisterInput) (*User, error) {
	return s.createUser(ctx, in, Superuser)
}

func (s *Service) createUser(ctx context.Context, in RegisterInput, flags UserFlags) (*User, error) {
	in.Normalize()

	ve, err := s.validate.collect(in)
	if err != nil {
		return nil, err
	}

	if !ve.HasField("email") {
		taken, err := s.emailTaken(ctx, in.Email, ulid.ULID{})
		if err != nil {
			return nil, err
		}
		if taken {
			ve.Add("email", MsgDuplicateEmail)
			ve.cause = ErrDuplicateEmail
		}
	}

	if in.Password != "" {
		ve.Merge(s.policy.Validate("password", in.Password, &User{Email: in.Email, Phone: in.Phone}))
	}

	if !ve.Empty() {
		return nil, oops.Code("AUTH_REGISTER_INVALID").With("email", in.Email).Wrap(ve)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "hash password").Wrap(err)
	}

	user, err := NewUser(in.Email, in.Phone, hash, flags)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "build user").Wrap(err)
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			// Lost a race with a concurrent registration.
			return nil, oops.Code("AUTH_REGISTER_INVALID").
				With("email", in.Email).
				Wrap(newFieldError("email", MsgDuplicateEmail, ErrDuplicateEmail))
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "persist user").
			Wrap(err)
	}
	return user, nil
}

// emailTaken reports whether email belongs to a user other than except.
func (s *Service) emailTaken(ctx context.Context, email string, except ulid.ULID) (bool, error) {
	existing, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, oops.Code("AUTH_EMAIL_LOOKUP_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}
	return existing.ID != except, nil
}

// Login checks credentials and establishes the user on the client's
// session. Failures are request-wide validation errors that name the
// reason: unknown user, wrong password or disabled account.
func (s *Service) Login(ctx context.Context, current *WebSession, in LoginInput, meta SessionMeta) (*User, *WebSession, string, error) {
	in.Normalize()
	if err := s.validate.Struct(in); err != nil {
		return nil, nil, "", oops.Code("AUTH_LOGIN_INVALID").Wrap(err)
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, "", oops.Code("AUTH_INVALID_CREDENTIALS").
				Wrap(newNonFieldError(MsgUserDoesNotExist, ErrUserDoesNotExist))
		}
		return nil, nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	valid, err := s.hasher.Verify(in.Password, user.PasswordHash)
	if err != nil {
		return nil, nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	if !valid {
		return nil, nil, "", oops.Code("AUTH_INVALID_CREDENTIALS").
			With("user_id", user.ID.String()).
			Wrap(newNonFieldError(MsgPasswordIncorrect, ErrPasswordIncorrect))
	}
	if !user.IsActive {
		return nil, nil, "", oops.Code("AUTH_ACCOUNT_INACTIVE").
			With("user_id", user.ID.String()).
			Wrap(newNonFieldError(MsgInactiveUser, ErrInactiveUser))
	}

	s.upgradeHash(ctx, user, in.Password)

	session, token, err := s.sessions.Login(ctx, current, user, meta)
	if err != nil {
		return nil, nil, "", err
	}
	return user, session, token, nil
}

// upgradeHash rehashes the password when the stored hash uses outdated
// parameters. Failures are logged; login proceeds regardless.
func (s *Service) upgradeHash(ctx context.Context, user *User, password string) {
	if !s.hasher.NeedsUpgrade(user.PasswordHash) {
		return
	}
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.users.UpdatePassword(ctx, user.ID, hash)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "failed to upgrade password hash",
			"user_id", user.ID.String(),
			"error", err)
		return
	}
	user.PasswordHash = hash
}

// Logout ends the client's session. Anonymous clients are a no-op.
func (s *Service) Logout(ctx context.Context, current *WebSession) error {
	return s.sessions.Logout(ctx, current)
}

// Authenticate resolves a session token; see SessionManager.Authenticate.
func (s *Service) Authenticate(ctx context.Context, token string) (*WebSession, *User, error) {
	return s.sessions.Authenticate(ctx, token)
}

// ChangePassword replaces the caller's password after checking the old
// one. Every session of the user is revoked and a fresh one is returned
// for the calling client.
func (s *Service) ChangePassword(ctx context.Context, user *User, in ChangePasswordInput, meta SessionMeta) (*WebSession, string, error) {
	ve, err := s.validate.collect(in)
	if err != nil {
		return nil, "", err
	}

	if in.OldPassword != "" {
		ok, err := s.hasher.Verify(in.OldPassword, user.PasswordHash)
		if err != nil {
			return nil, "", oops.Code("AUTH_PASSWORD_CHANGE_FAILED").
				With("operation", "verify old password").
				With("user_id", user.ID.String()).
				Wrap(err)
		}
		if !ok {
			ve.Add("old_password", MsgOldPasswordWrong)
			ve.cause = ErrPasswordIncorrect
		}
	}
	if in.NewPassword != "" {
		ve.Merge(s.policy.Validate("new_password", in.NewPassword, user))
	}
	if !ve.Empty() {
		return nil, "", oops.Code("AUTH_PASSWORD_CHANGE_INVALID").
			With("user_id", user.ID.String()).
			Wrap(ve)
	}

	if err := s.replacePassword(ctx, user, in.NewPassword); err != nil {
		return nil, "", err
	}

	session, token, err := s.sessions.Login(ctx, nil, user, meta)
	if err != nil {
		return nil, "", oops.Code("AUTH_PASSWORD_CHANGE_FAILED").
			With("operation", "re-login").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return session, token, nil
}

// SetPassword replaces the password of the user with the given email
// without knowing the old one, applying the password policy. All of the
// user's sessions are revoked.
func (s *Service) SetPassword(ctx context.Context, email, password string) (*User, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, oops.Code("AUTH_PASSWORD_SET_FAILED").
			With("email", email).
			Wrap(err)
	}

	if ve := s.policy.Validate("password", password, user); ve != nil {
		return nil, oops.Code("AUTH_PASSWORD_SET_INVALID").
			With("user_id", user.ID.String()).
			Wrap(ve)
	}

	if err := s.replacePassword(ctx, user, password); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) replacePassword(ctx context.Context, user *User, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return oops.Code("AUTH_PASSWORD_CHANGE_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return oops.Code("AUTH_PASSWORD_CHANGE_FAILED").
			With("operation", "update password").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	user.PasswordHash = hash

	if err := s.sessions.RevokeAll(ctx, user.ID); err != nil {
		return oops.Code("AUTH_PASSWORD_CHANGE_FAILED").
			With("operation", "revoke sessions").
			Wrap(err)
	}
	return nil
}

// ListUsers returns every user ordered by creation time.
func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, oops.Code("USER_LIST_FAILED").Wrap(err)
	}
	return users, nil
}

// GetUser returns one user or an error wrapping ErrNotFound.
func (s *Service) GetUser(ctx context.Context, id ulid.ULID) (*User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").With("id", id.String()).Wrap(err)
	}
	return user, nil
}

// UpdateUser changes a user's email and phone. A full update (partial
// false) requires both fields; a partial one applies only those given.
// Passwords cannot be changed here.
func (s *Service) UpdateUser(ctx context.Context, id ulid.ULID, upd UserUpdate, partial bool) (*User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	upd.Normalize()
	ve, err := s.validate.collect(upd)
	if err != nil {
		return nil, err
	}
	if !partial {
		if upd.Email == nil {
			ve.Add("email", MsgRequired)
		}
		if upd.Phone == nil {
			ve.Add("phone", MsgRequired)
		}
	}
	if upd.Password != nil {
		ve.Add("password", MsgPasswordReadOnly)
	}
	if upd.Email != nil && !ve.HasField("email") && *upd.Email != user.Email {
		taken, err := s.emailTaken(ctx, *upd.Email, user.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			ve.Add("email", MsgDuplicateEmail)
			ve.cause = ErrDuplicateEmail
		}
	}
	if !ve.Empty() {
		return nil, oops.Code("USER_UPDATE_INVALID").With("id", id.String()).Wrap(ve)
	}

	if upd.Email != nil {
		user.Email = *upd.Email
	}
	if upd.Phone != nil {
		user.Phone = *upd.Phone
	}
	user.UpdatedAt = time.Now().UTC()

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, oops.Code("USER_UPDATE_INVALID").
				With("id", id.String()).
				Wrap(newFieldError("email", MsgDuplicateEmail, ErrDuplicateEmail))
		}
		return nil, oops.Code("USER_UPDATE_FAILED").With("id", id.String()).Wrap(err)
	}
	return user, nil
}

// DeleteUser removes a user and ends all of their sessions.
func (s *Service) DeleteUser(ctx context.Context, id ulid.ULID) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return oops.Code("USER_DELETE_FAILED").With("id", id.String()).Wrap(err)
	}
	if err := s.sessions.RevokeAll(ctx, id); err != nil {
		// Leftover sessions fail authentication once the user is gone.
		s.logger.WarnContext(ctx, "failed to revoke sessions of deleted user",
			"user_id", id.String(),
			"error", err)
	}
	return nil
}
