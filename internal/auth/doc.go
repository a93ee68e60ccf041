// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

// Package auth implements user accounts and authentication for the
// parking API.
//
// # Domain Types
//
// Domain types should be created through their constructors:
//   - NewUser - normalizes email and phone and assigns an ID
//   - NewWebSession - creates a WebSession with validated user and expiry
//
// Request payloads (RegisterInput, LoginInput, UserUpdate,
// ChangePasswordInput) are checked by a Validator; password rules live in
// a PasswordPolicy. Every problem found in one request is reported in a
// single *ValidationError.
//
// # Services
//
//   - SessionManager - login, logout and token authentication
//   - Service - registration, login, password changes and user management
//
// Repositories live in the postgres, redis and memory subpackages.
package auth
