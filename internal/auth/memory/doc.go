// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

// Package memory provides in-process implementations of the auth
// repositories for development servers and tests. State is lost on exit.
package memory
