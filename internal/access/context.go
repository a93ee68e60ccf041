// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

package access

import "context"

type subjectKey struct{}

// WithSubject stores the caller's subject in ctx.
func WithSubject(ctx context.Context, s Subject) context.Context {
	return context.WithValue(ctx, subjectKey{}, s)
}

// SubjectFromContext returns the subject stored by WithSubject, or
// Anonymous.
func SubjectFromContext(ctx context.Context) Subject {
	if s, ok := ctx.Value(subjectKey{}).(Subject); ok {
		return s
	}
	return Anonymous
}
