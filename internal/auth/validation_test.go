// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

package auth_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stornco/parking/internal/auth"
)

func validationErr(t *testing.T, err error) *auth.ValidationError {
	t.Helper()
	var ve *auth.ValidationError
	require.True(t, errors.As(err, &ve), "expected *auth.ValidationError, got %v", err)
	return ve
}

func TestValidator_RegisterInput(t *testing.T) {
	v := auth.NewValidator()
	valid := auth.RegisterInput{Email: "driver@example.com", Phone: "5551234567", Password: "irrelevant"}

	t.Run("valid input passes", func(t *testing.T) {
		assert.NoError(t, v.Struct(valid))
	})

	t.Run("missing fields are each required", func(t *testing.T) {
		ve := validationErr(t, v.Struct(auth.RegisterInput{}))
		assert.Equal(t, []string{auth.MsgRequired}, ve.Fields["email"])
		assert.Equal(t, []string{auth.MsgRequired}, ve.Fields["phone"])
		assert.Equal(t, []string{auth.MsgRequired}, ve.Fields["password"])
	})

	t.Run("invalid email", func(t *testing.T) {
		in := valid
		in.Email = "not-an-email"
		ve := validationErr(t, v.Struct(in))
		assert.Equal(t, []string{auth.MsgInvalidEmail}, ve.Fields["email"])
	})

	t.Run("email longer than 254 characters", func(t *testing.T) {
		in := valid
		in.Email = strings.Repeat("a", 64) + "@" + strings.Repeat("b", 186) + ".com"
		require.Len(t, in.Email, 255)
		ve := validationErr(t, v.Struct(in))
		assert.Equal(t, []string{"Ensure this field has no more than 254 characters."}, ve.Fields["email"])
	})

	phones := []struct {
		name  string
		phone string
		ok    bool
	}{
		{"9 characters", "123456789", false},
		{"10 characters", "1234567890", true},
		{"20 characters", "12345678901234567890", true},
		{"21 characters", "123456789012345678901", false},
	}
	for _, tt := range phones {
		t.Run("phone "+tt.name, func(t *testing.T) {
			in := valid
			in.Phone = tt.phone
			err := v.Struct(in)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			ve := validationErr(t, err)
			assert.True(t, ve.HasField("phone"))
		})
	}

	t.Run("phone length counts characters after trimming", func(t *testing.T) {
		in := valid
		in.Phone = "   123456789   "
		in.Normalize()
		ve := validationErr(t, v.Struct(in))
		assert.Equal(t, []string{"Ensure this field has at least 10 characters."}, ve.Fields["phone"])
	})
}

func TestValidator_UserUpdate(t *testing.T) {
	v := auth.NewValidator()
	str := func(s string) *string { return &s }

	t.Run("absent fields are skipped", func(t *testing.T) {
		assert.NoError(t, v.Struct(auth.UserUpdate{}))
	})

	t.Run("present but blank fields are rejected", func(t *testing.T) {
		ve := validationErr(t, v.Struct(auth.UserUpdate{Email: str(""), Phone: str("")}))
		assert.Equal(t, []string{auth.MsgRequired}, ve.Fields["email"])
		assert.Equal(t, []string{auth.MsgRequired}, ve.Fields["phone"])

		ve = validationErr(t, v.Struct(auth.UserUpdate{Email: str("   ")}))
		assert.Equal(t, map[string][]string{"email": {auth.MsgRequired}}, ve.Fields)
	})

	t.Run("password is not validated as a field rule", func(t *testing.T) {
		assert.NoError(t, v.Struct(auth.UserUpdate{Password: str("anything")}))
	})
}

func TestValidator_RejectsNonStruct(t *testing.T) {
	err := auth.NewValidator().Struct("not a struct")
	require.Error(t, err)
	var ve *auth.ValidationError
	assert.False(t, errors.As(err, &ve))
}
