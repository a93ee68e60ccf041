// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

package auth

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/samber/oops"
)

// RegisterInput is the payload accepted by Register.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,max=254,email"`
	Phone    string `json:"phone" validate:"required,min=10,max=20"`
	Password string `json:"password" validate:"required"`
}

// LoginInput is the payload accepted by Login. Only shape is checked;
// uniqueness does not apply.
type LoginInput struct {
	Email    string `json:"email" validate:"required,max=254,email"`
	Password string `json:"password" validate:"required"`
}

// UserUpdate carries the fields an administrator may change. A nil field
// is left untouched by a partial update and is required by a full one; a
// blank one is always required.
type UserUpdate struct {
	Email *string `json:"email" validate:"omitnil,notblank,max=254,email"`
	Phone *string `json:"phone" validate:"omitnil,notblank,min=10,max=20"`

	// Password is never applied; passwords change through ChangePassword.
	Password *string `json:"password" validate:"-"`
}

// ChangePasswordInput is the payload accepted by ChangePassword.
type ChangePasswordInput struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// Normalize trims and canonicalizes the input in place.
func (in *RegisterInput) Normalize() {
	in.Email = NormalizeEmail(in.Email)
	in.Phone = NormalizePhone(in.Phone)
}

// Normalize trims and canonicalizes the input in place.
func (in *LoginInput) Normalize() {
	in.Email = NormalizeEmail(in.Email)
}

// Normalize trims and canonicalizes the provided fields in place.
func (in *UserUpdate) Normalize() {
	if in.Email != nil {
		e := NormalizeEmail(*in.Email)
		in.Email = &e
	}
	if in.Phone != nil {
		p := NormalizePhone(*in.Phone)
		in.Phone = &p
	}
}

// Validator checks request payloads against their struct tags and reports
// every failing field at once.
type Validator struct {
	v *validator.Validate
}

// NewValidator creates a Validator that names fields by their json tag.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Only fails for an empty tag or a nil func.
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	return &Validator{v: v}
}

// Struct validates s and returns nil or a *ValidationError describing
// every failure. Programming errors (non-struct input) are returned as
// coded oops errors.
func (val *Validator) Struct(s any) error {
	ve, err := val.collect(s)
	if err != nil {
		return err
	}
	return ve.OrNil()
}

func (val *Validator) collect(s any) (*ValidationError, error) {
	ve := NewValidationError()
	err := val.v.Struct(s)
	if err == nil {
		return ve, nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return nil, oops.Code("VALIDATION_MISUSE").With("type", fmt.Sprintf("%T", s)).Wrap(err)
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil, oops.Code("VALIDATION_FAILED").Wrap(err)
	}
	for _, fe := range fieldErrs {
		ve.Add(fe.Field(), fieldMessage(fe))
	}
	return ve, nil
}

// fieldMessage maps a failed tag to the message shown to clients.
func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return MsgRequired
	case "email":
		return MsgInvalidEmail
	case "min":
		return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	default:
		return fmt.Sprintf("Invalid value (%s).", fe.Tag())
	}
}
