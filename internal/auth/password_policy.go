// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

package auth

import (
	"bufio"
	"bytes"
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// Password policy defaults.
const (
	DefaultMinPasswordLength = 8
	DefaultMaxSimilarity     = 0.7
)

// PasswordValidator checks one password rule. It returns the messages to
// show when the rule is broken, or nil. user carries the attributes the
// password is compared against and may be nil.
type PasswordValidator interface {
	Check(password string, user *User) []string
}

// PasswordPolicy runs a list of validators and reports every violation.
type PasswordPolicy struct {
	validators []PasswordValidator
}

// NewPasswordPolicy builds a policy from explicit validators.
func NewPasswordPolicy(validators ...PasswordValidator) *PasswordPolicy {
	return &PasswordPolicy{validators: validators}
}

// DefaultPasswordPolicy returns the standard rule set with the given
// minimum length. Lengths below DefaultMinPasswordLength are raised to it.
func DefaultPasswordPolicy(minLength int) *PasswordPolicy {
	if minLength < DefaultMinPasswordLength {
		minLength = DefaultMinPasswordLength
	}
	return NewPasswordPolicy(
		UserAttributeSimilarityValidator{MaxSimilarity: DefaultMaxSimilarity},
		MinimumLengthValidator{MinLength: minLength},
		CommonPasswordValidator{},
		NumericPasswordValidator{},
	)
}

// Validate checks password against every rule and returns the collected
// messages under field, or nil if the password is acceptable.
func (p *PasswordPolicy) Validate(field, password string, user *User) *ValidationError {
	var ve *ValidationError
	for _, v := range p.validators {
		for _, msg := range v.Check(password, user) {
			if ve == nil {
				ve = NewValidationError()
			}
			ve.Add(field, msg)
		}
	}
	return ve
}

// MinimumLengthValidator rejects passwords shorter than MinLength runes.
type MinimumLengthValidator struct {
	MinLength int
}

// Check implements PasswordValidator.
func (v MinimumLengthValidator) Check(password string, _ *User) []string {
	if utf8.RuneCountInString(password) >= v.MinLength {
		return nil
	}
	unit := "characters"
	if v.MinLength == 1 {
		unit = "character"
	}
	return []string{fmt.Sprintf("This password is too short. It must contain at least %d %s.", v.MinLength, unit)}
}

//go:embed common_passwords.txt
var commonPasswordsFile []byte

var (
	commonPasswordsOnce sync.Once
	commonPasswords     map[string]struct{}
)

func loadCommonPasswords() map[string]struct{} {
	commonPasswordsOnce.Do(func() {
		commonPasswords = make(map[string]struct{}, 1024)
		sc := bufio.NewScanner(bytes.NewReader(commonPasswordsFile))
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			commonPasswords[strings.ToLower(line)] = struct{}{}
		}
	})
	return commonPasswords
}

// CommonPasswordValidator rejects passwords found in the embedded list of
// frequently used passwords. The comparison ignores case and surrounding
// whitespace.
type CommonPasswordValidator struct{}

// Check implements PasswordValidator.
func (CommonPasswordValidator) Check(password string, _ *User) []string {
	if _, ok := loadCommonPasswords()[strings.ToLower(strings.TrimSpace(password))]; ok {
		return []string{"This password is too common."}
	}
	return nil
}

// NumericPasswordValidator rejects passwords made only of digits.
type NumericPasswordValidator struct{}

// Check implements PasswordValidator.
func (NumericPasswordValidator) Check(password string, _ *User) []string {
	if password == "" {
		return nil
	}
	for _, r := range password {
		if !unicode.IsDigit(r) {
			return nil
		}
	}
	return []string{"This password is entirely numeric."}
}

var nonWord = regexp.MustCompile(`\W+`)

// UserAttributeSimilarityValidator rejects passwords that resemble the
// user's email or phone, or any word-separated part of them.
type UserAttributeSimilarityValidator struct {
	MaxSimilarity float64
}

// Check implements PasswordValidator.
func (v UserAttributeSimilarityValidator) Check(password string, user *User) []string {
	if user == nil {
		return nil
	}
	password = strings.ToLower(password)

	attrs := []struct{ name, value string }{
		{"email", user.Email},
		{"phone", user.Phone},
	}
	for _, attr := range attrs {
		if attr.value == "" {
			continue
		}
		value := strings.ToLower(attr.value)
		parts := append(nonWord.Split(value, -1), value)
		for _, part := range parts {
			if exceedsLengthRatio(password, v.MaxSimilarity, part) {
				continue
			}
			if quickRatio(password, part) >= v.MaxSimilarity {
				return []string{fmt.Sprintf("The password is too similar to the %s.", attr.name)}
			}
		}
	}
	return nil
}

// exceedsLengthRatio reports whether value is so much shorter than the
// password that it cannot reach maxSimilarity.
func exceedsLengthRatio(password string, maxSimilarity float64, value string) bool {
	pwdLen := utf8.RuneCountInString(password)
	valueLen := utf8.RuneCountInString(value)
	bound := maxSimilarity / 2 * float64(pwdLen)
	return pwdLen >= 10*valueLen && float64(valueLen) < bound
}

// quickRatio is an upper bound on the similarity of a and b: twice the
// size of their rune multiset intersection over their combined length.
func quickRatio(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 1
	}
	avail := make(map[rune]int)
	for _, r := range b {
		avail[r]++
	}
	matches := 0
	for _, r := range a {
		if avail[r] > 0 {
			avail[r]--
			matches++
		}
	}
	return 2 * float64(matches) / float64(total)
}
