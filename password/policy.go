package password

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
	ErrPasswordInvalid  = errors.New("password contains invalid characters")
)

const defaultPolicyMaxLength = 1024

// Policy bounds the length of a new password, counted in runes. Zero
// values fall back to the Argon2 minimum and 1024.
type Policy struct {
	MinLength int
	MaxLength int
}

// Validate checks p against the policy. It rejects invalid UTF-8, NUL
// bytes and passwords that are entirely whitespace.
func (pol Policy) Validate(p string) error {
	minLen, maxLen := pol.MinLength, pol.MaxLength
	if minLen <= 0 {
		minLen = minPassBytes
	}
	if maxLen <= 0 {
		maxLen = defaultPolicyMaxLength
	}

	if !utf8.ValidString(p) || strings.IndexByte(p, 0) >= 0 {
		return ErrPasswordInvalid
	}
	if strings.TrimSpace(p) == "" {
		return ErrPasswordTooShort
	}
	n := utf8.RuneCountInString(p)
	if n < minLen {
		return fmt.Errorf("%w: need at least %d characters", ErrPasswordTooShort, minLen)
	}
	if n > maxLen {
		return fmt.Errorf("%w: at most %d characters", ErrPasswordTooLong, maxLen)
	}
	return nil
}

// ValidatePolicy is shorthand for Policy{MinLength: minLen, MaxLength: maxLen}.Validate(p).
func ValidatePolicy(p string, minLen, maxLen int) error {
	return Policy{MinLength: minLen, MaxLength: maxLen}.Validate(p)
}
