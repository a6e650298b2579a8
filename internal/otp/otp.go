// Package otp generates and validates the short numeric codes used for
// email verification and password reset.
package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	apperrors "github.com/vodhub/auth-service/pkg/errors"
)

// Defaults for code length and lifetime.
const (
	DefaultLength        = 4
	DefaultExpiryMinutes = 2
)

// Validation failure reasons, ordered by precedence: a missing code is
// reported before a mismatch, and a mismatch before expiry.
var (
	ErrNoCodeIssued = apperrors.InvalidCode("no verification code was issued")
	ErrCodeMismatch = apperrors.InvalidCode("invalid verification code")
	ErrCodeExpired  = apperrors.InvalidCode("verification code has expired")
)

// Generator produces numeric one-time codes.
type Generator struct {
	length        int
	expiryMinutes int
}

// NewGenerator creates a generator with the given code length and expiry in
// minutes. Non-positive values fall back to the defaults.
func NewGenerator(length, expiryMinutes int) *Generator {
	if length <= 0 {
		length = DefaultLength
	}
	if expiryMinutes <= 0 {
		expiryMinutes = DefaultExpiryMinutes
	}
	return &Generator{length: length, expiryMinutes: expiryMinutes}
}

// Generate returns a random decimal code of the configured length, drawn
// from crypto/rand. Leading zeros are allowed.
func (g *Generator) Generate() (string, error) {
	digits := make([]byte, g.length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generate otp digit: %w", err)
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}

// ExpiryAt returns the expiry timestamp for a code issued now.
func (g *Generator) ExpiryAt() time.Time {
	return time.Now().UTC().Add(time.Duration(g.expiryMinutes) * time.Minute)
}

// IsExpired reports whether the given expiry has passed. A nil expiry is
// treated as expired.
func IsExpired(expiresAt *time.Time) bool {
	if expiresAt == nil {
		return true
	}
	return time.Now().UTC().After(*expiresAt)
}

// Validate checks a provided code against the stored code and expiry.
func (g *Generator) Validate(provided, stored string, expiresAt *time.Time) error {
	return Validate(provided, stored, expiresAt)
}

// Validate checks a provided code against the stored code and expiry.
// The comparison is exact and case-sensitive. Checks run in a fixed order
// so a code that is both wrong and expired reports the mismatch.
func Validate(provided, stored string, expiresAt *time.Time) error {
	if stored == "" {
		return ErrNoCodeIssued
	}
	if provided != stored {
		return ErrCodeMismatch
	}
	if IsExpired(expiresAt) {
		return ErrCodeExpired
	}
	return nil
}
