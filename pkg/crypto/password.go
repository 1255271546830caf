package crypto

import (
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password accepted at signup.
const MinPasswordLength = 8

// ErrWeakPassword is returned when a password does not meet the signup policy.
var ErrWeakPassword = errors.New("password must be at least 8 characters")

// ErrPasswordMismatch is returned when a password does not match its hash.
var ErrPasswordMismatch = errors.New("invalid credentials")

// HashPassword validates plaintext against the policy and hashes it with bcrypt.
func HashPassword(plain string) ([]byte, error) {
	if utf8.RuneCountInString(strings.TrimSpace(plain)) < MinPasswordLength {
		return nil, ErrWeakPassword
	}
	return bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
}

// ComparePassword compares plaintext to hashed secret.
func ComparePassword(hash []byte, plain string) error {
	if err := bcrypt.CompareHashAndPassword(hash, []byte(plain)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return err
	}
	return nil
}
