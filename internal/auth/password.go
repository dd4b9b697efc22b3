// Package auth provides password hashing and signed identity tokens.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultPasswordCost is the bcrypt work factor used for new hashes.
// Verification reads the cost from the stored hash, so changing it does not
// invalidate existing hashes.
const DefaultPasswordCost = 12

var (
	// ErrEmptyPassword indicates an empty password was passed for hashing.
	ErrEmptyPassword = errors.New("password must not be empty")
	// ErrPasswordMismatch indicates the password does not match the hash.
	ErrPasswordMismatch = errors.New("password does not match hash")
	// ErrInvalidCost indicates a bcrypt cost outside the supported range.
	ErrInvalidCost = errors.New("invalid bcrypt cost")
	// ErrPasswordTooLong indicates the password exceeds bcrypt's 72 byte input limit.
	ErrPasswordTooLong = bcrypt.ErrPasswordTooLong
)

// HashError reports a failure of the hashing primitive itself.
// It is not caused by user input and callers should treat it as fatal.
type HashError struct {
	Err error
}

func (e *HashError) Error() string {
	return "hash password: " + e.Err.Error()
}

func (e *HashError) Unwrap() error {
	return e.Err
}

// ValidateCost checks that cost is accepted by bcrypt.
func ValidateCost(cost int) error {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return fmt.Errorf("%w: %d (must be %d-%d)", ErrInvalidCost, cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return nil
}

// HashPassword creates a salted bcrypt hash of the password.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if err := ValidateCost(cost); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", &HashError{Err: err}
	}

	return string(hash), nil
}

// VerifyPassword checks if the password matches the hash.
// Returns ErrPasswordMismatch for a wrong password; any other error means the
// stored hash is unusable.
func VerifyPassword(password, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return fmt.Errorf("verify password: %w", err)
}
