package utils

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyPassword is returned when an account would get a blank password.
var ErrEmptyPassword = errors.New("password must not be empty")

// HashPassword hashes an account password for the users table.  cost is
// BCRYPT_COST; values outside bcrypt's range fall back to the default.
func HashPassword(plain string, cost int) (string, error) {
	if strings.TrimSpace(plain) == "" {
		return "", ErrEmptyPassword
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches the stored hash.  Login
// answers a mismatch the same way as an unknown email.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
