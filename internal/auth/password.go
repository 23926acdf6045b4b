package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashSecret returns the bcrypt hash an AUTH_*_API_KEY_HASH variable expects.
func HashSecret(secret string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", fmt.Errorf("hash api key: %w", err)
	}
	return string(hashed), nil
}

// CompareSecret returns nil when plain matches hashed.
func CompareSecret(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
