package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Credential fingerprints are bcrypt hashes of the sha256 of the supplied key.
// Pre-hashing keeps long keys under bcrypt's 72-byte input limit.

// ValidateCost checks a configured bcrypt cost, treating 0 as the default.
func ValidateCost(cost int) (int, error) {
	if cost == 0 {
		return bcrypt.DefaultCost, nil
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return 0, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return cost, nil
}

// FingerprintCredential hashes one credential for persistent storage.
func FingerprintCredential(credential string, cost int) (string, error) {
	if strings.TrimSpace(credential) == "" {
		return "", fmt.Errorf("credential is required")
	}
	cost, err := ValidateCost(cost)
	if err != nil {
		return "", err
	}
	hashed, err := bcrypt.GenerateFromPassword(prehash(credential), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// TokenMatches compares a presented token to the expected one in constant time.
func TokenMatches(expected, presented string) bool {
	if expected == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) == 1
}

func prehash(credential string) []byte {
	sum := sha256.Sum256([]byte(credential))
	return []byte(hex.EncodeToString(sum[:]))
}
