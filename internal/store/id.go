package store

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const (
	txHashBytes   = 32
	idMaxAttempts = 20
)

// GenerateTransactionHash returns a new 64-char hex transaction hash.
// It retries on collisions using the provided exists function.
func GenerateTransactionHash(exists func(string) (bool, error)) (string, error) {
	for i := 0; i < idMaxAttempts; i++ {
		hash, err := randomHex(txHashBytes)
		if err != nil {
			return "", err
		}
		if exists == nil {
			return hash, nil
		}
		ok, err := exists(hash)
		if err != nil {
			return "", err
		}
		if !ok {
			return hash, nil
		}
	}

	return "", fmt.Errorf("unable to generate unique transaction hash")
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
