package utils

import (
	"crypto/rand"
	"encoding/hex"
)

const sessionTokenBytes = 32

// GenerateSessionToken returns the opaque bearer token handed to the SPA.
func GenerateSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
