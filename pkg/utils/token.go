package utils

import (
	"crypto/rand"
	"encoding/base64"
)

// NewShareToken returns 32 random bytes encoded as unpadded base64url
func NewShareToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
