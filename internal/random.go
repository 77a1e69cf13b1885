package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// SessionIDBytes is the entropy of a server-side session id.
const SessionIDBytes = 16

var errIDLength = errors.New("random id length must be positive")

// RandomID returns n bytes from crypto/rand as unpadded base64url.
func RandomID(n int) (string, error) {
	if n <= 0 {
		return "", errIDLength
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewSessionID returns a fresh 22-character session id.
func NewSessionID() (string, error) {
	return RandomID(SessionIDBytes)
}
