package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// NewSessionID generates a cryptographically secure session identifier.
// 32 bytes = 256 bits of entropy, URL-safe so it survives cookies and
// Authorization headers unescaped.
func NewSessionID() (string, error) {
	const size = 32

	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session: failed to generate id: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}
