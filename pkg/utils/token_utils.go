// Package utils provides small helpers shared across sessiond packages.
package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// NewOpaqueToken returns a URL-safe random token carrying byteLen bytes of
// entropy, never fewer than 16 bytes. Bearer and refresh tokens use 32 bytes;
// OAuth state tokens use 16.
func NewOpaqueToken(byteLen int) (string, error) {
	if byteLen < 16 {
		byteLen = 16
	}
	buf := make([]byte, byteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// MustOpaqueToken is NewOpaqueToken for call sites where a failing CSPRNG is
// unrecoverable anyway.
func MustOpaqueToken(byteLen int) string {
	token, err := NewOpaqueToken(byteLen)
	if err != nil {
		panic(err)
	}
	return token
}
