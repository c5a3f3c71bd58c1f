package models

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// DeviceFingerprint is the hash binding a session to the device
// characteristics observed at issuance. It is always recomputed server-side
// from the current request and never trusted from client input.
type DeviceFingerprint string

// DeviceContext carries the request attributes a fingerprint is derived from.
type DeviceContext struct {
	IPAddress string
	UserAgent string
	// Extras holds additional caller-supplied device signals (e.g. accepted
	// languages). Order matters: the fingerprint is a hash of the canonical
	// sequence.
	Extras []string
}

// Fingerprint computes the device fingerprint for this context. It is a pure
// function: equal contexts always produce equal fingerprints.
func (d DeviceContext) Fingerprint() DeviceFingerprint {
	parts := append([]string{d.IPAddress, d.UserAgent}, d.Extras...)
	sum := sha256.Sum256([]byte(strings.Join(parts, "\n")))
	return DeviceFingerprint(hex.EncodeToString(sum[:]))
}

// Matches compares two fingerprints in constant time. Fingerprints are
// security-sensitive values; a timing side channel here would let an attacker
// search for a matching device profile byte by byte.
func (f DeviceFingerprint) Matches(other DeviceFingerprint) bool {
	return subtle.ConstantTimeCompare([]byte(f), []byte(other)) == 1
}
