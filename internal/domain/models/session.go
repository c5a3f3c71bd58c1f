// Package models defines the domain entities sessiond coordinates: durable
// sessions, ephemeral OAuth state records, device fingerprints, and security
// audit events.
package models

import "time"

// Session is a long-lived, device-bound user session. Rows are owned
// exclusively by the session lifecycle service; no other component writes
// them.
type Session struct {
	ID            string
	UserID        string
	Token         string
	RefreshToken  string // empty means no refresh token; stored as NULL
	ExpiresAt     time.Time
	IPAddress     string
	UserAgent     string
	Fingerprint   DeviceFingerprint
	IsActive      bool
	LastActivity  time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Expired reports whether the bearer token lifetime has elapsed.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// RefreshableUntil returns the end of the refresh window, measured from the
// session's last activity.
func (s *Session) RefreshableUntil(refreshTTL time.Duration) time.Time {
	return s.LastActivity.Add(refreshTTL)
}

// Authenticatable reports whether the session may authenticate a request at
// all: it must be active and unexpired. An inactive session never
// authenticates, even if unexpired.
func (s *Session) Authenticatable(now time.Time) bool {
	return s.IsActive && !s.Expired(now)
}
