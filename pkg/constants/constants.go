// Package constants defines system-wide constants for sessiond.
package constants

import "time"

// ================================================================================
// Shared-store key prefixes
// ================================================================================

const (
	// OAuthStateKeyPrefix namespaces ephemeral OAuth correlation records in Redis.
	OAuthStateKeyPrefix = "oauth_state:"
)

// ================================================================================
// Lifetime defaults
// ================================================================================

const (
	// OAuthStateDefaultTTL is the default validity window for a state record.
	OAuthStateDefaultTTL = 600 * time.Second

	// SessionTokenDefaultTTL is the default lifetime of a bearer token.
	SessionTokenDefaultTTL = 24 * time.Hour

	// RefreshTokenDefaultTTL is the default refresh window, measured from the
	// session's last activity.
	RefreshTokenDefaultTTL = 30 * 24 * time.Hour

	// InactiveRetentionDefault is how long revoked sessions stay on disk before
	// the maintenance sweep removes them.
	InactiveRetentionDefault = 90 * 24 * time.Hour

	// CSRFSecretTTL bounds how long a server-side CSRF secret stays valid.
	CSRFSecretTTL = 1 * time.Hour

	// ConnectWaitTimeout bounds how long concurrent callers wait for an
	// in-flight shared-store connect to settle.
	ConnectWaitTimeout = 5 * time.Second
)

// ================================================================================
// HTTP surface
// ================================================================================

const (
	// CSRFCookieName is the default cookie carrying the double-submit token.
	CSRFCookieName = "sessiond_csrf"

	// CSRFHeaderName is the header the client echoes the token through.
	CSRFHeaderName = "X-CSRF-Token"

	// CSRFFormField is the form-field fallback for the token.
	CSRFFormField = "csrf_token"
)

// ================================================================================
// Context keys
// ================================================================================

// ContextKey is the type used for values sessiond places in a request context.
type ContextKey string

const (
	// ContextKeySession carries the authenticated *models.Session.
	ContextKeySession ContextKey = "sessiond_session"

	// ContextKeyTraceID carries the request trace identifier for log enrichment.
	ContextKeyTraceID ContextKey = "sessiond_trace_id"
)

// ================================================================================
// Security-signal event types
// ================================================================================

const (
	// EventFingerprintMismatch records a session presented from a device whose
	// recomputed fingerprint differs from the one bound at issuance.
	EventFingerprintMismatch = "fingerprint_mismatch"

	// EventCSRFRejected records a state-changing request that failed
	// double-submit validation.
	EventCSRFRejected = "csrf_rejected"

	// EventSessionsRevoked records an explicit or bulk revocation.
	EventSessionsRevoked = "sessions_revoked"
)
