// Package service contains sessiond's domain services and the store contracts
// they depend on.
package service

import (
	"context"
	"time"

	"github.com/soleron/sessiond/internal/domain/models"
)

// OAuthStateStore holds one-time OAuth correlation records in the shared
// store. Save must commit before any Get for the same token can succeed; the
// shared store is the single source of truth and records are never cached
// in-process.
type OAuthStateStore interface {
	// Save writes the record under token with the given TTL. Overwriting an
	// existing token is last-write-wins.
	Save(ctx context.Context, token string, record *models.OAuthStateRecord, ttl time.Duration) error

	// Get retrieves and atomically removes the record. (nil, nil) means the
	// token was never written, already consumed, or expired: an expected
	// outcome representing an invalid or replayed authorization attempt.
	Get(ctx context.Context, token string) (*models.OAuthStateRecord, error)

	// Delete invalidates a record explicitly. Idempotent.
	Delete(ctx context.Context, token string) error

	// CleanupExpired is a best-effort diagnostic scan; the store's own TTL
	// mechanism is the authoritative expiry enforcement.
	CleanupExpired(ctx context.Context) (int, error)

	// Count reports the number of live records.
	Count(ctx context.Context) (int, error)
}

// AuditService records security-signal events.
type AuditService interface {
	RecordEvent(ctx context.Context, event *models.SecurityEvent) error
}

// MetricsRecorder is the observability hook the domain services report
// through. The Prometheus-backed implementation lives in
// internal/infrastructure/monitoring.
type MetricsRecorder interface {
	RecordStateSave()
	RecordStateConsume(result string)
	RecordSessionIssued()
	RecordSessionRefresh(result string)
	RecordSessionRevocations(count int64)
	RecordSecuritySignal(eventType string)
}
