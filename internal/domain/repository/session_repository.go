// Package repository defines the persistence ports for sessiond's durable
// entities. Implementations live under internal/infrastructure/persistence.
package repository

import (
	"context"
	"time"

	"github.com/soleron/sessiond/internal/domain/models"
)

// SessionRepository is the durable-store contract for session rows. Lookups
// that find nothing return (nil, nil): absence is an expected outcome, not an
// error.
type SessionRepository interface {
	// Create persists a new session row.
	Create(ctx context.Context, session *models.Session) error

	// FindByID fetches a session by its internal identifier.
	FindByID(ctx context.Context, id string) (*models.Session, error)

	// FindByToken fetches a session by its opaque bearer token.
	FindByToken(ctx context.Context, token string) (*models.Session, error)

	// FindByRefreshToken fetches a session by its refresh token.
	FindByRefreshToken(ctx context.Context, refreshToken string) (*models.Session, error)

	// FindActiveByUser enumerates a user's active, unexpired sessions.
	FindActiveByUser(ctx context.Context, userID string) ([]*models.Session, error)

	// Rotate writes back a rotated token pair, conditional on the row still
	// holding previousRefreshToken. The condition makes rotation single-use
	// under concurrent refreshes: the loser of a race observes
	// ErrInvalidRefreshToken.
	Rotate(ctx context.Context, session *models.Session, previousRefreshToken string) error

	// MarkInactive performs a logical delete of one session.
	MarkInactive(ctx context.Context, id string) error

	// MarkInactiveByUser logically deletes every active session a user owns
	// and returns the number affected.
	MarkInactiveByUser(ctx context.Context, userID string) (int64, error)

	// DeleteExpired physically removes sessions whose expiry predates cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)

	// DeleteInactive physically removes sessions that have been inactive
	// since before cutoff.
	DeleteInactive(ctx context.Context, cutoff time.Time) (int64, error)
}
