package postgres

import (
	"context"
	"database/sql"
	goerrors "errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/soleron/sessiond/internal/domain/models"
	"github.com/soleron/sessiond/internal/domain/repository"
	"github.com/soleron/sessiond/pkg/errors"
	"github.com/soleron/sessiond/pkg/logger"
)

// SessionRepositoryImpl implements repository.SessionRepository on
// PostgreSQL. Expected schema:
//
//	CREATE TABLE sessions (
//	    id                 TEXT PRIMARY KEY,
//	    user_id            TEXT NOT NULL,
//	    token              TEXT NOT NULL UNIQUE,
//	    refresh_token      TEXT UNIQUE,
//	    expires_at         TIMESTAMPTZ NOT NULL,
//	    ip_address         TEXT,
//	    user_agent         TEXT,
//	    device_fingerprint TEXT,
//	    is_active          BOOLEAN NOT NULL DEFAULT TRUE,
//	    last_activity      TIMESTAMPTZ NOT NULL,
//	    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
//	CREATE INDEX sessions_user_active_idx ON sessions (user_id) WHERE is_active;
type SessionRepositoryImpl struct {
	db     *DBConnection
	logger logger.Logger
}

// NewSessionRepository creates a PostgreSQL session repository.
func NewSessionRepository(db *DBConnection, log logger.Logger) repository.SessionRepository {
	return &SessionRepositoryImpl{
		db:     db,
		logger: log.WithComponent("SessionRepository"),
	}
}

const sessionColumns = `
	id, user_id, token, refresh_token, expires_at,
	ip_address, user_agent, device_fingerprint,
	is_active, last_activity, created_at, updated_at`

// Create persists a new session row.
func (r *SessionRepositoryImpl) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		session.ID,
		session.UserID,
		session.Token,
		nullableString(session.RefreshToken),
		session.ExpiresAt,
		nullableString(session.IPAddress),
		nullableString(session.UserAgent),
		nullableString(string(session.Fingerprint)),
		session.IsActive,
		session.LastActivity,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		r.logger.Error(ctx, "Failed to insert session", err, logger.Fields{
			"session_id": session.ID,
			"user_id":    session.UserID,
		})
		return errors.ErrDatabaseOperation.WithError(err)
	}
	return nil
}

// FindByID fetches a session by its internal identifier.
func (r *SessionRepositoryImpl) FindByID(ctx context.Context, id string) (*models.Session, error) {
	return r.findOne(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
}

// FindByToken fetches a session by its opaque bearer token.
func (r *SessionRepositoryImpl) FindByToken(ctx context.Context, token string) (*models.Session, error) {
	return r.findOne(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE token = $1`, token)
}

// FindByRefreshToken fetches a session by its refresh token.
func (r *SessionRepositoryImpl) FindByRefreshToken(ctx context.Context, refreshToken string) (*models.Session, error) {
	return r.findOne(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE refresh_token = $1`, refreshToken)
}

// FindActiveByUser enumerates a user's active, unexpired sessions ordered by
// most recent activity.
func (r *SessionRepositoryImpl) FindActiveByUser(ctx context.Context, userID string) ([]*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1 AND is_active AND expires_at > NOW()
		ORDER BY last_activity DESC
	`

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, errors.ErrDatabaseOperation.WithError(err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, errors.ErrDatabaseOperation.WithError(err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.ErrDatabaseOperation.WithError(err)
	}
	return sessions, nil
}

// Rotate writes back a rotated token pair. The WHERE clause pins the row to
// the refresh token the caller consumed, so of two concurrent refreshes only
// the first can match; the second affects zero rows.
func (r *SessionRepositoryImpl) Rotate(ctx context.Context, session *models.Session, previousRefreshToken string) error {
	query := `
		UPDATE sessions SET
			token = $2,
			refresh_token = $3,
			expires_at = $4,
			last_activity = $5,
			updated_at = $6
		WHERE id = $1 AND refresh_token = $7
	`

	tag, err := r.db.Pool().Exec(ctx, query,
		session.ID,
		session.Token,
		nullableString(session.RefreshToken),
		session.ExpiresAt,
		session.LastActivity,
		session.UpdatedAt,
		previousRefreshToken,
	)
	if err != nil {
		return errors.ErrDatabaseOperation.WithError(err)
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrInvalidRefreshToken
	}
	return nil
}

// MarkInactive performs a logical delete of one session.
func (r *SessionRepositoryImpl) MarkInactive(ctx context.Context, id string) error {
	query := `UPDATE sessions SET is_active = FALSE, updated_at = NOW() WHERE id = $1`
	tag, err := r.db.Pool().Exec(ctx, query, id)
	if err != nil {
		return errors.ErrDatabaseOperation.WithError(err)
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrSessionNotFound
	}
	return nil
}

// MarkInactiveByUser logically deletes every active session a user owns.
func (r *SessionRepositoryImpl) MarkInactiveByUser(ctx context.Context, userID string) (int64, error) {
	query := `UPDATE sessions SET is_active = FALSE, updated_at = NOW() WHERE user_id = $1 AND is_active`
	tag, err := r.db.Pool().Exec(ctx, query, userID)
	if err != nil {
		return 0, errors.ErrDatabaseOperation.WithError(err)
	}
	return tag.RowsAffected(), nil
}

// DeleteExpired physically removes sessions expired before cutoff.
func (r *SessionRepositoryImpl) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool().Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, errors.ErrDatabaseOperation.WithError(err)
	}
	return tag.RowsAffected(), nil
}

// DeleteInactive physically removes sessions inactive since before cutoff.
func (r *SessionRepositoryImpl) DeleteInactive(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool().Exec(ctx, `DELETE FROM sessions WHERE NOT is_active AND updated_at < $1`, cutoff)
	if err != nil {
		return 0, errors.ErrDatabaseOperation.WithError(err)
	}
	return tag.RowsAffected(), nil
}

func (r *SessionRepositoryImpl) findOne(ctx context.Context, query string, arg interface{}) (*models.Session, error) {
	session, err := scanSession(r.db.Pool().QueryRow(ctx, query, arg))
	if err != nil {
		if goerrors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.ErrDatabaseOperation.WithError(err)
	}
	return session, nil
}

func scanSession(row pgx.Row) (*models.Session, error) {
	session := &models.Session{}
	var refreshToken, ipAddress, userAgent, fingerprint sql.NullString

	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&refreshToken,
		&session.ExpiresAt,
		&ipAddress,
		&userAgent,
		&fingerprint,
		&session.IsActive,
		&session.LastActivity,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	session.RefreshToken = refreshToken.String
	session.IPAddress = ipAddress.String
	session.UserAgent = userAgent.String
	session.Fingerprint = models.DeviceFingerprint(fingerprint.String)
	return session, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
