//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/soleron/sessiond/internal/config"
	"github.com/soleron/sessiond/internal/domain/models"
	"github.com/soleron/sessiond/pkg/errors"
	"github.com/soleron/sessiond/pkg/logger"
	"github.com/soleron/sessiond/pkg/utils"
)

const sessionsSchema = `
	CREATE TABLE IF NOT EXISTS sessions (
	    id                 TEXT PRIMARY KEY,
	    user_id            TEXT NOT NULL,
	    token              TEXT NOT NULL UNIQUE,
	    refresh_token      TEXT UNIQUE,
	    expires_at         TIMESTAMPTZ NOT NULL,
	    ip_address         TEXT,
	    user_agent         TEXT,
	    device_fingerprint TEXT,
	    is_active          BOOLEAN NOT NULL DEFAULT TRUE,
	    last_activity      TIMESTAMPTZ NOT NULL,
	    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS sessions_user_active_idx ON sessions (user_id) WHERE is_active;
`

type SessionRepositorySuite struct {
	suite.Suite
	container *tcpostgres.PostgresContainer
	db        *DBConnection
	repo      *SessionRepositoryImpl
}

func (s *SessionRepositorySuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("sessiond_test"),
		tcpostgres.WithUsername("sessiond"),
		tcpostgres.WithPassword("sessiond"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(s.T(), err)
	s.container = container

	host, err := container.Host(ctx)
	require.NoError(s.T(), err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(s.T(), err)

	cfg := &config.DatabaseConfig{
		Host:        host,
		Port:        port.Int(),
		User:        "sessiond",
		Password:    "sessiond",
		Database:    "sessiond_test",
		SSLMode:     "disable",
		MaxConns:    5,
		MinConns:    1,
		ConnTimeout: 10,
	}

	db, err := NewDBConnection(ctx, cfg, logger.NewNoopLogger())
	require.NoError(s.T(), err)
	s.db = db

	_, err = db.Pool().Exec(ctx, sessionsSchema)
	require.NoError(s.T(), err)

	s.repo = NewSessionRepository(db, logger.NewNoopLogger()).(*SessionRepositoryImpl)
}

func (s *SessionRepositorySuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

func (s *SessionRepositorySuite) SetupTest() {
	_, err := s.db.Pool().Exec(context.Background(), `TRUNCATE sessions`)
	s.Require().NoError(err)
}

func (s *SessionRepositorySuite) newSession(userID string) *models.Session {
	now := time.Now().UTC().Truncate(time.Microsecond)
	device := models.DeviceContext{IPAddress: "203.0.113.7", UserAgent: "Mozilla/5.0 (test)"}
	return &models.Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		Token:        utils.MustOpaqueToken(32),
		RefreshToken: utils.MustOpaqueToken(32),
		ExpiresAt:    now.Add(24 * time.Hour),
		IPAddress:    device.IPAddress,
		UserAgent:    device.UserAgent,
		Fingerprint:  device.Fingerprint(),
		IsActive:     true,
		LastActivity: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (s *SessionRepositorySuite) TestCreateAndFind() {
	ctx := context.Background()
	session := s.newSession("u1")
	s.Require().NoError(s.repo.Create(ctx, session))

	byID, err := s.repo.FindByID(ctx, session.ID)
	s.Require().NoError(err)
	s.Require().NotNil(byID)
	s.Equal(session.Token, byID.Token)
	s.Equal(session.Fingerprint, byID.Fingerprint)
	s.True(byID.IsActive)

	byToken, err := s.repo.FindByToken(ctx, session.Token)
	s.Require().NoError(err)
	s.Require().NotNil(byToken)
	s.Equal(session.ID, byToken.ID)

	byRefresh, err := s.repo.FindByRefreshToken(ctx, session.RefreshToken)
	s.Require().NoError(err)
	s.Require().NotNil(byRefresh)
	s.Equal(session.ID, byRefresh.ID)
}

func (s *SessionRepositorySuite) TestFindAbsentReturnsNil() {
	ctx := context.Background()

	got, err := s.repo.FindByToken(ctx, "no-such-token")
	s.Require().NoError(err)
	s.Nil(got)

	got, err = s.repo.FindByID(ctx, uuid.NewString())
	s.Require().NoError(err)
	s.Nil(got)
}

func (s *SessionRepositorySuite) TestRotateReplacesTokenPair() {
	ctx := context.Background()
	session := s.newSession("u1")
	s.Require().NoError(s.repo.Create(ctx, session))

	oldToken := session.Token
	oldRefresh := session.RefreshToken
	session.Token = utils.MustOpaqueToken(32)
	session.RefreshToken = utils.MustOpaqueToken(32)
	session.LastActivity = time.Now().UTC().Truncate(time.Microsecond)
	session.UpdatedAt = session.LastActivity
	s.Require().NoError(s.repo.Rotate(ctx, session, oldRefresh))

	stale, err := s.repo.FindByToken(ctx, oldToken)
	s.Require().NoError(err)
	s.Nil(stale)

	fresh, err := s.repo.FindByToken(ctx, session.Token)
	s.Require().NoError(err)
	s.Require().NotNil(fresh)
	s.Equal(session.ID, fresh.ID)
}

func (s *SessionRepositorySuite) TestRotateIsSingleUse() {
	ctx := context.Background()
	session := s.newSession("u1")
	s.Require().NoError(s.repo.Create(ctx, session))

	consumed := session.RefreshToken
	session.Token = utils.MustOpaqueToken(32)
	session.RefreshToken = utils.MustOpaqueToken(32)
	s.Require().NoError(s.repo.Rotate(ctx, session, consumed))

	// The consumed refresh token no longer matches the row; a second rotation
	// against it affects nothing.
	session.Token = utils.MustOpaqueToken(32)
	session.RefreshToken = utils.MustOpaqueToken(32)
	err := s.repo.Rotate(ctx, session, consumed)
	s.ErrorIs(err, errors.ErrInvalidRefreshToken)
}

func (s *SessionRepositorySuite) TestRotateMissingRowFails() {
	session := s.newSession("u1")
	err := s.repo.Rotate(context.Background(), session, session.RefreshToken)
	s.ErrorIs(err, errors.ErrInvalidRefreshToken)
}

func (s *SessionRepositorySuite) TestMarkInactive() {
	ctx := context.Background()
	session := s.newSession("u1")
	s.Require().NoError(s.repo.Create(ctx, session))

	s.Require().NoError(s.repo.MarkInactive(ctx, session.ID))

	got, err := s.repo.FindByID(ctx, session.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.False(got.IsActive)

	s.ErrorIs(s.repo.MarkInactive(ctx, uuid.NewString()), errors.ErrSessionNotFound)
}

func (s *SessionRepositorySuite) TestMarkInactiveByUser() {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		s.Require().NoError(s.repo.Create(ctx, s.newSession("u1")))
	}
	other := s.newSession("u2")
	s.Require().NoError(s.repo.Create(ctx, other))

	count, err := s.repo.MarkInactiveByUser(ctx, "u1")
	s.Require().NoError(err)
	s.EqualValues(3, count)

	active, err := s.repo.FindActiveByUser(ctx, "u1")
	s.Require().NoError(err)
	s.Empty(active)

	active, err = s.repo.FindActiveByUser(ctx, "u2")
	s.Require().NoError(err)
	s.Len(active, 1)
}

func (s *SessionRepositorySuite) TestFindActiveByUserExcludesExpired() {
	ctx := context.Background()

	live := s.newSession("u1")
	s.Require().NoError(s.repo.Create(ctx, live))

	expired := s.newSession("u1")
	expired.ExpiresAt = time.Now().UTC().Add(-time.Hour)
	s.Require().NoError(s.repo.Create(ctx, expired))

	active, err := s.repo.FindActiveByUser(ctx, "u1")
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal(live.ID, active[0].ID)
}

func (s *SessionRepositorySuite) TestSweeps() {
	ctx := context.Background()

	expired := s.newSession("u1")
	expired.ExpiresAt = time.Now().UTC().Add(-time.Hour)
	s.Require().NoError(s.repo.Create(ctx, expired))

	revoked := s.newSession("u1")
	s.Require().NoError(s.repo.Create(ctx, revoked))
	s.Require().NoError(s.repo.MarkInactive(ctx, revoked.ID))

	live := s.newSession("u1")
	s.Require().NoError(s.repo.Create(ctx, live))

	count, err := s.repo.DeleteExpired(ctx, time.Now().UTC())
	s.Require().NoError(err)
	s.EqualValues(1, count)

	count, err = s.repo.DeleteInactive(ctx, time.Now().UTC().Add(time.Minute))
	s.Require().NoError(err)
	s.EqualValues(1, count)

	remaining, err := s.repo.FindByID(ctx, live.ID)
	s.Require().NoError(err)
	s.NotNil(remaining)
}

func TestSessionRepositorySuite(t *testing.T) {
	suite.Run(t, new(SessionRepositorySuite))
}
