package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soleron/sessiond/internal/config"
	"github.com/soleron/sessiond/internal/domain/models"
	"github.com/soleron/sessiond/pkg/errors"
	"github.com/soleron/sessiond/pkg/logger"
)

// stubSessionRepo is an in-memory SessionRepository for unit tests.
type stubSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
	updates  int
}

func newStubSessionRepo() *stubSessionRepo {
	return &stubSessionRepo{sessions: make(map[string]*models.Session)}
}

func (r *stubSessionRepo) Create(ctx context.Context, s *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *s
	r.sessions[s.ID] = &clone
	return nil
}

func (r *stubSessionRepo) FindByID(ctx context.Context, id string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		clone := *s
		return &clone, nil
	}
	return nil, nil
}

func (r *stubSessionRepo) FindByToken(ctx context.Context, token string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.Token == token {
			clone := *s
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *stubSessionRepo) FindByRefreshToken(ctx context.Context, refreshToken string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.RefreshToken == refreshToken {
			clone := *s
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *stubSessionRepo) FindActiveByUser(ctx context.Context, userID string) ([]*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Session
	for _, s := range r.sessions {
		if s.UserID == userID && s.IsActive {
			clone := *s
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *stubSessionRepo) Rotate(ctx context.Context, s *models.Session, previousRefreshToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.sessions[s.ID]
	if !ok || stored.RefreshToken != previousRefreshToken {
		return errors.ErrInvalidRefreshToken
	}
	clone := *s
	r.sessions[s.ID] = &clone
	r.updates++
	return nil
}

func (r *stubSessionRepo) MarkInactive(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return errors.ErrSessionNotFound
	}
	s.IsActive = false
	return nil
}

func (r *stubSessionRepo) MarkInactiveByUser(ctx context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, s := range r.sessions {
		if s.UserID == userID && s.IsActive {
			s.IsActive = false
			count++
		}
	}
	return count, nil
}

func (r *stubSessionRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for id, s := range r.sessions {
		if s.ExpiresAt.Before(cutoff) {
			delete(r.sessions, id)
			count++
		}
	}
	return count, nil
}

func (r *stubSessionRepo) DeleteInactive(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for id, s := range r.sessions {
		if !s.IsActive && s.UpdatedAt.Before(cutoff) {
			delete(r.sessions, id)
			count++
		}
	}
	return count, nil
}

// stubAudit records events in memory.
type stubAudit struct {
	mu     sync.Mutex
	events []*models.SecurityEvent
}

func (a *stubAudit) RecordEvent(ctx context.Context, event *models.SecurityEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *stubAudit) byType(eventType string) []*models.SecurityEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*models.SecurityEvent
	for _, e := range a.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func newTestService(t *testing.T) (*SessionLifecycleService, *stubSessionRepo, *stubAudit) {
	t.Helper()
	repo := newStubSessionRepo()
	audit := &stubAudit{}
	cfg := &config.SessionConfig{
		TokenTTL:          24 * time.Hour,
		RefreshTokenTTL:   30 * 24 * time.Hour,
		StateTTL:          10 * time.Minute,
		InactiveRetention: 90 * 24 * time.Hour,
	}
	svc := NewSessionLifecycleService(repo, audit, nil, cfg, logger.NewNoopLogger())
	return svc, repo, audit
}

var testDevice = models.DeviceContext{
	IPAddress: "203.0.113.7",
	UserAgent: "Mozilla/5.0 (test)",
}

func TestIssueCreatesBoundSession(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	session, err := svc.Issue(ctx, "u1", testDevice)
	require.NoError(t, err)

	assert.NotEmpty(t, session.ID)
	assert.NotEmpty(t, session.Token)
	assert.NotEmpty(t, session.RefreshToken)
	assert.True(t, session.IsActive)
	assert.True(t, session.ExpiresAt.After(session.CreatedAt), "expiry must be strictly after creation")
	assert.Equal(t, testDevice.Fingerprint(), session.Fingerprint)
}

func TestIssueRequiresUserID(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Issue(context.Background(), "", testDevice)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestIssuedTokensAreUnique(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		session, err := svc.Issue(ctx, "u1", testDevice)
		require.NoError(t, err)
		_, dup := seen[session.Token]
		require.False(t, dup, "duplicate token after %d issuances", i)
		seen[session.Token] = struct{}{}
	}
}

func TestAuthenticateHappyPath(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, "u1", testDevice)
	require.NoError(t, err)

	got, err := svc.Authenticate(ctx, issued.Token, testDevice)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, got.ID)
}

func TestAuthenticateRejectsUnknownToken(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Authenticate(context.Background(), "no-such-token", testDevice)
	assert.ErrorIs(t, err, errors.ErrSessionNotFound)
}

func TestAuthenticateRejectsExpiredSession(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, "u1", testDevice)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(25 * time.Hour) }

	_, err = svc.Authenticate(ctx, issued.Token, testDevice)
	assert.ErrorIs(t, err, errors.ErrSessionNotFound)
}

func TestAuthenticateRejectsInactiveSessionEvenIfUnexpired(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, "u1", testDevice)
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(ctx, issued.ID))

	_, err = svc.Authenticate(ctx, issued.Token, testDevice)
	assert.ErrorIs(t, err, errors.ErrSessionNotFound)
}

func TestFingerprintMismatchInvalidatesSession(t *testing.T) {
	svc, repo, audit := newTestService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, "u1", testDevice)
	require.NoError(t, err)

	otherDevice := models.DeviceContext{
		IPAddress: "198.51.100.23",
		UserAgent: testDevice.UserAgent,
	}

	_, err = svc.Authenticate(ctx, issued.Token, otherDevice)
	assert.ErrorIs(t, err, errors.ErrFingerprintMismatch)

	// The session must now be inactive: the original device is forced to
	// re-authenticate too.
	stored, err := repo.FindByID(ctx, issued.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)

	_, err = svc.Authenticate(ctx, issued.Token, testDevice)
	assert.ErrorIs(t, err, errors.ErrSessionNotFound)

	events := audit.byType("fingerprint_mismatch")
	require.Len(t, events, 1)
	assert.Equal(t, issued.ID, events[0].SessionID)
}

func TestRefreshRotatesTokenPair(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, "u1", testDevice)
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, issued.RefreshToken)
	require.NoError(t, err)

	assert.Equal(t, issued.ID, refreshed.ID)
	assert.NotEqual(t, issued.Token, refreshed.Token)
	assert.NotEqual(t, issued.RefreshToken, refreshed.RefreshToken)

	// The rotated-out pair no longer works.
	_, err = svc.Refresh(ctx, issued.RefreshToken)
	assert.ErrorIs(t, err, errors.ErrInvalidRefreshToken)
	_, err = svc.Authenticate(ctx, issued.Token, testDevice)
	assert.ErrorIs(t, err, errors.ErrSessionNotFound)
}

func TestConcurrentRefreshesRotateExactlyOnce(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, "u1", testDevice)
	require.NoError(t, err)

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Refresh(ctx, issued.RefreshToken)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for err := range results {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, errors.ErrInvalidRefreshToken)
		}
	}
	assert.Equal(t, 1, winners, "exactly one refresh may rotate the pair")
	assert.Equal(t, 1, repo.updates)
}

func TestRefreshUnknownTokenFailsWithoutMutation(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, "u1", testDevice)
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, "bogus")
	assert.ErrorIs(t, err, errors.ErrInvalidRefreshToken)
	assert.Zero(t, repo.updates)

	stored, err := repo.FindByID(ctx, issued.ID)
	require.NoError(t, err)
	assert.Equal(t, issued.Token, stored.Token)
}

func TestRefreshRevokedSessionFails(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, "u1", testDevice)
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(ctx, issued.ID))

	_, err = svc.Refresh(ctx, issued.RefreshToken)
	assert.ErrorIs(t, err, errors.ErrInvalidRefreshToken)
	assert.Zero(t, repo.updates)
}

func TestRefreshOutsideWindowFails(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, "u1", testDevice)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(31 * 24 * time.Hour) }

	_, err = svc.Refresh(ctx, issued.RefreshToken)
	assert.ErrorIs(t, err, errors.ErrInvalidRefreshToken)
}

func TestRevokeAllForUser(t *testing.T) {
	svc, _, audit := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Issue(ctx, "u1", testDevice)
		require.NoError(t, err)
	}
	other, err := svc.Issue(ctx, "u2", testDevice)
	require.NoError(t, err)

	count, err := svc.RevokeAllForUser(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	remaining, err := svc.FindActiveByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, remaining)

	// Another user's sessions are untouched.
	_, err = svc.Authenticate(ctx, other.Token, testDevice)
	assert.NoError(t, err)

	assert.Len(t, audit.byType("sessions_revoked"), 1)
}

func TestSweepExpiredRemovesRows(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, "u1", testDevice)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(48 * time.Hour) }

	count, err := svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	stored, err := repo.FindByID(ctx, issued.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestSweepInactiveHonorsRetention(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, "u1", testDevice)
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(ctx, issued.ID))

	// Within retention: kept for the audit trail.
	count, err := svc.SweepInactive(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	svc.now = func() time.Time { return time.Now().Add(91 * 24 * time.Hour) }

	count, err = svc.SweepInactive(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	stored, err := repo.FindByID(ctx, issued.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}
