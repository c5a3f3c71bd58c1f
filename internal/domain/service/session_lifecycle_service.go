package service

import (
	"context"
	goerrors "errors"
	"time"

	"github.com/google/uuid"

	"github.com/soleron/sessiond/internal/config"
	"github.com/soleron/sessiond/internal/domain/models"
	"github.com/soleron/sessiond/internal/domain/repository"
	"github.com/soleron/sessiond/pkg/constants"
	"github.com/soleron/sessiond/pkg/errors"
	"github.com/soleron/sessiond/pkg/logger"
	"github.com/soleron/sessiond/pkg/utils"
)

// SessionLifecycleService owns every mutation of session rows: issuance,
// authentication, refresh rotation, revocation, and maintenance sweeps.
type SessionLifecycleService struct {
	repo    repository.SessionRepository
	audit   AuditService
	metrics MetricsRecorder
	cfg     *config.SessionConfig
	logger  logger.Logger

	// now is swappable in tests.
	now func() time.Time
}

// NewSessionLifecycleService creates the lifecycle service. audit and metrics
// may be nil; they degrade to no-ops.
func NewSessionLifecycleService(
	repo repository.SessionRepository,
	audit AuditService,
	metrics MetricsRecorder,
	cfg *config.SessionConfig,
	log logger.Logger,
) *SessionLifecycleService {
	return &SessionLifecycleService{
		repo:    repo,
		audit:   audit,
		metrics: metrics,
		cfg:     cfg,
		logger:  log.WithComponent("SessionLifecycle"),
		now:     time.Now,
	}
}

// Issue creates a new session for userID bound to the supplied device
// context. It generates a fresh bearer/refresh token pair and persists the
// row.
func (s *SessionLifecycleService) Issue(ctx context.Context, userID string, device models.DeviceContext) (*models.Session, error) {
	if userID == "" {
		return nil, errors.ErrInvalidArgument.WithMessagef("user ID is required")
	}

	token, err := utils.NewOpaqueToken(32)
	if err != nil {
		return nil, errors.ErrDatabaseOperation.WithError(err)
	}
	refreshToken, err := utils.NewOpaqueToken(32)
	if err != nil {
		return nil, errors.ErrDatabaseOperation.WithError(err)
	}

	now := s.now().UTC()
	session := &models.Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		Token:        token,
		RefreshToken: refreshToken,
		ExpiresAt:    now.Add(s.cfg.TokenTTL),
		IPAddress:    device.IPAddress,
		UserAgent:    device.UserAgent,
		Fingerprint:  device.Fingerprint(),
		IsActive:     true,
		LastActivity: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return nil, err
	}

	s.recordSessionIssued()
	s.logger.Info(ctx, "Session issued", logger.Fields{
		"session_id": session.ID,
		"user_id":    userID,
		"expires_at": session.ExpiresAt,
	})
	return session, nil
}

// FindByToken looks a session up by its bearer token without applying any
// policy. (nil, nil) means absent. Callers authenticating a request should
// use Authenticate, which also checks activity, expiry, and the device
// fingerprint.
func (s *SessionLifecycleService) FindByToken(ctx context.Context, token string) (*models.Session, error) {
	return s.repo.FindByToken(ctx, token)
}

// Authenticate resolves a bearer token into a session and enforces the full
// policy: the session must be active and unexpired, and the fingerprint
// recomputed from the current request must match the one bound at issuance.
// A mismatch invalidates the session and forces re-authentication.
func (s *SessionLifecycleService) Authenticate(ctx context.Context, token string, device models.DeviceContext) (*models.Session, error) {
	session, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil || !session.Authenticatable(s.now().UTC()) {
		return nil, errors.ErrSessionNotFound
	}

	if !session.Fingerprint.Matches(device.Fingerprint()) {
		if err := s.repo.MarkInactive(ctx, session.ID); err != nil {
			s.logger.Error(ctx, "Failed to invalidate session after fingerprint mismatch", err,
				logger.Fields{"session_id": session.ID})
		}
		s.recordSecuritySignal(constants.EventFingerprintMismatch)
		s.recordAudit(ctx, &models.SecurityEvent{
			EventType: constants.EventFingerprintMismatch,
			UserID:    session.UserID,
			SessionID: session.ID,
			IPAddress: device.IPAddress,
			UserAgent: device.UserAgent,
			Detail:    "stored fingerprint does not match recomputed value",
		})
		s.logger.Warn(ctx, "Fingerprint mismatch, session invalidated", logger.Fields{
			"session_id": session.ID,
			"user_id":    session.UserID,
			"ip":         device.IPAddress,
		})
		return nil, errors.ErrFingerprintMismatch
	}

	return session, nil
}

// FindActiveByUser enumerates live sessions for account-management views.
func (s *SessionLifecycleService) FindActiveByUser(ctx context.Context, userID string) ([]*models.Session, error) {
	return s.repo.FindActiveByUser(ctx, userID)
}

// Refresh rotates the token pair of the session owning refreshToken. The
// refresh token must belong to an active session and fall within the refresh
// window measured from the session's last activity. On any validation
// failure the call returns ErrInvalidRefreshToken and mutates nothing.
func (s *SessionLifecycleService) Refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	session, err := s.repo.FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		s.recordSessionRefresh("error")
		return nil, err
	}
	now := s.now().UTC()
	if session == nil || !session.IsActive || now.After(session.RefreshableUntil(s.cfg.RefreshTokenTTL)) {
		s.recordSessionRefresh("invalid")
		return nil, errors.ErrInvalidRefreshToken
	}

	newToken, err := utils.NewOpaqueToken(32)
	if err != nil {
		s.recordSessionRefresh("error")
		return nil, errors.ErrDatabaseOperation.WithError(err)
	}
	newRefresh, err := utils.NewOpaqueToken(32)
	if err != nil {
		s.recordSessionRefresh("error")
		return nil, errors.ErrDatabaseOperation.WithError(err)
	}

	session.Token = newToken
	session.RefreshToken = newRefresh
	session.ExpiresAt = now.Add(s.cfg.TokenTTL)
	session.LastActivity = now
	session.UpdatedAt = now

	// The conditional write loses to a concurrent refresh of the same token;
	// the loser observes the token as already rotated.
	if err := s.repo.Rotate(ctx, session, refreshToken); err != nil {
		if goerrors.Is(err, errors.ErrInvalidRefreshToken) {
			s.recordSessionRefresh("invalid")
			return nil, errors.ErrInvalidRefreshToken
		}
		s.recordSessionRefresh("error")
		return nil, err
	}

	s.recordSessionRefresh("ok")
	s.logger.Info(ctx, "Session refreshed", logger.Fields{
		"session_id": session.ID,
		"user_id":    session.UserID,
	})
	return session, nil
}

// Revoke marks one session inactive. Logical delete preserves the audit
// trail; the inactive sweep removes the row later.
func (s *SessionLifecycleService) Revoke(ctx context.Context, sessionID string) error {
	if err := s.repo.MarkInactive(ctx, sessionID); err != nil {
		return err
	}
	s.recordSessionRevocations(1)
	s.recordAudit(ctx, &models.SecurityEvent{
		EventType: constants.EventSessionsRevoked,
		SessionID: sessionID,
		Detail:    "explicit revocation",
	})
	return nil
}

// RevokeAllForUser marks every active session of userID inactive and returns
// the number affected.
func (s *SessionLifecycleService) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	count, err := s.repo.MarkInactiveByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.recordSessionRevocations(count)
		s.recordAudit(ctx, &models.SecurityEvent{
			EventType: constants.EventSessionsRevoked,
			UserID:    userID,
			Detail:    "bulk revocation",
		})
	}
	s.logger.Info(ctx, "Revoked all sessions for user", logger.Fields{
		"user_id": userID,
		"count":   count,
	})
	return count, nil
}

// SweepExpired physically removes sessions whose expiry has passed. Intended
// to run periodically out-of-band.
func (s *SessionLifecycleService) SweepExpired(ctx context.Context) (int64, error) {
	count, err := s.repo.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.logger.Info(ctx, "Swept expired sessions", logger.Fields{"count": count})
	}
	return count, nil
}

// SweepInactive physically removes sessions that have been inactive beyond
// the retention window.
func (s *SessionLifecycleService) SweepInactive(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-s.cfg.InactiveRetention)
	count, err := s.repo.DeleteInactive(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.logger.Info(ctx, "Swept inactive sessions", logger.Fields{"count": count})
	}
	return count, nil
}

func (s *SessionLifecycleService) recordAudit(ctx context.Context, event *models.SecurityEvent) {
	if s.audit == nil {
		return
	}
	if err := s.audit.RecordEvent(ctx, event); err != nil {
		s.logger.Error(ctx, "Failed to record audit event", err, logger.Fields{
			"event_type": event.EventType,
		})
	}
}

func (s *SessionLifecycleService) recordSessionIssued() {
	if s.metrics != nil {
		s.metrics.RecordSessionIssued()
	}
}

func (s *SessionLifecycleService) recordSessionRefresh(result string) {
	if s.metrics != nil {
		s.metrics.RecordSessionRefresh(result)
	}
}

func (s *SessionLifecycleService) recordSessionRevocations(count int64) {
	if s.metrics != nil {
		s.metrics.RecordSessionRevocations(count)
	}
}

func (s *SessionLifecycleService) recordSecuritySignal(eventType string) {
	if s.metrics != nil {
		s.metrics.RecordSecuritySignal(eventType)
	}
}
