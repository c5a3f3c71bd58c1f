// Package redis provides Redis-backed implementations of sessiond's domain
// store interfaces.
package redis

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/soleron/sessiond/internal/domain/models"
	"github.com/soleron/sessiond/internal/domain/service"
	persistence "github.com/soleron/sessiond/internal/infrastructure/persistence/redis"
	"github.com/soleron/sessiond/pkg/constants"
	"github.com/soleron/sessiond/pkg/errors"
	"github.com/soleron/sessiond/pkg/logger"
)

// oauthStateStore is the Redis-backed OAuthStateStore. Records are JSON
// values under constants.OAuthStateKeyPrefix with a Redis TTL; consumption
// uses GETDEL so read-and-remove is a single atomic operation. A plain
// read-then-delete sequence would let two concurrent callbacks both observe
// the record before either deletes it, defeating the use-once guarantee.
type oauthStateStore struct {
	conn    *persistence.ConnectionManager
	metrics service.MetricsRecorder
	logger  logger.Logger
}

// NewOAuthStateStore creates the Redis-backed ephemeral state store. metrics
// may be nil.
func NewOAuthStateStore(conn *persistence.ConnectionManager, metrics service.MetricsRecorder, log logger.Logger) service.OAuthStateStore {
	return &oauthStateStore{
		conn:    conn,
		metrics: metrics,
		logger:  log.WithComponent("OAuthStateStore"),
	}
}

func stateKey(token string) string {
	return constants.OAuthStateKeyPrefix + token
}

// Save writes the record under token with an expiry. Tokens are generated
// fresh per call, so overwrites are last-write-wins by design.
func (s *oauthStateStore) Save(ctx context.Context, token string, record *models.OAuthStateRecord, ttl time.Duration) error {
	if token == "" {
		return errors.ErrInvalidArgument.WithMessagef("state token is required")
	}
	if ttl <= 0 {
		return errors.ErrInvalidArgument.WithMessagef("state TTL must be positive")
	}

	client, err := s.conn.Acquire(ctx)
	if err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return errors.ErrInvalidArgument.WithError(err)
	}

	if err := client.Set(ctx, stateKey(token), data, ttl).Err(); err != nil {
		return errors.ErrStoreUnavailable.WithError(err)
	}

	if s.metrics != nil {
		s.metrics.RecordStateSave()
	}
	s.logger.Debug(ctx, "OAuth state saved", logger.Fields{
		"provider": record.Provider,
		"ttl":      ttl.String(),
	})
	return nil
}

// Get retrieves and atomically removes the record. (nil, nil) means the
// token was never written, already consumed, or expired.
func (s *oauthStateStore) Get(ctx context.Context, token string) (*models.OAuthStateRecord, error) {
	client, err := s.conn.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	data, err := client.GetDel(ctx, stateKey(token)).Result()
	if err != nil {
		if goerrors.Is(err, redis.Nil) {
			if s.metrics != nil {
				s.metrics.RecordStateConsume("absent")
			}
			return nil, nil
		}
		return nil, errors.ErrStoreUnavailable.WithError(err)
	}

	var record models.OAuthStateRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, errors.ErrDatabaseOperation.WithError(err)
	}

	if s.metrics != nil {
		s.metrics.RecordStateConsume("consumed")
	}
	return &record, nil
}

// Delete invalidates a record explicitly. Deleting a missing key is a no-op.
func (s *oauthStateStore) Delete(ctx context.Context, token string) error {
	client, err := s.conn.Acquire(ctx)
	if err != nil {
		return err
	}
	if err := client.Del(ctx, stateKey(token)).Err(); err != nil {
		return errors.ErrStoreUnavailable.WithError(err)
	}
	return nil
}

// CleanupExpired scans the state keyspace and removes any record left
// without a TTL. Redis expiry is the authoritative enforcement; this exists
// for observability, not correctness.
func (s *oauthStateStore) CleanupExpired(ctx context.Context) (int, error) {
	client, err := s.conn.Acquire(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	iter := client.Scan(ctx, 0, constants.OAuthStateKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		ttl, err := client.TTL(ctx, key).Result()
		if err != nil {
			continue
		}
		// go-redis reports "no expiry" as the sentinel duration -1, which
		// should never happen for state records.
		if ttl == time.Duration(-1) {
			if client.Del(ctx, key).Err() == nil {
				removed++
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, errors.ErrStoreUnavailable.WithError(err)
	}

	if removed > 0 {
		s.logger.Warn(ctx, "Removed state records without TTL", logger.Fields{"count": removed})
	}
	return removed, nil
}

// Count reports the number of live state records.
func (s *oauthStateStore) Count(ctx context.Context) (int, error) {
	client, err := s.conn.Acquire(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	iter := client.Scan(ctx, 0, constants.OAuthStateKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, errors.ErrStoreUnavailable.WithError(err)
	}
	return count, nil
}
