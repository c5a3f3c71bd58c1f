// Package redis provides the shared-store connection manager. It owns the
// single logical connection to Redis and hands it out with
// connect-once-reuse semantics and bounded reconnection.
package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/soleron/sessiond/internal/config"
	"github.com/soleron/sessiond/pkg/constants"
	"github.com/soleron/sessiond/pkg/errors"
	"github.com/soleron/sessiond/pkg/logger"
)

// ConnectionManager manages the Redis client lifecycle. Acquire is
// idempotent: concurrent first callers share a single in-flight connect
// attempt instead of each opening a physical connection, and wait for it with
// a bounded timeout.
type ConnectionManager struct {
	cfg    *config.RedisConfig
	logger logger.Logger

	mu     sync.RWMutex
	client *redis.Client

	group singleflight.Group

	// sleep is swappable in tests to avoid real backoff delays.
	sleep func(time.Duration)
}

// NewConnectionManager creates a connection manager. No connection is opened
// until the first Acquire.
func NewConnectionManager(cfg *config.RedisConfig, log logger.Logger) *ConnectionManager {
	return &ConnectionManager{
		cfg:    cfg,
		logger: log.WithComponent("RedisConnection"),
		sleep:  time.Sleep,
	}
}

// Acquire returns the live Redis client, connecting first if necessary.
// While a connect is in flight every caller waits for that attempt to settle
// and shares its result; the wait is bounded by the context and by
// constants.ConnectWaitTimeout.
func (m *ConnectionManager) Acquire(ctx context.Context) (*redis.Client, error) {
	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()
	if client != nil {
		return client, nil
	}

	ch := m.group.DoChan("connect", func() (interface{}, error) {
		return m.connect(ctx)
	})

	wait, cancel := context.WithTimeout(ctx, constants.ConnectWaitTimeout)
	defer cancel()

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*redis.Client), nil
	case <-wait.Done():
		return nil, errors.ErrStoreUnavailable.WithError(wait.Err())
	}
}

// connect dials Redis with capped-backoff retries up to the configured
// attempt ceiling. Exceeding the ceiling is fatal from this component's point
// of view: the caller gets ErrConnectionExhausted and no further retries.
func (m *ConnectionManager) connect(ctx context.Context) (*redis.Client, error) {
	var lastErr error

	backoff := m.cfg.ConnectBackoffMin
	for attempt := 1; attempt <= m.cfg.MaxConnectAttempts; attempt++ {
		client := redis.NewClient(&redis.Options{
			Addr:     m.cfg.Addr,
			Password: m.cfg.Password,
			DB:       m.cfg.DB,

			PoolSize:     m.cfg.PoolSize,
			MinIdleConns: m.cfg.MinIdleConns,

			DialTimeout:  m.cfg.DialTimeout,
			ReadTimeout:  m.cfg.ReadTimeout,
			WriteTimeout: m.cfg.WriteTimeout,
		})

		pingCtx, cancel := context.WithTimeout(ctx, m.cfg.DialTimeout)
		err := client.Ping(pingCtx).Err()
		cancel()

		if err == nil {
			m.mu.Lock()
			m.client = client
			m.mu.Unlock()
			m.logger.Info(ctx, "Redis connection established", logger.Fields{
				"addr":    m.cfg.Addr,
				"db":      m.cfg.DB,
				"attempt": attempt,
			})
			return client, nil
		}

		_ = client.Close()
		lastErr = err
		m.logger.Warn(ctx, "Redis connect attempt failed", logger.Fields{
			"addr":    m.cfg.Addr,
			"attempt": attempt,
			"of":      m.cfg.MaxConnectAttempts,
			"error":   err.Error(),
		})

		if attempt < m.cfg.MaxConnectAttempts {
			m.sleep(backoff)
			backoff *= 2
			if backoff > m.cfg.ConnectBackoffMax {
				backoff = m.cfg.ConnectBackoffMax
			}
		}
	}

	m.logger.Error(ctx, "Redis connection attempts exhausted", lastErr, logger.Fields{
		"addr":     m.cfg.Addr,
		"attempts": m.cfg.MaxConnectAttempts,
	})
	return nil, errors.ErrConnectionExhausted.WithError(lastErr)
}

// IsReady reports whether a live, responsive connection is held. It is
// advisory only: health checks use it, but callers must still handle
// failures from Acquire.
func (m *ConnectionManager) IsReady() bool {
	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()
	if client == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return client.Ping(ctx).Err() == nil
}

// Close tears the connection down. A subsequent Acquire reconnects.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return nil
	}
	err := m.client.Close()
	m.client = nil
	return err
}
