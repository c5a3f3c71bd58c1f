// Package application hosts the orchestration glue above the domain
// services.
package application

import (
	"context"
	"math/rand"
	"time"

	"github.com/soleron/sessiond/internal/domain/service"
	"github.com/soleron/sessiond/pkg/logger"
)

// Sweeper periodically removes expired and long-inactive session rows and
// runs the state store's diagnostic cleanup. The store TTL and the session
// expiry checks stay authoritative; the sweeper only reclaims disk.
type Sweeper struct {
	lifecycle *service.SessionLifecycleService
	states    service.OAuthStateStore
	interval  time.Duration
	logger    logger.Logger

	stop chan struct{}
	done chan struct{}
}

// NewSweeper creates a sweeper with the given interval.
func NewSweeper(lifecycle *service.SessionLifecycleService, states service.OAuthStateStore, interval time.Duration, log logger.Logger) *Sweeper {
	return &Sweeper{
		lifecycle: lifecycle,
		states:    states,
		interval:  interval,
		logger:    log.WithComponent("Sweeper"),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called. Each cycle is jittered by
// up to 10% so multiple instances don't sweep in lockstep.
func (s *Sweeper) Start() {
	go func() {
		defer close(s.done)
		for {
			select {
			case <-s.stop:
				return
			case <-time.After(s.jittered()):
				s.runOnce()
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Sweeper) jittered() time.Duration {
	jitter := time.Duration(rand.Int63n(int64(s.interval) / 10))
	return s.interval + jitter
}

func (s *Sweeper) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	expired, err := s.lifecycle.SweepExpired(ctx)
	if err != nil {
		s.logger.Error(ctx, "Expired-session sweep failed", err)
	}
	inactive, err := s.lifecycle.SweepInactive(ctx)
	if err != nil {
		s.logger.Error(ctx, "Inactive-session sweep failed", err)
	}
	orphaned, err := s.states.CleanupExpired(ctx)
	if err != nil {
		s.logger.Error(ctx, "State-store cleanup failed", err)
	}

	s.logger.Debug(ctx, "Sweep cycle complete", logger.Fields{
		"expired":  expired,
		"inactive": inactive,
		"orphaned": orphaned,
	})
}
