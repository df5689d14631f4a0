package retry

import (
	"context"
	"math/rand"
	"sync"
	"time"

	apperrors "turfbook/pkg/errors"
	"turfbook/pkg/logger"
)

// Executor retries an operation on transient failures with a bounded,
// growing backoff. Domain outcomes (conflict, not-found, validation) are
// returned to the caller on the first attempt; only errors carrying
// apperrors.CodeTransient are retried. Classification happens on the
// structured error code, never on message text.
type Executor struct {
	maxAttempts int
	baseDelay   time.Duration
	maxJitter   time.Duration
	log         *logger.Logger

	// sleep is swapped out in tests to observe delays without waiting.
	sleep func(ctx context.Context, d time.Duration) error

	mu  sync.Mutex
	rng *rand.Rand
}

type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxJitter   time.Duration
	Log         *logger.Logger
}

func New(cfg Config) *Executor {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}
	if cfg.MaxJitter < 0 {
		cfg.MaxJitter = 0
	}

	return &Executor{
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		maxJitter:   cfg.MaxJitter,
		log:         cfg.Log,
		sleep:       sleepCtx,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Do runs fn up to MaxAttempts times. The delay before retry n is
// BaseDelay*n plus a jitter term in [0, MaxJitter).
func (e *Executor) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if !apperrors.IsTransient(lastErr) {
			return lastErr
		}

		if attempt == e.maxAttempts {
			break
		}

		delay := time.Duration(attempt)*e.baseDelay + e.jitter()
		if e.log != nil {
			e.log.Warn("Transient failure, retrying",
				"operation", op,
				"attempt", attempt,
				"max_attempts", e.maxAttempts,
				"delay", delay,
				"error", lastErr,
			)
		}

		if err := e.sleep(ctx, delay); err != nil {
			return apperrors.Transient("retry interrupted", err)
		}
	}

	if e.log != nil {
		e.log.Error("Retry budget exhausted",
			"operation", op,
			"attempts", e.maxAttempts,
			"error", lastErr,
		)
	}
	return lastErr
}

func (e *Executor) jitter() time.Duration {
	if e.maxJitter == 0 {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return time.Duration(e.rng.Int63n(int64(e.maxJitter)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
