package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"ContentRewriter/internal/ports"
	"ContentRewriter/internal/retry"
)

// Limiter enforces a minimum spacing between calls to a named service.
// State lives in a RateLimitStore so spacing survives restarts. When the
// store fails the limiter sleeps the full interval instead of skipping.
type Limiter struct {
	store  ports.RateLimitStore
	logger *slog.Logger
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
}

// New wires a limiter over the given store.
func New(store ports.RateLimitStore, logger *slog.Logger) *Limiter {
	return &Limiter{
		store:  store,
		logger: logger,
		now:    time.Now,
		sleep:  retry.Sleep,
	}
}

// Wait blocks until minInterval has passed since the previous call to
// service, then records the current call.
func (l *Limiter) Wait(ctx context.Context, service string, minInterval time.Duration) error {
	if l == nil || minInterval <= 0 {
		return nil
	}
	if l.store == nil {
		return l.sleep(ctx, minInterval)
	}

	last, found, err := l.store.LastRequest(ctx, service)
	if err != nil {
		l.warn("rate limit state unavailable", service, err)
		return l.sleep(ctx, minInterval)
	}

	if found {
		if elapsed := l.now().Sub(last); elapsed < minInterval {
			if err := l.sleep(ctx, minInterval-elapsed); err != nil {
				return err
			}
		}
	}

	if err := l.store.TouchRequest(ctx, service, l.now()); err != nil {
		l.warn("rate limit state not persisted", service, err)
		return l.sleep(ctx, minInterval)
	}

	return nil
}

func (l *Limiter) warn(msg, service string, err error) {
	if l.logger != nil {
		l.logger.Warn(msg, "service", service, "error", err)
	}
}
