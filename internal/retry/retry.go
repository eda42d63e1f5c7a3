package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"syscall"
	"time"
)

// Policy defines bounded exponential backoff for one call site.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MinDelay    time.Duration
	MaxDelay    time.Duration
	// Retryable decides which failures are transient. Nil means IsRetryable.
	Retryable func(error) bool
	// OnRetry is invoked before sleeping between attempts.
	OnRetry func(attempt int, err error, delay time.Duration)
}

var (
	// FeedPolicy is used for feed fetches.
	FeedPolicy = Policy{MaxAttempts: 3, BaseDelay: time.Second, MinDelay: 2 * time.Second, MaxDelay: 10 * time.Second}
	// ExtractionPolicy is used for article downloads.
	ExtractionPolicy = Policy{MaxAttempts: 2, BaseDelay: time.Second, MinDelay: 2 * time.Second, MaxDelay: 10 * time.Second}
	// RewritePolicy is used for generative service calls.
	RewritePolicy = Policy{MaxAttempts: 2, BaseDelay: 2 * time.Second, MinDelay: 4 * time.Second, MaxDelay: 20 * time.Second}
)

type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable marks err as transient regardless of its type.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// IsRetryable reports whether err belongs to the default transient allow-list:
// explicit Retryable marks, network timeouts and connection errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var marked *retryableError
	if errors.As(err, &marked) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

// Backoff returns the delay after the given zero-based attempt:
// base*2^attempt clamped to [MinDelay, MaxDelay].
func (p Policy) Backoff(attempt int) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if delay < float64(p.MinDelay) {
		delay = float64(p.MinDelay)
	}
	return time.Duration(delay)
}

// Do runs op until it succeeds, fails with a non-retryable error, or the
// policy is exhausted.
func Do(ctx context.Context, p Policy, op func(context.Context) error) error {
	_, err := DoValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// DoValue is Do for operations that return a value.
func DoValue[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	var zero T

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	classify := p.Retryable
	if classify == nil {
		classify = IsRetryable
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, err
		}
		if !classify(err) {
			return zero, err
		}
		if attempt == attempts-1 {
			break
		}

		delay := p.Backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err, delay)
		}
		if err := Sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	return zero, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
