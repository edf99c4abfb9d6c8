package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rsc/internal/metrics"
	"github.com/desertthunder/rsc/internal/services"
	"github.com/desertthunder/rsc/internal/shared"
)

// DefaultRetryDelay is the fixed wait between attempts.
const DefaultRetryDelay = 500 * time.Millisecond

// RetryPolicy configures [Retry].
type RetryPolicy struct {
	Name        string           // Operation label for logs and metrics
	Delay       time.Duration    // Fixed wait between attempts
	MaxAttempts int              // 0 retries without bound
	Retryable   func(error) bool // nil treats every error as terminal
	Logger      *log.Logger      // optional
}

// DefaultRetryPolicy retries rate limits and server errors forever, 500ms apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Name:      "call",
		Delay:     DefaultRetryDelay,
		Retryable: services.IsRetryable,
	}
}

// Named returns a copy of p labelled name.
func (p RetryPolicy) Named(name string) RetryPolicy {
	p.Name = name
	return p
}

// Retry invokes op until it succeeds or fails with an error p does not classify as retryable.
//
// A terminal error is returned unchanged. With MaxAttempts set, the last retryable error is
// wrapped with [shared.ErrRetriesExhausted] once the ceiling is reached. A done ctx ends the
// wait between attempts with ctx's error.
func Retry[T any](ctx context.Context, p RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 1; ; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}

		if p.Retryable == nil || !p.Retryable(err) {
			return zero, err
		}

		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return zero, fmt.Errorf("%w: %s failed %d times: %w", shared.ErrRetriesExhausted, p.Name, attempt, err)
		}

		metrics.RecordRetry(p.Name)
		if p.Logger != nil {
			p.Logger.Warn("retrying call", "op", p.Name, "attempt", attempt, "delay", p.Delay, "error", err)
		}

		timer := time.NewTimer(p.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}
