// Package retry implements a small retry helper with exponential backoff,
// used for startup connects to external dependencies.
package retry

import (
	"context"
	"fmt"
	"time"
)

type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	OnRetry        func(attempt int, err error, backoff time.Duration)
}

type Operation[T any] func(ctx context.Context) (T, error)
type VoidOperation func(ctx context.Context) error

// Do runs op until it succeeds, the attempt budget is exhausted, or ctx is
// cancelled. Backoff doubles after each failed attempt.
func Do[T any](ctx context.Context, p Policy, op Operation[T]) (T, error) {
	backoff := p.InitialBackoff

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		val, err := op(ctx)
		if err == nil {
			return val, nil
		}

		if attempt == p.MaxAttempts {
			var zero T
			return zero, fmt.Errorf("failed after %d attempts: %w", p.MaxAttempts, err)
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err, backoff)
		}

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			var zero T
			return zero, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}

	panic("unreachable: MaxAttempts must be >= 1")
}

// DoVoid is Do for operations without a return value.
func DoVoid(ctx context.Context, p Policy, op VoidOperation) error {
	_, err := Do(ctx, p, func(ctx context.Context) (struct{}, error) { return struct{}{}, op(ctx) })
	return err
}
