package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	goredis "github.com/redis/go-redis/v9"

	"github.com/geokazi/chores2026-sub003/internal/metrics"
)

// CircuitBreakerHook implements redis.Hook to add circuit breaker protection
// to all Redis operations, preventing cascading failures when Redis becomes
// unavailable or slow. The hooks pattern covers every operation automatically
// instead of wrapping individual call sites.
type CircuitBreakerHook struct {
	cb circuitbreaker.CircuitBreaker[any]
}

var _ goredis.Hook = (*CircuitBreakerHook)(nil)

// NewCircuitBreakerHook creates a circuit breaker hook:
// 60% failure rate over min 5 requests in a 10s rolling window opens the
// circuit; 30s delay before half-open; 1 success in half-open closes it.
func NewCircuitBreakerHook() *CircuitBreakerHook {
	cb := circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(0.6, 5, 10*time.Second).
		WithDelay(30 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", "redis",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			metrics.CircuitBreakerStateChanges.WithLabelValues("redis", e.NewState.String()).Inc()
			metrics.CircuitBreakerState.WithLabelValues("redis").Set(stateToFloat(e.NewState))
		}).
		Build()

	return &CircuitBreakerHook{cb: cb}
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

// DialHook wraps connection establishment with the circuit breaker.
func (h *CircuitBreakerHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if !h.cb.TryAcquirePermit() {
			return nil, fmt.Errorf("circuit breaker dial failed: %w", circuitbreaker.ErrOpen)
		}
		conn, err := next(ctx, network, addr)
		if err != nil {
			h.cb.RecordError(err)
			return nil, fmt.Errorf("circuit breaker dial failed: %w", err)
		}
		h.cb.RecordSuccess()
		return conn, nil
	}
}

// ProcessHook wraps command execution with the circuit breaker.
func (h *CircuitBreakerHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		if !h.cb.TryAcquirePermit() {
			return fmt.Errorf("circuit breaker open: %w", circuitbreaker.ErrOpen)
		}

		err := next(ctx, cmd)
		if err != nil && !errors.Is(err, goredis.Nil) {
			h.cb.RecordError(err)
			return fmt.Errorf("circuit breaker process failed: %w", err)
		}
		h.cb.RecordSuccess()
		return err
	}
}

// ProcessPipelineHook wraps pipelined command execution with the circuit breaker.
func (h *CircuitBreakerHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		if !h.cb.TryAcquirePermit() {
			return fmt.Errorf("circuit breaker open: %w", circuitbreaker.ErrOpen)
		}

		err := next(ctx, cmds)
		if err != nil {
			h.cb.RecordError(err)
			return fmt.Errorf("circuit breaker pipeline failed: %w", err)
		}
		h.cb.RecordSuccess()
		return nil
	}
}
