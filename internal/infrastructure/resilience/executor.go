package resilience

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Executor runs calls to one remote dependency with bounded in-call retry,
// and, when enabled, a circuit breaker per operation name.
type Executor struct {
	cfg Config

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

func NewExecutor(cfg Config) *Executor {
	return &Executor{
		cfg:      cfg.normalize(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
}

// Execute calls fn until it succeeds, classify reports a permanent
// failure, the attempts run out or ctx ends. The last error is returned.
func (e *Executor) Execute(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classify ErrorClassifier,
) error {
	if fn == nil {
		return fmt.Errorf("resilience: %s: nil call", operation)
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if classify == nil {
		classify = defaultClassifier
	}

	attempts := func() error { return e.retry(ctx, op, fn, classify) }
	if !e.cfg.BreakerEnabled {
		return attempts()
	}
	_, err := e.breaker(op, classify).Execute(func() (struct{}, error) {
		return struct{}{}, attempts()
	})
	return err
}

func (e *Executor) retry(ctx context.Context, op string, fn func(context.Context) error, classify ErrorClassifier) error {
	schedule := e.newSchedule()
	var err error
	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt >= e.cfg.RetryMaxAttempts || !classify(err).Retryable {
			return err
		}

		wait := schedule.next()
		e.cfg.Logger.Warn("remote_call_retry",
			"operation", op,
			"attempt", attempt,
			"max_attempts", e.cfg.RetryMaxAttempts,
			"backoff_ms", wait.Milliseconds(),
			"error", err,
		)
		if !pause(ctx, wait) {
			return err
		}
	}
}

// schedule grows the wait geometrically and caps it at RetryMaxBackoff.
type schedule struct {
	current    time.Duration
	multiplier float64
	ceiling    time.Duration
}

func (e *Executor) newSchedule() *schedule {
	return &schedule{
		current:    e.cfg.RetryInitialBackoff,
		multiplier: e.cfg.RetryMultiplier,
		ceiling:    e.cfg.RetryMaxBackoff,
	}
}

func (s *schedule) next() time.Duration {
	wait := min(s.current, s.ceiling)
	s.current = min(time.Duration(float64(s.current)*s.multiplier), s.ceiling)
	return wait
}

// pause reports false when ctx ended before d elapsed.
func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (e *Executor) breaker(op string, classify ErrorClassifier) *gobreaker.CircuitBreaker[struct{}] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cb, ok := e.breakers[op]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        op,
		MaxRequests: e.cfg.BreakerHalfOpenMaxCalls,
		Timeout:     e.cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < e.cfg.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= e.cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classify(err).RecordFailure
		},
		OnStateChange: e.stateChanged,
	})
	e.breakers[op] = cb
	return cb
}

func (e *Executor) stateChanged(op string, from, to gobreaker.State) {
	e.cfg.Logger.Warn("circuit_breaker_state_change", "operation", op, "from", from.String(), "to", to.String())
	if e.cfg.OnStateChange != nil {
		e.cfg.OnStateChange(op, from.String(), to.String())
	}
}
