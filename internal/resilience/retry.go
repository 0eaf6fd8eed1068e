package resilience

import (
	"context"
	"errors"
	"time"
)

// Retry runs a call with exponential backoff behind an optional breaker.
type Retry struct {
	Breaker     *Breaker
	MaxAttempts int
	BaseBackoff time.Duration
	Jitter      float64
	Sleep       func(context.Context, time.Duration) error
}

// Do invokes fn until it succeeds, attempts run out or ctx ends. It returns
// ErrOpenCircuit without calling fn while the breaker is open.
func (r Retry) Do(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return errors.New("resilience: call not provided")
	}
	attempts := r.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if r.Breaker != nil && !r.Breaker.Allow(ctx) {
			if lastErr != nil {
				return errors.Join(ErrOpenCircuit, lastErr)
			}
			return ErrOpenCircuit
		}
		lastErr = fn(ctx)
		if r.Breaker != nil {
			r.Breaker.Report(ctx, lastErr == nil)
		}
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		if err := sleep(ctx, Backoff(r.BaseBackoff, attempt, r.Jitter)); err != nil {
			return errors.Join(err, lastErr)
		}
	}
	return lastErr
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
