// Package retry runs an operation a bounded number of times and falls back to
// a deterministic value when every attempt fails.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/spigell/fitcheck/internal/utils"
)

// DefaultAttempts is the number of tries made for LLM calls whose output has
// to be parsed.
const DefaultAttempts = 3

// Policy bounds the attempts and the pause between them.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultPolicy tries three times without pausing.
func DefaultPolicy() Policy {
	return Policy{Attempts: DefaultAttempts}
}

// Outcome describes how a value was obtained.
type Outcome[T any] struct {
	Value T
	// Attempts is the number of attempts actually made.
	Attempts int
	// FellBack is true when Value came from the fallback.
	FellBack bool
	// Err is the last attempt error when FellBack is set.
	Err error
}

// Do calls attempt until it succeeds or the policy is exhausted, then
// returns fallback(). A cancelled context stops further attempts and also
// leads to the fallback.
func Do[T any](ctx context.Context, p Policy, attempt func(ctx context.Context) (T, error), fallback func() T) Outcome[T] {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	made := 0
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			lastErr = errors.Join(lastErr, err)
			break
		}

		if i > 0 {
			if err := utils.WaitFor(ctx, p.Delay); err != nil {
				lastErr = errors.Join(lastErr, err)
				break
			}
		}

		made++
		value, err := attempt(ctx)
		if err == nil {
			return Outcome[T]{Value: value, Attempts: made}
		}
		lastErr = err
	}

	return Outcome[T]{Value: fallback(), Attempts: made, FellBack: true, Err: lastErr}
}
