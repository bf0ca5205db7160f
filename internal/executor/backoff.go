package executor

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

const (
	// MaxJitter bounds the random part of the backoff, in seconds (exclusive)
	MaxJitter = 0.5

	// exponents above this overflow time.Duration
	maxBackoffExponent = 30
)

// Backoff returns the delay before the retry that follows the given attempt:
// 2^attempt seconds plus jitter seconds.
func Backoff(attempt int, jitter float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > maxBackoffExponent {
		attempt = maxBackoffExponent
	}
	seconds := math.Ldexp(1, attempt) + jitter
	return time.Duration(seconds * float64(time.Second))
}

// uniformJitter draws from [0, MaxJitter)
func uniformJitter() float64 {
	return rand.Float64() * MaxJitter
}

// sleepContext blocks for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
