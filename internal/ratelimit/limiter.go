package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/time/rate"
)

// Limiter wraps rate.Limiter with a name for logging/debugging.
type Limiter struct {
	limiter *rate.Limiter
	name    string
}

// New creates a new rate limiter with the given requests per second.
// The burst size is the rate rounded up, so a fractional rate still lets one
// request through immediately. A non-positive rate disables limiting.
func New(name string, requestsPerSecond float64) *Limiter {
	if requestsPerSecond <= 0 {
		return Unlimited(name)
	}
	return NewWithBurst(name, requestsPerSecond, int(math.Ceil(requestsPerSecond)))
}

// NewWithBurst creates a new rate limiter with custom burst size.
func NewWithBurst(name string, requestsPerSecond float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		name:    name,
	}
}

// Unlimited returns a limiter that never blocks.
func Unlimited(name string) *Limiter {
	return &Limiter{
		limiter: rate.NewLimiter(rate.Inf, 1),
		name:    name,
	}
}

// Wait blocks until the rate limiter allows a request to proceed.
// Returns an error if the context is cancelled or its deadline would pass
// before a token is available.
func (l *Limiter) Wait(ctx context.Context) error {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", l.name, err)
	}
	if waited := time.Since(start); waited > 50*time.Millisecond {
		slog.Debug("Rate limited", "limiter", l.name, "waited", waited)
	}
	return nil
}

// Name returns the name of this rate limiter.
func (l *Limiter) Name() string {
	return l.name
}
