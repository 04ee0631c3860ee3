// Package retry runs an operation repeatedly with exponential backoff and
// full jitter until it succeeds, fails permanently, or attempts run out.
package retry

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"net"
	"syscall"
	"time"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
)

// Default policy values.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 30 * time.Second
)

// Classifier reports whether err is worth another attempt.
type Classifier func(err error) bool

// Policy describes how an operation is retried.
// The zero value is usable and equals DefaultPolicy().
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the backoff ceiling before the second attempt.
	// It doubles per attempt up to MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Retryable classifies errors. Nil means IsTransient.
	Retryable Classifier

	// Sleep waits between attempts. Nil means a context-aware timer.
	// Tests replace it to avoid real delays.
	Sleep func(ctx context.Context, d time.Duration) error

	// Jitter returns a value in [0, n). Nil means math/rand/v2.
	Jitter func(n int64) int64
}

// DefaultPolicy returns the policy used for provider calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
	}
}

// withDefaults fills unset fields.
func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.Retryable == nil {
		p.Retryable = IsTransient
	}
	if p.Sleep == nil {
		p.Sleep = sleep
	}
	if p.Jitter == nil {
		p.Jitter = rand.Int64N
	}
	return p
}

// Backoff returns the delay before the attempt that follows attempt
// (1-based). Full jitter: uniform in [0, min(MaxDelay, BaseDelay*2^(attempt-1))].
func (p Policy) Backoff(attempt int) time.Duration {
	p = p.withDefaults()
	if attempt < 1 {
		attempt = 1
	}
	ceiling := p.BaseDelay
	for i := 1; i < attempt && ceiling < p.MaxDelay; i++ {
		ceiling *= 2
	}
	if ceiling > p.MaxDelay {
		ceiling = p.MaxDelay
	}
	return time.Duration(p.Jitter(int64(ceiling) + 1))
}

// Do calls op until it succeeds, returns a non-retryable error, or
// MaxAttempts is reached. op receives the 1-based attempt number.
// The last error is returned unchanged so callers can inspect it.
// Cancellation of ctx stops further attempts and returns ctx.Err()
// joined with the last failure.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context, attempt int) error) error {
	p = p.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.Join(err, lastErr)
		}

		lastErr = op(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return errors.Join(ctx.Err(), lastErr)
		}
		if !p.Retryable(lastErr) || attempt == p.MaxAttempts {
			return lastErr
		}

		if err := p.Sleep(ctx, p.Backoff(attempt)); err != nil {
			return errors.Join(err, lastErr)
		}
	}
	return lastErr
}

// IsTransient is the default classifier. Provider errors are retried when
// temporary (429, 408, 5xx, 529). Per-attempt deadlines and transport
// failures such as resets, refused connections and truncated responses
// are retried. Caller cancellation and everything else is permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		return pe.Temporary()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	if errors.As(err, &te) && te.Timeout() {
		return true
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return true
	}
	for _, target := range []error{
		syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED, syscall.EPIPE,
		io.ErrUnexpectedEOF,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
