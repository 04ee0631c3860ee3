package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
)

// testPolicy records sleeps instead of waiting and uses the full jitter ceiling.
func testPolicy(slept *[]time.Duration) Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    5 * time.Second,
		Sleep: func(_ context.Context, d time.Duration) error {
			*slept = append(*slept, d)
			return nil
		},
		Jitter: func(n int64) int64 { return n - 1 },
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	var slept []time.Duration
	p := testPolicy(&slept)

	var attempts []int
	err := p.Do(context.Background(), func(_ context.Context, attempt int) error {
		attempts = append(attempts, attempt)
		if attempt < 3 {
			return &domain.ProviderError{Provider: "anthropic", StatusCode: 529}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, slept)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	var slept []time.Duration
	p := testPolicy(&slept)

	calls := 0
	err := p.Do(context.Background(), func(context.Context, int) error {
		calls++
		return &domain.ProviderError{Provider: "anthropic", StatusCode: 401}
	})

	var pe *domain.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 401, pe.StatusCode)
	assert.Equal(t, 1, calls)
	assert.Empty(t, slept)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	var slept []time.Duration
	p := testPolicy(&slept)

	calls := 0
	err := p.Do(context.Background(), func(context.Context, int) error {
		calls++
		return &domain.ProviderError{Provider: "openai", StatusCode: 503}
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, slept, 2)
}

func TestDo_CancelledContextMakesNoCalls(t *testing.T) {
	var slept []time.Duration
	p := testPolicy(&slept)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := p.Do(ctx, func(context.Context, int) error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestDo_CancelDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{
		MaxAttempts: 5,
		Sleep: func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		},
	}

	calls := 0
	err := p.Do(ctx, func(context.Context, int) error {
		calls++
		return &domain.ProviderError{StatusCode: 429}
	})

	assert.ErrorIs(t, err, context.Canceled)
	var pe *domain.ProviderError
	assert.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, calls)
}

func TestBackoff_CapsAtMaxDelay(t *testing.T) {
	var slept []time.Duration
	p := testPolicy(&slept)

	assert.Equal(t, time.Second, p.Backoff(1))
	assert.Equal(t, 2*time.Second, p.Backoff(2))
	assert.Equal(t, 4*time.Second, p.Backoff(3))
	assert.Equal(t, 5*time.Second, p.Backoff(4))
	assert.Equal(t, 5*time.Second, p.Backoff(10))
}

func TestBackoff_FullJitterLowerBound(t *testing.T) {
	p := Policy{Jitter: func(int64) int64 { return 0 }}
	assert.Zero(t, p.Backoff(3))
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", &domain.ProviderError{StatusCode: 429}, true},
		{"overloaded", &domain.ProviderError{StatusCode: 529}, true},
		{"server error wrapped", fmt.Errorf("complete: %w", &domain.ProviderError{StatusCode: 502}), true},
		{"bad request", &domain.ProviderError{StatusCode: 400}, false},
		{"unauthorized", &domain.ProviderError{StatusCode: 401}, false},
		{"unprocessable", &domain.ProviderError{StatusCode: 422}, false},
		{"per-call deadline", fmt.Errorf("send: %w", context.DeadlineExceeded), true},
		{"caller cancel", context.Canceled, false},
		{"network timeout", &net.DNSError{Err: "timeout", IsTimeout: true}, true},
		{"connection reset", &url.Error{Op: "Post", URL: "https://api.example.com", Err: syscall.ECONNRESET}, true},
		{"connection refused", &url.Error{
			Op:  "Post",
			URL: "http://localhost:11434",
			Err: &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)},
		}, true},
		{"broken pipe", fmt.Errorf("send: %w", syscall.EPIPE), true},
		{"truncated body", &url.Error{Op: "Get", URL: "https://api.example.com", Err: io.ErrUnexpectedEOF}, true},
		{"cancelled request", &url.Error{Op: "Post", URL: "https://api.example.com", Err: context.Canceled}, false},
		{"bad scheme", &url.Error{Op: "Get", URL: "ftp://x", Err: errors.New("unsupported protocol scheme")}, false},
		{"parse error", errors.New("invalid character"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
