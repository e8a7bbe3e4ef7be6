package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(maxAttempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    maxAttempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 0,
	}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesTransientUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(eris.New("boom"), 503)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_DoesNotRetryPermanentErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func(ctx context.Context) error {
		calls++
		return eris.New("bad request")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func(ctx context.Context) error {
		calls++
		return NewRateLimitError(eris.New("throttled"))
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, IsRateLimit(err))
}

func TestDoVal_ReturnsValue(t *testing.T) {
	got, err := DoVal(context.Background(), fastConfig(2), func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestDo_ContextCancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, fastConfig(5), func(ctx context.Context) error {
		calls++
		cancel()
		return NewTransientError(eris.New("boom"), 500)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_OnRetryCallback(t *testing.T) {
	var attempts []int
	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, err error) {
		attempts = append(attempts, attempt)
	}
	_ = Do(context.Background(), cfg, func(ctx context.Context) error {
		return NewTransientError(eris.New("boom"), 502)
	})
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestComputeBackoff_RateLimitIsExponential(t *testing.T) {
	cfg := applyDefaults(RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Hour,
		Multiplier:     2.0,
		JitterFraction: 0,
	})
	rl := NewRateLimitError(eris.New("429"))

	assert.Equal(t, 100*time.Millisecond, computeBackoff(0, rl, cfg))
	assert.Equal(t, 200*time.Millisecond, computeBackoff(1, rl, cfg))
	assert.Equal(t, 400*time.Millisecond, computeBackoff(2, rl, cfg))
}

func TestComputeBackoff_OtherErrorsAreLinear(t *testing.T) {
	cfg := applyDefaults(RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Hour,
		JitterFraction: 0,
	})
	te := NewTransientError(eris.New("503"), 503)

	assert.Equal(t, 100*time.Millisecond, computeBackoff(0, te, cfg))
	assert.Equal(t, 200*time.Millisecond, computeBackoff(1, te, cfg))
	assert.Equal(t, 300*time.Millisecond, computeBackoff(2, te, cfg))
}

func TestComputeBackoff_Capped(t *testing.T) {
	cfg := applyDefaults(RetryConfig{
		InitialBackoff: time.Second,
		MaxBackoff:     2 * time.Second,
		Multiplier:     10,
		JitterFraction: 0,
	})
	rl := NewRateLimitError(eris.New("429"))
	assert.Equal(t, 2*time.Second, computeBackoff(5, rl, cfg))
}
