package errors

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetrySucceedsFirstAttempt(t *testing.T) {
	res := WithRetryContext(context.Background(), DefaultRetry, func(ctx context.Context) (int, error) {
		return 42, nil
	})

	require.NoError(t, res.Err)
	assert.Equal(t, 42, res.Value)
	assert.Equal(t, 1, res.Attempts)
}

func TestWithRetryRecoversFromTransientErrors(t *testing.T) {
	cfg := DefaultRetry
	cfg.InitialBackoff = time.Millisecond
	cfg.Jitter = 0

	calls := 0
	res := WithRetryContext(context.Background(), cfg, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", Transient(fmt.Errorf("connection reset"), "sink write")
		}
		return "ok", nil
	})

	require.NoError(t, res.Err)
	assert.Equal(t, "ok", res.Value)
	assert.Equal(t, 3, res.Attempts)
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	res := WithRetryContext(context.Background(), DefaultRetry, func(ctx context.Context) (int, error) {
		calls++
		return 0, Permanent(fmt.Errorf("bad credentials"), "sink auth")
	})

	require.Error(t, res.Err)
	assert.Equal(t, 1, calls, "permanent errors must not be retried")
	assert.Equal(t, CategoryPermanent, Categorize(res.Err))
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		BackoffFactor:  2.0,
	}

	calls := 0
	res := WithRetryContext(context.Background(), cfg, func(ctx context.Context) (int, error) {
		calls++
		return 0, Transient(fmt.Errorf("still down"), "sink write")
	})

	require.Error(t, res.Err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, res.Attempts)

	var catErr *CategorizedError
	require.ErrorAs(t, res.Err, &catErr)
	assert.Equal(t, "max retries exceeded", catErr.Context)
}

func TestWithRetryRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	res := WithRetryContext(ctx, DefaultRetry, func(ctx context.Context) (int, error) {
		calls++
		return 0, nil
	})

	require.Error(t, res.Err)
	assert.Equal(t, 0, calls, "cancelled context must prevent any attempt")
}

func TestNoRetryRunsOnce(t *testing.T) {
	calls := 0
	res := WithRetryContext(context.Background(), NoRetry, func(ctx context.Context) (int, error) {
		calls++
		return 0, Transient(fmt.Errorf("down"), "sink write")
	})

	require.Error(t, res.Err)
	assert.Equal(t, 1, calls)
}

func TestWithRetryCustomRetryableFunc(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		BackoffFactor:  2.0,
		RetryableFunc:  func(error) bool { return false },
	}

	calls := 0
	res := WithRetryContext(context.Background(), cfg, func(ctx context.Context) (int, error) {
		calls++
		return 0, Transient(fmt.Errorf("down"), "sink write")
	})

	require.Error(t, res.Err)
	assert.Equal(t, 1, calls)
}

func TestWithJitterBounds(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 50; i++ {
		d := withJitter(base, 0.1)
		assert.GreaterOrEqual(t, d, 90*time.Millisecond)
		assert.LessOrEqual(t, d, 110*time.Millisecond)
	}
	assert.Equal(t, base, withJitter(base, 0))
}
