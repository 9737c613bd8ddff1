package backoff

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantforge/barstream/internal/xerrors"
)

func TestDoSucceedsWithoutRetryOnFirstAttempt(t *testing.T) {
	calls := 0
	p := NewPolicy(3, time.Millisecond)
	err := Do(context.Background(), p, func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesOnTransientErrorThenSucceeds(t *testing.T) {
	calls := 0
	p := NewPolicy(3, time.Millisecond)
	err := Do(context.Background(), p, func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return xerrors.ErrRateLimited
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoStopsImmediatelyOnNonRetryableError(t *testing.T) {
	calls := 0
	p := NewPolicy(5, time.Millisecond)
	err := Do(context.Background(), p, func(ctx context.Context) error {
		calls++
		return xerrors.ErrInvalidOrder
	})
	require.ErrorIs(t, err, xerrors.ErrInvalidOrder)
	assert.Equal(t, 1, calls)
}

func TestDoExhaustsBudgetAndReturnsWrappedError(t *testing.T) {
	calls := 0
	p := NewPolicy(3, time.Millisecond)
	err := Do(context.Background(), p, func(ctx context.Context) error {
		calls++
		return xerrors.ErrConnectivityLost
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, xerrors.ErrConnectivityLost)
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewPolicy(3, time.Millisecond)
	err := Do(ctx, p, func(ctx context.Context) error {
		return xerrors.ErrRateLimited
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRetryableDistinguishesTransientFromBusinessErrors(t *testing.T) {
	assert.True(t, Retryable(xerrors.ErrRateLimited))
	assert.True(t, Retryable(xerrors.ErrConnectivityLost))
	assert.False(t, Retryable(xerrors.ErrInvalidOrder))
	assert.False(t, Retryable(nil))
}
