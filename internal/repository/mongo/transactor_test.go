package mongo

import (
	"alcyxob/gym-booking/internal/repository"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"
)

func transientErr() error {
	return mongo.CommandError{
		Code:    112,
		Name:    "WriteConflict",
		Message: "write conflict",
		Labels:  []string{labelTransientTransaction},
	}
}

func TestRetryTransaction_SucceedsAfterConflicts(t *testing.T) {
	calls := 0
	err := retryTransaction(context.Background(), 5, time.Millisecond, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return transientErr()
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryTransaction_ExhaustionReturnsConflict(t *testing.T) {
	calls := 0
	err := retryTransaction(context.Background(), 3, time.Millisecond, func(ctx context.Context) error {
		calls++
		return fmt.Errorf("booking: %w", transientErr())
	})

	assert.ErrorIs(t, err, repository.ErrTxConflict)
	assert.Equal(t, 3, calls)
}

func TestRetryTransaction_NonTransientStopsImmediately(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := retryTransaction(context.Background(), 5, time.Millisecond, func(ctx context.Context) error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestRetryTransaction_RosterRaceIsRetried(t *testing.T) {
	calls := 0
	err := retryTransaction(context.Background(), 5, time.Millisecond, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return fmt.Errorf("%w: roster x", errRetryTransaction)
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryTransaction_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retryTransaction(ctx, 5, time.Second, func(ctx context.Context) error {
		return transientErr()
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 10*time.Millisecond, backoff(10*time.Millisecond, 1))
	assert.Equal(t, 40*time.Millisecond, backoff(10*time.Millisecond, 3))
	assert.Equal(t, maxTxRetryDelay, backoff(300*time.Millisecond, 10))
}

func TestHasErrorLabel(t *testing.T) {
	assert.True(t, hasErrorLabel(fmt.Errorf("wrapped: %w", transientErr()), labelTransientTransaction))
	assert.False(t, hasErrorLabel(transientErr(), labelUnknownCommitResult))
	assert.False(t, hasErrorLabel(errors.New("plain"), labelTransientTransaction))
}
