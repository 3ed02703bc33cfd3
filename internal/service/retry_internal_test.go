package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sefazor/storycredits/internal/constants"
	"github.com/sefazor/storycredits/internal/repository"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRetryPolicy_Run(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	log := zap.NewNop()

	t.Run("version conflict is retried until it clears", func(t *testing.T) {
		calls := 0
		err := policy.run(context.Background(), log, "test", func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return repository.ErrVersionConflict
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("exhaustion keeps the last error", func(t *testing.T) {
		calls := 0
		err := policy.run(context.Background(), log, "test", func(ctx context.Context) error {
			calls++
			return repository.ErrVersionConflict
		})
		assert.ErrorIs(t, err, errRetriesExhausted)
		assert.Contains(t, err.Error(), repository.ErrVersionConflict.Error())
		assert.Equal(t, 3, calls)
	})

	t.Run("domain outcomes are final", func(t *testing.T) {
		for _, final := range []error{
			NewServiceError(constants.ErrCodeInsufficientBalance, errors.New("short")),
			repository.ErrTransactionExists,
			repository.ErrAccountNotFound,
		} {
			calls := 0
			err := policy.run(context.Background(), log, "test", func(ctx context.Context) error {
				calls++
				return final
			})
			assert.ErrorIs(t, err, final)
			assert.Equal(t, 1, calls)
		}
	})

	t.Run("cancelled context stops the loop", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		slow := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}
		calls := 0
		err := slow.run(ctx, log, "test", func(ctx context.Context) error {
			calls++
			cancel()
			return errors.New("timeout talking to db")
		})
		assert.ErrorIs(t, err, errRetriesExhausted)
		assert.Equal(t, 1, calls)
	})
}

func TestRetryPolicy_BackoffIsCapped(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 10, BaseDelay: 10 * time.Millisecond, MaxDelay: 40 * time.Millisecond}
	for attempt := 1; attempt <= 10; attempt++ {
		d := p.backoff(attempt)
		assert.LessOrEqual(t, d, 40*time.Millisecond)
		assert.GreaterOrEqual(t, d, 5*time.Millisecond)
	}
	assert.Zero(t, RetryPolicy{}.backoff(1))
}

func TestIdempotencyKey(t *testing.T) {
	a := idempotencyKey("checkout", "user_1", "k")
	assert.Len(t, a, 40)
	assert.Equal(t, a, idempotencyKey("checkout", "user_1", "k"))
	assert.NotEqual(t, a, idempotencyKey("checkout", "user_1k", ""))
}
