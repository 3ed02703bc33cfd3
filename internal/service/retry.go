package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/sefazor/storycredits/internal/repository"
	"go.uber.org/zap"
)

var errRetriesExhausted = errors.New("retries exhausted")

type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 4, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second}
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay << (attempt - 1)
	if p.MaxDelay > 0 && (d > p.MaxDelay || d <= 0) {
		d = p.MaxDelay
	}
	// up to 50% jitter so racing writers do not retry in lockstep
	return d/2 + time.Duration(rand.Int63n(int64(d/2)+1))
}

// run calls fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. Exhaustion is reported wrapped in
// errRetriesExhausted together with the last error.
func (p RetryPolicy) run(ctx context.Context, log *zap.Logger, op string, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		last = fn(ctx)
		if last == nil || !retryable(last) {
			return last
		}
		if attempt == attempts {
			break
		}

		delay := p.backoff(attempt)
		log.Warn("Retrying ledger write",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(last),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", errRetriesExhausted, ctx.Err())
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", errRetriesExhausted, attempts, last)
}

// retryable is true for version conflicts and anything that looks like a
// datastore hiccup. Domain outcomes are final.
func retryable(err error) bool {
	var se Error
	switch {
	case errors.As(err, &se):
		return false
	case errors.Is(err, repository.ErrTransactionExists),
		errors.Is(err, repository.ErrAccountNotFound),
		errors.Is(err, repository.ErrTransactionNotFound),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	default:
		return true
	}
}
