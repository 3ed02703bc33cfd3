// Package timeout puts a hard deadline on calls to third-party APIs.
//
// A timed-out call is abandoned, not undone: the remote side may still
// complete it. Callers must treat ErrTimeout as an unknown outcome and rely on
// provider idempotency keys for anything with side effects.
package timeout

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	Short    = 10 * time.Second
	Medium   = 30 * time.Second
	Long     = 60 * time.Second
	VeryLong = 120 * time.Second
)

var ErrTimeout = errors.New("operation timed out")

type Error struct {
	Op    string
	After time.Duration
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.After)
}

func (e *Error) Is(target error) bool {
	return target == ErrTimeout
}

type result[T any] struct {
	value T
	err   error
}

// Do runs op and returns whichever comes first: op's result or the deadline.
// op receives a context that is cancelled when the deadline passes, but Do
// does not wait for op to notice. A late result is dropped.
func Do[T any](ctx context.Context, op string, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if d <= 0 {
		return fn(ctx)
	}

	opCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan result[T], 1)
	go func() {
		v, err := fn(opCtx)
		done <- result[T]{value: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() == nil && errors.Is(opCtx.Err(), context.DeadlineExceeded) {
			return zero, &Error{Op: op, After: d}
		}
		return r.value, r.err
	case <-opCtx.Done():
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, &Error{Op: op, After: d}
	}
}

func Run(ctx context.Context, op string, d time.Duration, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, op, d, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
