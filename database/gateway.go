package database

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/actionos/actionos-backend/shared"
	"github.com/sirupsen/logrus"
)

// QueryOptions configures one gateway execution.
type QueryOptions struct {
	MaxRetries int           // total attempts, default 3
	Timeout    time.Duration // per-attempt deadline, default 30s
	AllowEmpty bool          // permit nil/empty results, default false

	// sleep is replaced in tests to observe backoff delays.
	sleep func(time.Duration)
}

// DefaultQueryOptions returns the gateway defaults.
func DefaultQueryOptions() QueryOptions {
	cfg := shared.NewDefaultUnifiedConfiguration().Gateway
	return QueryOptions{
		MaxRetries: cfg.MaxRetries,
		Timeout:    cfg.Timeout,
	}
}

const (
	backoffBase = 1000 * time.Millisecond
	backoffCap  = 5000 * time.Millisecond
)

// backoffDelay returns min(1000ms * 2^attempt, 5000ms), attempt indexed
// from 0.
func backoffDelay(attempt int) time.Duration {
	delay := backoffBase << uint(attempt)
	if delay > backoffCap || delay <= 0 {
		return backoffCap
	}
	return delay
}

// Execute runs a single logical store operation with bounded retries and a
// per-attempt timeout. Every store access in the backend routes through it.
//
// Timeouts and tagged not-found failures are surfaced immediately since
// retrying cannot change their outcome. A nil result with AllowEmpty unset
// is treated as a failure and retried like any other transient error.
// Exhausting MaxRetries yields a query_exhausted error wrapping the last
// underlying failure.
func Execute[T any](ctx context.Context, operation func(context.Context) (T, error), opts QueryOptions) (T, error) {
	var zero T

	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	sleep := opts.sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var lastErr error

	for attempt := 0; attempt < opts.MaxRetries; attempt++ {
		result, err := runAttempt(ctx, operation, opts.Timeout)

		if err == nil {
			if opts.AllowEmpty || !isEmptyResult(result) {
				return result, nil
			}
			err = shared.NewStoreError(shared.StoreErrEmptyResult, "query returned empty result", nil)
		}

		if isTerminal(err) {
			logrus.WithFields(logrus.Fields{
				"attempt": attempt + 1,
				"error":   err.Error(),
			}).Warn("Non-retryable query error")
			return zero, err
		}

		lastErr = err

		if attempt < opts.MaxRetries-1 {
			delay := backoffDelay(attempt)
			logrus.WithFields(logrus.Fields{
				"attempt": attempt + 1,
				"delay":   delay,
				"error":   err.Error(),
			}).Warn("Query failed, retrying")
			sleep(delay)
		}
	}

	logrus.WithField("error", lastErr).Error("Query failed after all retries")
	return zero, shared.NewStoreError(shared.StoreErrQueryExhausted,
		fmt.Sprintf("query failed after %d attempts", opts.MaxRetries), lastErr)
}

// isTerminal reports whether retrying cannot change the outcome: timeouts,
// tagged not-found results, and deterministic constraint violations.
func isTerminal(err error) bool {
	for _, code := range []shared.StoreErrorCode{
		shared.StoreErrTimeout,
		shared.StoreErrNotFound,
		shared.StoreErrUniqueViolation,
		shared.StoreErrCheckViolation,
	} {
		if shared.IsStoreErrorCode(err, code) {
			return true
		}
	}
	return false
}

// runAttempt races the operation against the per-attempt deadline. If the
// deadline fires first the result is abandoned; the underlying write, if it
// completes later, is not rolled back (all writes here are idempotent or
// monotonic).
func runAttempt[T any](ctx context.Context, operation func(context.Context) (T, error), timeout time.Duration) (T, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result T
		err    error
	}

	done := make(chan outcome, 1)
	go func() {
		result, err := operation(attemptCtx)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(out.err, context.DeadlineExceeded) {
			var zero T
			return zero, shared.NewStoreError(shared.StoreErrTimeout, "query timeout", out.err)
		}
		return out.result, out.err
	case <-attemptCtx.Done():
		var zero T
		return zero, shared.NewStoreError(shared.StoreErrTimeout, "query timeout", attemptCtx.Err())
	}
}

// isEmptyResult reports whether a successful result carries no data: a nil
// pointer, nil map, or nil/empty slice. Value kinds (ints, strings,
// structs) are never empty.
func isEmptyResult(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map:
		return rv.IsNil()
	case reflect.Slice:
		return rv.IsNil() || rv.Len() == 0
	}
	return false
}
