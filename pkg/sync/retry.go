// SPDX-License-Identifier: Apache-2.0

package sync

import (
	"context"
	"errors"
	"time"

	"github.com/cloudflare/backoff"

	"github.com/pgmirror/pgmirror/pkg/index"
	"github.com/pgmirror/pgmirror/pkg/slot"
)

// maxRetryAttempts bounds how many consecutive ReplicationError or
// IndexError failures the coordinator tolerates before escalating to
// FatalError. The retry helpers count attempts themselves; the Attempt
// field on either error kind is not consulted.
const maxRetryAttempts = 5

const (
	retryMaxDuration = 30 * time.Second
	retryInterval    = 500 * time.Millisecond
)

// withReplicationRetry retries op on slot.ReplicationError with a
// jittered exponential backoff, escalating to FatalError after
// maxRetryAttempts consecutive failures. Any other error is returned
// immediately.
func withReplicationRetry[T any](ctx context.Context, op func() (T, error)) (T, error) {
	b := backoff.New(retryMaxDuration, retryInterval)
	var zero T

	for attempt := 1; ; attempt++ {
		result, err := op()
		if err == nil {
			return result, nil
		}

		var repErr slot.ReplicationError
		if !errors.As(err, &repErr) {
			return zero, err
		}
		if attempt >= maxRetryAttempts {
			return zero, FatalError{Reason: "replication slot unavailable after repeated retries", Err: err}
		}
		if err := sleepCtx(ctx, b.Duration()); err != nil {
			return zero, err
		}
	}
}

// withIndexRetry retries op on index.IndexError with a jittered
// exponential backoff, escalating to FatalError after maxRetryAttempts
// consecutive failures.
func withIndexRetry(ctx context.Context, op func() ([]index.Result, error)) ([]index.Result, error) {
	b := backoff.New(retryMaxDuration, retryInterval)

	for attempt := 1; ; attempt++ {
		results, err := op()
		if err == nil {
			return results, nil
		}

		var idxErr index.IndexError
		if !errors.As(err, &idxErr) {
			return nil, err
		}
		if attempt >= maxRetryAttempts {
			return nil, FatalError{Reason: "index sink unavailable after repeated retries", Err: err}
		}
		if err := sleepCtx(ctx, b.Duration()); err != nil {
			return nil, err
		}
	}
}
