// SPDX-License-Identifier: Apache-2.0

package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgmirror/pgmirror/pkg/index"
	"github.com/pgmirror/pgmirror/pkg/slot"
)

func TestWithReplicationRetry_SucceedsAfterTransientFailure(t *testing.T) {
	t.Parallel()

	calls := 0
	result, err := withReplicationRetry(context.Background(), func() (int, error) {
		calls++
		if calls < 2 {
			return 0, slot.ReplicationError{Slot: "s", Op: "peek", Attempt: calls}
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 2, calls)
}

func TestWithReplicationRetry_EscalatesToFatalAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	_, err := withReplicationRetry(context.Background(), func() (int, error) {
		calls++
		return 0, slot.ReplicationError{Slot: "s", Op: "peek", Attempt: calls}
	})

	require.Error(t, err)
	var fatal FatalError
	assert.True(t, errors.As(err, &fatal))
	assert.Equal(t, maxRetryAttempts, calls)
}

func TestWithReplicationRetry_PassesThroughOtherErrors(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("boom")
	_, err := withReplicationRetry(context.Background(), func() (int, error) {
		return 0, wantErr
	})

	assert.Equal(t, wantErr, err)
}

func TestWithIndexRetry_EscalatesToFatalAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	_, err := withIndexRetry(context.Background(), func() ([]index.Result, error) {
		calls++
		return nil, index.IndexError{Index: "books", Reason: "cluster unavailable", Attempt: calls}
	})

	require.Error(t, err)
	var fatal FatalError
	assert.True(t, errors.As(err, &fatal))
	assert.Equal(t, maxRetryAttempts, calls)
}
