// SPDX-License-Identifier: Apache-2.0

package slot_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pgmirror/pgmirror/pkg/slot"
)

func TestName_IsDeterministicFromDatabaseAndIndex(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "testdb_books", slot.Name("testdb", "books"))
	assert.Equal(t, "testdb_books", slot.Name("testdb", "books"), "deterministic across calls")
}

func TestHasRowEvents_ControlOnlyBatch(t *testing.T) {
	t.Parallel()

	changes := []slot.Change{
		{Data: "BEGIN 1234"},
		{Data: "COMMIT 1234"},
	}
	assert.False(t, slot.HasRowEvents(changes))
}

func TestHasRowEvents_MixedBatch(t *testing.T) {
	t.Parallel()

	changes := []slot.Change{
		{Data: "BEGIN 1234"},
		{Data: "table public.book: INSERT: id[integer]:1"},
		{Data: "COMMIT 1234"},
	}
	assert.True(t, slot.HasRowEvents(changes))
}

func TestHasRowEvents_EmptyBatch(t *testing.T) {
	t.Parallel()

	assert.False(t, slot.HasRowEvents(nil))
}
