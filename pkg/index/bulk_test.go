// SPDX-License-Identifier: Apache-2.0

package index_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgmirror/pgmirror/pkg/index"
)

type fakeSink struct {
	received []index.Item
	results  []index.Result
	err      error
}

func (f *fakeSink) Bulk(_ context.Context, items []index.Item) ([]index.Result, error) {
	f.received = items
	if f.err != nil {
		return nil, f.err
	}
	if f.results != nil {
		return f.results, nil
	}
	out := make([]index.Result, len(items))
	for i, it := range items {
		out[i] = index.Result{ID: it.ID, Action: it.Action}
	}
	return out, nil
}

func TestIndexer_PreservesInputOrderAndDoesNotCoalesce(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	idx := index.NewIndexer(sink)

	items := []index.Item{
		{Index: "books", ID: "1", Action: index.ActionIndex, Source: map[string]any{"title": "a"}},
		{Index: "books", ID: "1", Action: index.ActionDelete},
		{Index: "books", ID: "2", Action: index.ActionIndex, Source: map[string]any{"title": "b"}},
	}

	results, err := idx.Bulk(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, sink.received, items, "every item submitted verbatim, no coalescing")
	assert.Equal(t, "1", results[0].ID)
	assert.Equal(t, index.ActionIndex, results[0].Action)
	assert.Equal(t, "1", results[1].ID)
	assert.Equal(t, index.ActionDelete, results[1].Action)
}

func TestIndexer_EmptyBatchIsNoop(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	idx := index.NewIndexer(sink)

	results, err := idx.Bulk(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, results)
	assert.Nil(t, sink.received)
}

func TestFailedItems_FiltersByResultError(t *testing.T) {
	t.Parallel()

	items := []index.Item{
		{ID: "1", Action: index.ActionIndex},
		{ID: "2", Action: index.ActionIndex},
	}
	results := []index.Result{
		{ID: "1"},
		{ID: "2", Err: index.IndexError{ID: "2", Reason: "mapper_parsing_exception"}},
	}

	failed := index.FailedItems(items, results)
	require.Len(t, failed, 1)
	assert.Equal(t, "2", failed[0].ID)
}
