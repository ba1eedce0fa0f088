// SPDX-License-Identifier: Apache-2.0

package transform_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pgmirror/pgmirror/pkg/transform"
)

func TestRename_TopLevelRename(t *testing.T) {
	t.Parallel()

	node := &transform.RenameNode{Renames: map[string]string{"isbn": "ISBN"}}
	doc := map[string]any{"isbn": "978-1", "title": "My Book"}

	got := transform.Rename(doc, node)
	assert.Equal(t, "978-1", got["ISBN"])
	assert.Equal(t, "My Book", got["title"])
	_, hasOld := got["isbn"]
	assert.False(t, hasOld)
}

func TestRename_NestedObjectKeepsParentKey(t *testing.T) {
	t.Parallel()

	node := &transform.RenameNode{
		Children: map[string]*transform.RenameNode{
			"publisher": {Renames: map[string]string{"name": "publisherName"}},
		},
	}
	doc := map[string]any{
		"publisher": map[string]any{"name": "Acme", "id": int64(1)},
	}

	got := transform.Rename(doc, node)
	nested, ok := got["publisher"].(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, "Acme", nested["publisherName"])
	assert.Equal(t, int64(1), nested["id"])
}

func TestRename_ListOfScalarsIsSorted(t *testing.T) {
	t.Parallel()

	doc := map[string]any{"tags": []any{"zebra", "apple", "mango"}}
	got := transform.Rename(doc, nil)
	assert.Equal(t, []any{"apple", "mango", "zebra"}, got["tags"])
}

func TestRename_HeterogeneousListLeftUnsorted(t *testing.T) {
	t.Parallel()

	original := []any{"a", int64(1), true}
	doc := map[string]any{"mixed": original}
	got := transform.Rename(doc, nil)
	assert.Equal(t, original, got["mixed"])
}

func TestRename_ListOfObjectsRecurses(t *testing.T) {
	t.Parallel()

	node := &transform.RenameNode{
		Children: map[string]*transform.RenameNode{
			"reviews": {Renames: map[string]string{"body": "text"}},
		},
	}
	doc := map[string]any{
		"reviews": []any{
			map[string]any{"body": "great"},
			map[string]any{"body": "meh"},
		},
	}

	got := transform.Rename(doc, node)
	reviews, ok := got["reviews"].([]any)
	assert.True(t, ok)
	assert.Len(t, reviews, 2)
	first, ok := reviews[0].(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, "great", first["text"])
}

func TestRename_IdentityIsStable(t *testing.T) {
	t.Parallel()

	doc := map[string]any{
		"id":    int64(1),
		"title": "book",
		"nested": map[string]any{
			"a": "b",
		},
	}

	once := transform.Rename(doc, nil)
	twice := transform.Rename(once, nil)
	assert.Equal(t, once, twice)
	assert.Equal(t, doc, once)
}

func TestConcat_JoinsPresentColumnsSkippingFalsy(t *testing.T) {
	t.Parallel()

	node := &transform.ConcatNode{
		Rules: []transform.ConcatRule{
			{Columns: []string{"city", "state", "zip"}, Destination: "address", Delimiter: ", "},
		},
	}
	doc := map[string]any{"city": "Springfield", "state": "", "zip": "00000"}

	got := transform.Concat(doc, node)
	assert.Equal(t, "Springfield, 00000", got["address"])
}

func TestConcat_AbsentColumnUsesLiteralName(t *testing.T) {
	t.Parallel()

	node := &transform.ConcatNode{
		Rules: []transform.ConcatRule{
			{Columns: []string{"prefix", "title"}, Destination: "full_title", Delimiter: " "},
		},
	}
	doc := map[string]any{"title": "Report"}

	got := transform.Concat(doc, node)
	assert.Equal(t, "prefix Report", got["full_title"])
}

func TestConcat_RecursesIntoChildObjectsAndLists(t *testing.T) {
	t.Parallel()

	node := &transform.ConcatNode{
		Children: map[string]*transform.ConcatNode{
			"reviews": {
				Rules: []transform.ConcatRule{
					{Columns: []string{"rating", "body"}, Destination: "summary", Delimiter: ": "},
				},
			},
		},
	}
	doc := map[string]any{
		"reviews": []any{
			map[string]any{"rating": "5", "body": "great"},
		},
	}

	got := transform.Concat(doc, node)
	reviews, ok := got["reviews"].([]any)
	assert.True(t, ok)
	review, ok := reviews[0].(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, "5: great", review["summary"])
}

func TestConcat_DeterministicOnRepeatedApplication(t *testing.T) {
	t.Parallel()

	node := &transform.ConcatNode{
		Rules: []transform.ConcatRule{
			{Columns: []string{"a", "b"}, Destination: "ab", Delimiter: "-"},
		},
	}
	doc := map[string]any{"a": "x", "b": "y"}

	first := transform.Concat(doc, node)
	second := transform.Concat(doc, node)
	assert.Equal(t, first, second)
}
