// SPDX-License-Identifier: Apache-2.0

package schema_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgmirror/pgmirror/pkg/schema"
)

const bookConfig = `{
	"nodes": {
		"table": "book",
		"primary_key": ["id"],
		"transform": {
			"rename": {"isbn": "ISBN"}
		},
		"children": {
			"publisher": {
				"table": "publisher",
				"primary_key": ["id"],
				"transform": {
					"rename": {"name": "publisherName"}
				}
			},
			"book_reviews": {
				"table": "review",
				"label": "reviews",
				"primary_key": ["id"],
				"transform": {
					"concat": [
						{"columns": ["rating", "body"], "destination": "summary", "delimiter": ": "}
					]
				}
			}
		}
	}
}`

const legacyConfig = `{"nodes": [{"table": "book"}]}`

func TestLoad_RejectsLegacyListShape(t *testing.T) {
	t.Parallel()

	_, err := schema.Load([]byte(legacyConfig))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "v2 schema migration")
}

func TestLoad_ValidConfig(t *testing.T) {
	t.Parallel()

	tree, err := schema.Load([]byte(bookConfig))
	require.NoError(t, err)
	assert.Equal(t, "book", tree.Root.Table)
	assert.Equal(t, []string{"id"}, tree.IDColumns())

	reviews := tree.Root.Children["book_reviews"]
	require.NotNil(t, reviews)
	assert.Equal(t, "reviews", reviews.Identity())
}

func TestLoad_DetectsCycle(t *testing.T) {
	t.Parallel()

	cyclic := `{
		"nodes": {
			"table": "book",
			"children": {
				"self": {"table": "book"}
			}
		}
	}`

	_, err := schema.Load([]byte(cyclic))
	require.Error(t, err)
	var cycleErr schema.CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, "book", cycleErr.Table)
}

func TestLoad_DetectsDuplicateChildIdentity(t *testing.T) {
	t.Parallel()

	dup := `{
		"nodes": {
			"table": "book",
			"children": {
				"a": {"table": "publisher", "label": "pub"},
				"b": {"table": "imprint", "label": "pub"}
			}
		}
	}`

	_, err := schema.Load([]byte(dup))
	require.Error(t, err)
	var dupErr schema.DuplicateChildError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "pub", dupErr.Identity)
}

func TestTree_NodesForTable(t *testing.T) {
	t.Parallel()

	tree, err := schema.Load([]byte(bookConfig))
	require.NoError(t, err)

	matches := tree.NodesForTable("public", "publisher")
	require.Len(t, matches, 1)
	assert.Equal(t, "publisher", matches[0].Identity())
}

func TestTree_RenameTree(t *testing.T) {
	t.Parallel()

	tree, err := schema.Load([]byte(bookConfig))
	require.NoError(t, err)

	renameTree := tree.RenameTree()
	require.NotNil(t, renameTree)
	assert.Equal(t, "ISBN", renameTree.Renames["isbn"])

	publisherNode := renameTree.Children["publisher"]
	require.NotNil(t, publisherNode)
	assert.Equal(t, "publisherName", publisherNode.Renames["name"])

	_, hasReviews := renameTree.Children["reviews"]
	assert.False(t, hasReviews, "reviews subtree carries no rename directives so it is elided")
}

func TestTree_ConcatTree(t *testing.T) {
	t.Parallel()

	tree, err := schema.Load([]byte(bookConfig))
	require.NoError(t, err)

	concatTree := tree.ConcatTree()
	require.NotNil(t, concatTree)

	reviews := concatTree.Children["reviews"]
	require.NotNil(t, reviews)
	require.Len(t, reviews.Rules, 1)
	assert.Equal(t, "summary", reviews.Rules[0].Destination)

	_, hasPublisher := concatTree.Children["publisher"]
	assert.False(t, hasPublisher, "publisher subtree carries no concat directives so it is elided")
}

type fakeLookup struct {
	columns map[string][]string
}

func (f *fakeLookup) PrimaryKeyColumns(_ context.Context, schemaName, table string) ([]string, error) {
	return f.columns[schemaName+"."+table], nil
}

func TestTree_ResolvePrimaryKeys(t *testing.T) {
	t.Parallel()

	tree, err := schema.Load([]byte(`{
		"nodes": {
			"table": "book",
			"children": {
				"publisher": {"table": "publisher"}
			}
		}
	}`))
	require.NoError(t, err)

	lookup := &fakeLookup{columns: map[string][]string{
		"public.book":      {"id"},
		"public.publisher": {"id"},
	}}

	err = tree.ResolvePrimaryKeys(context.Background(), lookup)
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, tree.Root.PrimaryKey)
	assert.Equal(t, []string{"id"}, tree.Root.Children["publisher"].PrimaryKey)
}

func TestTree_ResolvePrimaryKeys_MissingIsSchemaError(t *testing.T) {
	t.Parallel()

	tree, err := schema.Load([]byte(`{"nodes": {"table": "book"}}`))
	require.NoError(t, err)

	lookup := &fakeLookup{columns: map[string][]string{}}
	err = tree.ResolvePrimaryKeys(context.Background(), lookup)
	require.Error(t, err)
	var schemaErr schema.SchemaError
	require.ErrorAs(t, err, &schemaErr)
}

type fakeTableLoader struct {
	tables map[string]*schema.Table
	loads  int
}

func (f *fakeTableLoader) LoadTable(_ context.Context, schemaName, table string) (*schema.Table, error) {
	f.loads++
	t, ok := f.tables[schemaName+"."+table]
	if !ok {
		return nil, schema.SchemaError{Table: schemaName + "." + table, Reason: "table does not exist"}
	}
	return t, nil
}

func newFakeTable(name string, columns ...string) *schema.Table {
	t := &schema.Table{Schema: "public", Name: name}
	for _, c := range columns {
		t.AddColumn(&schema.Column{Name: c, Type: "text"})
	}
	return t
}

func TestTree_ValidateColumns(t *testing.T) {
	t.Parallel()

	tree, err := schema.Load([]byte(`{
		"nodes": {
			"table": "book",
			"columns": ["id", "title", "publisher_id"],
			"children": {
				"publisher": {"table": "publisher", "foreign_key": ["publisher_id"], "columns": ["id", "name"]}
			}
		}
	}`))
	require.NoError(t, err)

	loader := &fakeTableLoader{tables: map[string]*schema.Table{
		"public.book":      newFakeTable("book", "id", "title", "publisher_id"),
		"public.publisher": newFakeTable("publisher", "id", "name", "publisher_id"),
	}}

	require.NoError(t, tree.ValidateColumns(context.Background(), loader))
}

func TestTree_ValidateColumns_MissingColumnIsSchemaError(t *testing.T) {
	t.Parallel()

	tree, err := schema.Load([]byte(`{"nodes": {"table": "book", "columns": ["id", "nonexistent"]}}`))
	require.NoError(t, err)

	loader := &fakeTableLoader{tables: map[string]*schema.Table{
		"public.book": newFakeTable("book", "id", "title"),
	}}

	err = tree.ValidateColumns(context.Background(), loader)
	require.Error(t, err)
	var schemaErr schema.SchemaError
	require.ErrorAs(t, err, &schemaErr)
}

func TestTree_ValidateColumns_LoadsSharedTableOnce(t *testing.T) {
	t.Parallel()

	tree, err := schema.Load([]byte(`{
		"nodes": {
			"table": "book",
			"columns": ["id"],
			"children": {
				"a": {"table": "tag", "label": "a", "columns": ["id"]},
				"b": {"table": "tag", "label": "b", "columns": ["id"]}
			}
		}
	}`))
	require.NoError(t, err)

	loader := &fakeTableLoader{tables: map[string]*schema.Table{
		"public.book": newFakeTable("book", "id"),
		"public.tag":  newFakeTable("tag", "id"),
	}}

	require.NoError(t, tree.ValidateColumns(context.Background(), loader))
	assert.Equal(t, 2, loader.loads, "book and tag are each loaded once despite tag being joined twice")
}
