// SPDX-License-Identifier: Apache-2.0

package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgmirror/pgmirror/internal/config"
)

const twoDescriptors = `[
	{
		"database": "mydb",
		"index": "book",
		"nodes": { "table": "book", "primary_key": ["id"] }
	},
	{
		"database": "mydb",
		"index": "author",
		"nodes": { "table": "author", "primary_key": ["id"] }
	}
]`

func TestParse_ReturnsOneDescriptorPerEntry(t *testing.T) {
	t.Parallel()

	descriptors, err := config.Parse([]byte(twoDescriptors))
	require.NoError(t, err)
	require.Len(t, descriptors, 2)
	assert.Equal(t, "book", descriptors[0].Index)
	assert.Equal(t, "author", descriptors[1].Index)
}

func TestParse_RejectsEmptyArray(t *testing.T) {
	t.Parallel()

	_, err := config.Parse([]byte(`[]`))
	require.Error(t, err)
}

func TestParse_RejectsMissingIndex(t *testing.T) {
	t.Parallel()

	_, err := config.Parse([]byte(`[{"nodes": {"table": "book"}}]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index name is required")
}

func TestDescriptor_TreeBuildsASchemaTree(t *testing.T) {
	t.Parallel()

	descriptors, err := config.Parse([]byte(twoDescriptors))
	require.NoError(t, err)

	tree, err := descriptors[0].Tree()
	require.NoError(t, err)
	assert.Equal(t, "book", tree.Root.Table)
}
