// SPDX-License-Identifier: Apache-2.0

// Package document re-materializes a changed row into one or more root
// documents by walking the schema tree's parent/child links and
// re-querying related rows.
package document

import (
	"fmt"
	"strings"
)

// StableID serializes an ordered primary-key tuple to the stable string
// a built document's _id is derived from. Order matters: callers must
// pass values in the same declared order as the node's primary key
// columns, so the same row always yields the same _id across rebuilds.
func StableID(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, "/")
}
