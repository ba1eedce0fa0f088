// SPDX-License-Identifier: Apache-2.0

package transform

import (
	"fmt"
	"strings"
)

// Concat applies a ConcatNode's directives to a built document, returning
// a new document. Each rule joins the string form of its declared
// columns -- or, for a column absent from the document at this level,
// the column's own name used as a literal -- with its delimiter,
// skipping falsy values (nil, "", zero, false), and writes the result to
// Destination, overwriting any existing key of that name. Rules within a
// node apply in declaration order, each seeing the previous rules'
// writes. Children recurse into nested object/array values the same way
// Rename does, but (unlike Rename) keys are never renamed by Concat.
func Concat(data map[string]any, node *ConcatNode) map[string]any {
	result := make(map[string]any, len(data))
	for k, v := range data {
		result[k] = v
	}
	if node == nil {
		return result
	}

	for _, rule := range node.Rules {
		parts := make([]string, 0, len(rule.Columns))
		for _, col := range rule.Columns {
			raw, ok := result[col]
			if !ok {
				raw = col
			}
			if isFalsy(raw) {
				continue
			}
			parts = append(parts, fmt.Sprint(raw))
		}
		result[rule.Destination] = strings.Join(parts, rule.Delimiter)
	}

	for key, child := range node.Children {
		value, ok := result[key]
		if !ok {
			continue
		}
		switch v := value.(type) {
		case map[string]any:
			result[key] = Concat(v, child)
		case []any:
			out := make([]any, len(v))
			for i, item := range v {
				if obj, ok := item.(map[string]any); ok {
					out[i] = Concat(obj, child)
				} else {
					out[i] = item
				}
			}
			result[key] = out
		}
	}

	return result
}

// isFalsy reports whether v would be filtered out of a concat join:
// absent/nil, the empty string, a zero number, or false -- matching the
// original's filter(None, values) behavior.
func isFalsy(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case int:
		return x == 0
	case int32:
		return x == 0
	case int64:
		return x == 0
	case float32:
		return x == 0
	case float64:
		return x == 0
	default:
		return false
	}
}
