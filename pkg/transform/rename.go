// SPDX-License-Identifier: Apache-2.0

package transform

import "sort"

// Rename applies a RenameNode's directives to a built document, returning
// a new document. Renaming is applied per key at each level:
//
//  1. If the node declares a rename for key, the key is renamed; the
//     value is left untouched (not recursed into).
//  2. Else if the value is a nested object and the node has a child
//     subtree for key, recurse into the value using that subtree. The
//     key itself is not renamed in this case.
//  3. Else if the value is a list of non-objects, it is sorted
//     (stably); if the elements are not mutually comparable the
//     original order is preserved.
//  4. Else if the value is a list of objects and the node has a child
//     subtree for key, each element is recursively renamed.
//
// A nil node behaves as an empty one: every key passes through
// unchanged, except that list-of-scalar values are still sorted (rule 3
// applies regardless of directives, matching the schema tree's sort
// edge case for primitive list leaves).
func Rename(data map[string]any, node *RenameNode) map[string]any {
	result := make(map[string]any, len(data))

	var renames map[string]string
	var children map[string]*RenameNode
	if node != nil {
		renames = node.Renames
		children = node.Children
	}

	for key, value := range data {
		if newName, ok := renames[key]; ok {
			result[newName] = value
			continue
		}

		if obj, ok := value.(map[string]any); ok {
			if child, ok := children[key]; ok {
				value = Rename(obj, child)
			}
			result[key] = value
			continue
		}

		if list, ok := value.([]any); ok && len(list) > 0 {
			if _, isObj := list[0].(map[string]any); !isObj {
				if sorted, ok := sortScalarSlice(list); ok {
					value = sorted
				}
				result[key] = value
				continue
			}

			if child, ok := children[key]; ok {
				renamed := make([]any, len(list))
				for i, v := range list {
					if obj, ok := v.(map[string]any); ok {
						renamed[i] = Rename(obj, child)
					} else {
						renamed[i] = v
					}
				}
				value = renamed
			}
			result[key] = value
			continue
		}

		result[key] = value
	}

	return result
}

type valueKind int

const (
	kindOther valueKind = iota
	kindString
	kindNumeric
	kindBool
)

func classify(v any) valueKind {
	switch v.(type) {
	case string:
		return kindString
	case int, int32, int64, float32, float64:
		return kindNumeric
	case bool:
		return kindBool
	default:
		return kindOther
	}
}

// sortScalarSlice returns a stably sorted copy of list if every element
// shares a mutually comparable kind, and false if the slice is
// heterogeneous (mirroring Python's TypeError-on-sorted(heterogeneous)
// behavior, which the original leaves unsorted).
func sortScalarSlice(list []any) ([]any, bool) {
	kind := classify(list[0])
	if kind == kindOther {
		return nil, false
	}
	for _, v := range list[1:] {
		if classify(v) != kind {
			return nil, false
		}
	}

	out := make([]any, len(list))
	copy(out, list)

	switch kind {
	case kindString:
		sort.SliceStable(out, func(i, j int) bool { return out[i].(string) < out[j].(string) })
	case kindNumeric:
		sort.SliceStable(out, func(i, j int) bool { return toFloat64(out[i]) < toFloat64(out[j]) })
	case kindBool:
		sort.SliceStable(out, func(i, j int) bool { return !out[i].(bool) && out[j].(bool) })
	}
	return out, true
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}
