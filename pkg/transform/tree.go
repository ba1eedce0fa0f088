// SPDX-License-Identifier: Apache-2.0

// Package transform applies declarative rename/concat field transforms to
// built documents. It is a direct reimplementation of pgsync's
// Transform.rename / Transform.concat / Transform.get, recast as an
// explicit tagged union over JSON value kinds rather than dynamically
// typed dict branching.
package transform

// ConcatRule describes one "concat" directive declared on a schema tree
// node: join the values of Columns (or, if a column is absent from the
// document, its own name as a literal) with Delimiter, writing the
// result to Destination.
type ConcatRule struct {
	Columns     []string
	Destination string
	Delimiter   string
}

// RenameNode is the gathered rename-directive subtree for one level of a
// built document, produced by schema.Tree.RenameTree. Renames holds this
// level's key renames; Children holds the subtree for a nested
// object/array value, keyed by the child's label-or-table identity.
// schema.Tree.RenameTree never returns a RenameNode with no renames and
// no children: children with no directives at any depth are elided.
type RenameNode struct {
	Renames  map[string]string
	Children map[string]*RenameNode
}

// ConcatNode is the gathered concat-directive subtree for one level.
type ConcatNode struct {
	Rules    []ConcatRule
	Children map[string]*ConcatNode
}

// IsEmpty reports whether this node (transitively) carries no directives
// at all, in which case schema.Tree.RenameTree elides it from its
// parent.
func (n *RenameNode) IsEmpty() bool {
	return n == nil || (len(n.Renames) == 0 && len(n.Children) == 0)
}

// IsEmpty reports whether this node (transitively) carries no concat
// rules at all.
func (n *ConcatNode) IsEmpty() bool {
	return n == nil || (len(n.Rules) == 0 && len(n.Children) == 0)
}
