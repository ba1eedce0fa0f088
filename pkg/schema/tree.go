// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"context"
	"encoding/json"

	"github.com/pgmirror/pgmirror/pkg/transform"
)

// ConcatConfig is the JSON shape of a single "concat" transform directive
// declared on a node.
type ConcatConfig struct {
	Columns     []string `json:"columns"`
	Destination string   `json:"destination"`
	Delimiter   string   `json:"delimiter"`
}

// TransformConfig is the JSON shape of a node's declared transforms.
type TransformConfig struct {
	Rename map[string]string `json:"rename,omitempty"`
	Concat []ConcatConfig    `json:"concat,omitempty"`
}

// Node is one level of the declarative document tree: a root or joined
// table, the columns to project from it, and the transforms to apply to
// its contribution to the built document.
type Node struct {
	Table       string           `json:"table"`
	Schema      string           `json:"schema,omitempty"`
	Label       string           `json:"label,omitempty"`
	Columns     []string         `json:"columns,omitempty"`
	PrimaryKey  []string         `json:"primary_key,omitempty"`
	ForeignKey  []string         `json:"foreign_key,omitempty"`
	Cardinality string           `json:"cardinality,omitempty"`
	Transform   *TransformConfig `json:"transform,omitempty"`
	Children    map[string]*Node `json:"children,omitempty"`
}

// IsToOne reports whether this node renders as a single nested object
// (at most one matching row) rather than an array. Declared explicitly
// via "cardinality": "one"; every other child defaults to "many".
func (n *Node) IsToOne() bool {
	return n.Cardinality == "one"
}

// EffectiveForeignKey returns the node's declared foreign key columns,
// or the conventional "<parentTable>_id" single-column guess if none is
// declared.
func (n *Node) EffectiveForeignKey(parentTable string) []string {
	if len(n.ForeignKey) > 0 {
		return n.ForeignKey
	}
	return []string{parentTable + "_id"}
}

// Identity is the node's label if declared, else its table name. It is
// the key built documents use for this node's contribution at its
// parent's level, and the key schema tree validation uses to detect
// duplicate or cyclic nodes.
func (n *Node) Identity() string {
	if n.Label != "" {
		return n.Label
	}
	return n.Table
}

// SchemaName returns the node's declared schema, defaulting to "public".
func (n *Node) SchemaName() string {
	if n.Schema != "" {
		return n.Schema
	}
	return "public"
}

// QualifiedTable returns "schema.table" for this node.
func (n *Node) QualifiedTable() string {
	return n.SchemaName() + "." + n.Table
}

// Tree is a loaded, validated document tree rooted at one table.
type Tree struct {
	Root *Node
}

type rawConfig struct {
	Nodes json.RawMessage `json:"nodes"`
}

// Load parses a JSON configuration document into a Tree. It rejects the
// legacy list-shaped "nodes" field (an array of root definitions, the
// shape used before the v2 schema migration) with ErrLegacySchema, and
// validates the resulting tree for cycles and duplicate child identities.
func Load(data []byte) (*Tree, error) {
	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	if looksLikeArray(raw.Nodes) {
		return nil, ErrLegacySchema()
	}

	var root Node
	if err := json.Unmarshal(raw.Nodes, &root); err != nil {
		return nil, err
	}

	tree := &Tree{Root: &root}
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	return tree, nil
}

func looksLikeArray(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '[':
			return true
		default:
			return false
		}
	}
	return false
}

// Validate checks the tree for two structural defects: a node whose
// table reappears among its own ancestors (a cycle, since the document
// builder would recurse forever trying to join it), and two children of
// the same node sharing an identity (ambiguous: the document builder
// would not know which one a built key belongs to).
func (t *Tree) Validate() error {
	if t.Root == nil {
		return SchemaError{Reason: "empty schema tree: no root node"}
	}
	return validateNode(t.Root, nil)
}

func validateNode(n *Node, ancestorTables []string) error {
	for _, a := range ancestorTables {
		if a == n.Table {
			return CycleError{Table: n.Table}
		}
	}

	seen := make(map[string]bool, len(n.Children))
	for _, child := range n.Children {
		id := child.Identity()
		if seen[id] {
			return DuplicateChildError{Parent: n.Identity(), Identity: id}
		}
		seen[id] = true
	}

	nextAncestors := append(append([]string(nil), ancestorTables...), n.Table)
	for _, child := range n.Children {
		if err := validateNode(child, nextAncestors); err != nil {
			return err
		}
	}
	return nil
}

// IDColumns returns the root node's primary key column names, in
// declared order. Primary keys must already be resolved (either
// configured explicitly or filled in by ResolvePrimaryKeys) before this
// is called.
func (t *Tree) IDColumns() []string {
	return t.Root.PrimaryKey
}

// PrimaryKeyLookup discovers a table's primary key columns from the live
// catalog, for nodes that don't declare one explicitly.
type PrimaryKeyLookup interface {
	PrimaryKeyColumns(ctx context.Context, schemaName, table string) ([]string, error)
}

// ResolvePrimaryKeys fills in PrimaryKey for every node in the tree that
// doesn't declare one explicitly, querying lookup for each.
func (t *Tree) ResolvePrimaryKeys(ctx context.Context, lookup PrimaryKeyLookup) error {
	return resolvePrimaryKeys(ctx, t.Root, lookup)
}

func resolvePrimaryKeys(ctx context.Context, n *Node, lookup PrimaryKeyLookup) error {
	if len(n.PrimaryKey) == 0 {
		cols, err := lookup.PrimaryKeyColumns(ctx, n.SchemaName(), n.Table)
		if err != nil {
			return err
		}
		if len(cols) == 0 {
			return SchemaError{Table: n.QualifiedTable(), Reason: "no primary key found and none configured"}
		}
		n.PrimaryKey = cols
	}

	for _, child := range n.Children {
		if err := resolvePrimaryKeys(ctx, child, lookup); err != nil {
			return err
		}
	}
	return nil
}

// TableLoader introspects a live table's columns, for validating a
// node's declared column list against what actually exists.
type TableLoader interface {
	LoadTable(ctx context.Context, schemaName, table string) (*Table, error)
}

// ValidateColumns checks every node's declared columns (and foreign key
// columns, for non-root nodes) against the live catalog, loading each
// backing table at most once even if the tree joins it from more than
// one path.
func (t *Tree) ValidateColumns(ctx context.Context, loader TableLoader) error {
	cache := make(map[string]*Table)
	return validateNodeColumns(ctx, t.Root, loader, cache)
}

func validateNodeColumns(ctx context.Context, n *Node, loader TableLoader, cache map[string]*Table) error {
	key := n.QualifiedTable()
	table, ok := cache[key]
	if !ok {
		loaded, err := loader.LoadTable(ctx, n.SchemaName(), n.Table)
		if err != nil {
			return err
		}
		table = loaded
		cache[key] = table
	}

	for _, col := range n.Columns {
		if _, err := table.RequireColumn(col); err != nil {
			return err
		}
	}
	for _, col := range n.ForeignKey {
		if _, err := table.RequireColumn(col); err != nil {
			return err
		}
	}

	for _, child := range n.Children {
		if err := validateNodeColumns(ctx, child, loader, cache); err != nil {
			return err
		}
	}
	return nil
}

// NodesForTable returns every node in the tree backed by the given
// schema-qualified table. A table may appear more than once in a tree
// (e.g. joined in from two different paths) as long as it never appears
// among its own ancestors.
func (t *Tree) NodesForTable(schemaName, table string) []*Node {
	var matches []*Node
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.SchemaName() == schemaName && n.Table == table {
			matches = append(matches, n)
		}
		for _, child := range n.Children {
			walk(child)
		}
	}
	walk(t.Root)
	return matches
}

// NodePath pairs a matched node with its ancestor chain, root first,
// not including the node itself.
type NodePath struct {
	Node      *Node
	Ancestors []*Node
}

// PathsForTable is NodesForTable plus each match's ancestor chain, which
// the document builder walks to resolve a changed row back to its root
// primary key.
func (t *Tree) PathsForTable(schemaName, table string) []NodePath {
	var matches []NodePath
	var walk func(n *Node, ancestors []*Node)
	walk = func(n *Node, ancestors []*Node) {
		if n.SchemaName() == schemaName && n.Table == table {
			matches = append(matches, NodePath{Node: n, Ancestors: append([]*Node(nil), ancestors...)})
		}
		next := append(append([]*Node(nil), ancestors...), n)
		for _, child := range n.Children {
			walk(child, next)
		}
	}
	walk(t.Root, nil)
	return matches
}

// RenameTree gathers this tree's rename directives into the shape
// transform.Rename consumes, implementing the get(nodes, "rename")
// operation: directives are collected per node, keyed at each level by
// child identity, and a subtree with no directives at any depth is
// elided entirely.
func (t *Tree) RenameTree() *transform.RenameNode {
	return buildRenameNode(t.Root)
}

func buildRenameNode(n *Node) *transform.RenameNode {
	node := &transform.RenameNode{}
	if n.Transform != nil && len(n.Transform.Rename) > 0 {
		node.Renames = n.Transform.Rename
	}

	for _, child := range n.Children {
		childNode := buildRenameNode(child)
		if childNode.IsEmpty() {
			continue
		}
		if node.Children == nil {
			node.Children = make(map[string]*transform.RenameNode)
		}
		node.Children[child.Identity()] = childNode
	}

	if node.IsEmpty() {
		return nil
	}
	return node
}

// ConcatTree gathers this tree's concat directives into the shape
// transform.Concat consumes, implementing the get(nodes, "concat")
// operation.
func (t *Tree) ConcatTree() *transform.ConcatNode {
	return buildConcatNode(t.Root)
}

func buildConcatNode(n *Node) *transform.ConcatNode {
	node := &transform.ConcatNode{}
	if n.Transform != nil && len(n.Transform.Concat) > 0 {
		node.Rules = make([]transform.ConcatRule, len(n.Transform.Concat))
		for i, c := range n.Transform.Concat {
			node.Rules[i] = transform.ConcatRule{
				Columns:     c.Columns,
				Destination: c.Destination,
				Delimiter:   c.Delimiter,
			}
		}
	}

	for _, child := range n.Children {
		childNode := buildConcatNode(child)
		if childNode.IsEmpty() {
			continue
		}
		if node.Children == nil {
			node.Children = make(map[string]*transform.ConcatNode)
		}
		node.Children[child.Identity()] = childNode
	}

	if node.IsEmpty() {
		return nil
	}
	return node
}
