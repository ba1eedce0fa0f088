// SPDX-License-Identifier: Apache-2.0

package document

import (
	"context"

	"github.com/pgmirror/pgmirror/pkg/applog"
	"github.com/pgmirror/pgmirror/pkg/rowevent"
	"github.com/pgmirror/pgmirror/pkg/schema"
)

// Document is one materialized root, ready for the transform pipeline
// and then the bulk indexer. Deleted distinguishes a delete action (the
// root row itself is gone) from an index action (Source carries the
// rebuilt nested object).
type Document struct {
	ID      string
	Index   string
	Source  map[string]any
	Deleted bool
}

// Builder re-materializes root documents affected by a changed row, per
// a schema tree's join graph.
type Builder struct {
	Tree  *schema.Tree
	Index string
	Rows  RowSource
	Log   applog.Logger
}

// NewBuilder constructs a Builder. log may be nil, in which case debug
// events (dangling children) are discarded.
func NewBuilder(tree *schema.Tree, indexName string, rows RowSource, log applog.Logger) *Builder {
	if log == nil {
		log = applog.NewNoop()
	}
	return &Builder{Tree: tree, Index: indexName, Rows: rows, Log: log}
}

// Build locates every schema tree node backed by the event's table,
// resolves each to its affected root primary key, and re-materializes
// one Document per distinct affected root.
func (b *Builder) Build(ctx context.Context, event rowevent.Event) ([]Document, error) {
	paths := b.Tree.PathsForTable(event.Schema, event.Table)
	if len(paths) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool)
	var docs []Document

	for _, path := range paths {
		rootPK, ok, err := b.resolveRootPK(ctx, event, path)
		if err != nil {
			return nil, err
		}
		if !ok {
			b.Log.Debug("dangling child, dropping event", "table", event.QualifiedTable())
			continue
		}

		id := StableID(rootPK)
		if seen[id] {
			continue
		}
		seen[id] = true

		if event.Operation == rowevent.OpDelete && len(path.Ancestors) == 0 {
			docs = append(docs, Document{ID: id, Index: b.Index, Deleted: true})
			continue
		}

		source, found, err := b.materializeRoot(ctx, rootPK)
		if err != nil {
			return nil, err
		}
		if !found {
			docs = append(docs, Document{ID: id, Index: b.Index, Deleted: true})
			continue
		}
		docs = append(docs, Document{ID: id, Index: b.Index, Source: source})
	}

	return docs, nil
}

// BuildAll re-materializes every root document in the tree from a full
// scan of the root table, for a bootstrap full re-index. Rows with no
// resolvable primary key are skipped.
func (b *Builder) BuildAll(ctx context.Context) ([]Document, error) {
	root := b.Tree.Root

	rows, err := b.Rows.SelectWhere(ctx, root.SchemaName(), root.Table, root.PrimaryKey, nil, nil, root.PrimaryKey)
	if err != nil {
		return nil, BuildError{Table: root.QualifiedTable(), Reason: "full scan query failed", Err: err}
	}

	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		rootPK, ok := valuesFromRow(row, root.PrimaryKey)
		if !ok {
			continue
		}

		source, found, err := b.materializeRoot(ctx, rootPK)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		docs = append(docs, Document{ID: StableID(rootPK), Index: b.Index, Source: source})
	}

	return docs, nil
}

// resolveRootPK walks a matched node's ancestor chain to find the
// primary key of the root document it contributes to.
func (b *Builder) resolveRootPK(ctx context.Context, event rowevent.Event, path schema.NodePath) ([]any, bool, error) {
	node := path.Node

	if len(path.Ancestors) == 0 {
		vals, ok := event.ColumnValues(node.PrimaryKey)
		return vals, ok, nil
	}

	immediateParent := path.Ancestors[len(path.Ancestors)-1]
	curVals, ok := event.ColumnValues(node.EffectiveForeignKey(immediateParent.Table))
	if !ok {
		return nil, false, nil
	}

	for i := len(path.Ancestors) - 1; i > 0; i-- {
		anc := path.Ancestors[i]
		parent := path.Ancestors[i-1]
		fk := anc.EffectiveForeignKey(parent.Table)

		rows, err := b.Rows.SelectWhere(ctx, anc.SchemaName(), anc.Table, fk, anc.PrimaryKey, curVals, nil)
		if err != nil {
			return nil, false, BuildError{Table: anc.QualifiedTable(), Reason: "parent-join query failed", Err: err}
		}
		if len(rows) == 0 {
			return nil, false, nil
		}

		next := make([]any, len(fk))
		for idx, col := range fk {
			next[idx] = rows[0][col]
		}
		curVals = next
	}

	return curVals, true, nil
}

func (b *Builder) materializeRoot(ctx context.Context, rootPK []any) (map[string]any, bool, error) {
	root := b.Tree.Root

	rows, err := b.Rows.SelectWhere(ctx, root.SchemaName(), root.Table, effectiveColumns(root), root.PrimaryKey, rootPK, nil)
	if err != nil {
		return nil, false, BuildError{Table: root.QualifiedTable(), Reason: "root query failed", Err: err}
	}
	if len(rows) == 0 {
		return nil, false, nil
	}

	obj := copyMap(rows[0])
	for _, child := range root.Children {
		val, err := b.materializeChild(ctx, child, root.Table, rootPK)
		if err != nil {
			return nil, false, err
		}
		if val != nil {
			obj[child.Identity()] = val
		}
	}

	return obj, true, nil
}

func (b *Builder) materializeChild(ctx context.Context, node *schema.Node, parentTable string, parentPK []any) (any, error) {
	fk := node.EffectiveForeignKey(parentTable)
	cols := effectiveColumns(node)

	rows, err := b.Rows.SelectWhere(ctx, node.SchemaName(), node.Table, cols, fk, parentPK, node.PrimaryKey)
	if err != nil {
		return nil, BuildError{Table: node.QualifiedTable(), Reason: "child query failed", Err: err}
	}
	if len(rows) == 0 {
		return nil, nil
	}

	built := make([]any, 0, len(rows))
	for _, row := range rows {
		obj := copyMap(row)

		rowPK, ok := valuesFromRow(row, node.PrimaryKey)
		if ok {
			for _, grandchild := range node.Children {
				val, err := b.materializeChild(ctx, grandchild, node.Table, rowPK)
				if err != nil {
					return nil, err
				}
				if val != nil {
					obj[grandchild.Identity()] = val
				}
			}
		}

		built = append(built, obj)
	}

	if node.IsToOne() {
		return built[0], nil
	}
	return built, nil
}

func effectiveColumns(n *schema.Node) []string {
	if len(n.Columns) > 0 {
		return n.Columns
	}
	return n.PrimaryKey
}

func valuesFromRow(row map[string]any, cols []string) ([]any, bool) {
	vals := make([]any, len(cols))
	for i, c := range cols {
		v, ok := row[c]
		if !ok {
			return nil, false
		}
		vals[i] = v
	}
	return vals, true
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
