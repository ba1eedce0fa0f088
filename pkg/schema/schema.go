// SPDX-License-Identifier: Apache-2.0

// Package schema models the live PostgreSQL tables the sync engine reads
// from (Table, Column) and the declarative document tree a configuration
// file describes (Tree, Node, in tree.go).
package schema

import "fmt"

// Table describes one catalog table, as much as the document builder and
// schema tree loader need to validate configuration against it.
type Table struct {
	Schema     string
	Name       string
	Columns    map[string]*Column
	PrimaryKey []string
}

// Column describes one catalog column.
type Column struct {
	Name         string
	Type         string
	PostgresType string
}

// QualifiedName returns "schema.table".
func (t *Table) QualifiedName() string {
	return t.Schema + "." + t.Name
}

// GetColumn returns a column by name, or nil.
func (t *Table) GetColumn(name string) *Column {
	if t.Columns == nil {
		return nil
	}
	return t.Columns[name]
}

// AddColumn registers a column on the table.
func (t *Table) AddColumn(c *Column) {
	if t.Columns == nil {
		t.Columns = make(map[string]*Column)
	}
	t.Columns[c.Name] = c
}

// RequireColumn returns a column or a SchemaError if it does not exist.
func (t *Table) RequireColumn(name string) (*Column, error) {
	c := t.GetColumn(name)
	if c == nil {
		return nil, SchemaError{Table: t.QualifiedName(), Column: name, Reason: "column does not exist"}
	}
	return c, nil
}

// String implements fmt.Stringer for debug logging.
func (t *Table) String() string {
	return fmt.Sprintf("%s(columns=%d)", t.QualifiedName(), len(t.Columns))
}
