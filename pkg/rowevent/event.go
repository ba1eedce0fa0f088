// SPDX-License-Identifier: Apache-2.0

// Package rowevent defines the row-level change events that flow out of
// the change decoder and into the document builder.
package rowevent

import "github.com/oapi-codegen/nullable"

// Op is the kind of change a row event represents.
type Op string

const (
	OpInsert   Op = "INSERT"
	OpUpdate   Op = "UPDATE"
	OpDelete   Op = "DELETE"
	OpTruncate Op = "TRUNCATE"
)

// Value holds one decoded column value. A column can be absent entirely
// (not present on the wire at all), present and NULL, or present with a
// scalar value; Nullable distinguishes the latter two, Present tracks the
// former.
type Value struct {
	Present bool
	Type    string
	Scalar  nullable.Nullable[any]
}

// IsNull reports whether the column was present on the wire but held SQL
// NULL.
func (v Value) IsNull() bool {
	return v.Present && v.Scalar.IsNull()
}

// Get returns the decoded scalar, or nil if the column is absent or NULL.
func (v Value) Get() any {
	if !v.Present {
		return nil
	}
	val, err := v.Scalar.Get()
	if err != nil {
		return nil
	}
	return val
}

// AbsentValue is the zero value representing a column that was not
// streamed for this event at all (e.g. an unmentioned column).
var AbsentValue = Value{}

// NullValue constructs a Value representing an explicit SQL NULL of the
// given postgres type.
func NullValue(pgType string) Value {
	v := Value{Present: true, Type: pgType}
	v.Scalar.SetNull()
	return v
}

// ScalarValue constructs a Value holding a concrete scalar.
func ScalarValue(pgType string, val any) Value {
	v := Value{Present: true, Type: pgType}
	v.Scalar.SetTo(val)
	return v
}

// Column is a single named, typed, ordered column value. Tuple order
// follows the order columns appeared in the original decoded line; the
// decoder never reorders or sorts them.
type Column struct {
	Name  string
	Value Value
}

// Tuple is an ordered set of column values for one row. Order is
// significant and preserved from the wire.
type Tuple []Column

// Get returns the named column's value and whether it was present in the
// tuple at all.
func (t Tuple) Get(name string) (Value, bool) {
	for _, c := range t {
		if c.Name == name {
			return c.Value, true
		}
	}
	return Value{}, false
}

// Names returns the ordered column names in the tuple.
func (t Tuple) Names() []string {
	names := make([]string, len(t))
	for i, c := range t {
		names[i] = c.Name
	}
	return names
}

// Event is a single decoded row change, scoped to one committed
// transaction.
type Event struct {
	Schema    string
	Table     string
	Operation Op
	Old       Tuple
	New       Tuple
	XID       uint64
}

// QualifiedTable returns "schema.table".
func (e Event) QualifiedTable() string {
	return e.Schema + "." + e.Table
}

// PrimaryKeyTuple returns the tuple that carries the primary key columns
// for this event, per the invariant that for UPDATE/DELETE all primary
// key columns are present in the old tuple; for INSERT they are present
// in the new tuple.
func (e Event) PrimaryKeyTuple() Tuple {
	switch e.Operation {
	case OpDelete:
		return e.Old
	case OpUpdate:
		if len(e.Old) > 0 {
			return e.Old
		}
		return e.New
	default:
		return e.New
	}
}

// ColumnValues resolves each named column to a scalar value, preferring
// the old tuple and falling back to the new tuple. It reports false if
// any named column is present in neither tuple.
func (e Event) ColumnValues(names []string) ([]any, bool) {
	vals := make([]any, len(names))
	for i, name := range names {
		if v, ok := e.Old.Get(name); ok {
			vals[i] = v.Get()
			continue
		}
		if v, ok := e.New.Get(name); ok {
			vals[i] = v.Get()
			continue
		}
		return nil, false
	}
	return vals, true
}
