// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"context"
	"database/sql"
)

// querier is the minimal subset of *sql.DB / db.RDB the catalog needs.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// PGCatalog resolves primary key columns and column types directly
// against the live database's pg_catalog, as plain queries run by the
// sync engine itself, since it owns no schema of its own in the source
// database to host a stored introspection function in.
type PGCatalog struct {
	DB querier
}

// NewPGCatalog wraps a query-capable handle (typically a *db.RDB) in a
// PGCatalog.
func NewPGCatalog(db querier) *PGCatalog {
	return &PGCatalog{DB: db}
}

const primaryKeyColumnsQuery = `
SELECT pg_attribute.attname
FROM pg_index, pg_attribute, pg_class, pg_namespace
WHERE
	pg_class.relname = $2
	AND pg_namespace.nspname = $1
	AND pg_class.relnamespace = pg_namespace.oid
	AND pg_index.indrelid = pg_class.oid
	AND pg_attribute.attrelid = pg_class.oid
	AND pg_attribute.attnum = ANY(pg_index.indkey)
	AND pg_index.indisprimary
ORDER BY array_position(pg_index.indkey, pg_attribute.attnum)
`

// PrimaryKeyColumns returns the primary key column names of
// schemaName.table, in key order. It returns an empty slice, not an
// error, if the table has no primary key.
func (c *PGCatalog) PrimaryKeyColumns(ctx context.Context, schemaName, table string) ([]string, error) {
	rows, err := c.DB.QueryContext(ctx, primaryKeyColumnsQuery, schemaName, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}

const columnTypesQuery = `
SELECT attr.attname, tp.typname
FROM pg_attribute AS attr
INNER JOIN pg_class AS cls ON cls.oid = attr.attrelid
INNER JOIN pg_namespace AS ns ON ns.oid = cls.relnamespace
INNER JOIN pg_type AS tp ON attr.atttypid = tp.oid
WHERE
	ns.nspname = $1
	AND cls.relname = $2
	AND attr.attnum > 0
	AND NOT attr.attisdropped
`

// LoadTable introspects schemaName.table's columns and primary key into
// a *Table.
func (c *PGCatalog) LoadTable(ctx context.Context, schemaName, table string) (*Table, error) {
	t := &Table{Schema: schemaName, Name: table, Columns: make(map[string]*Column)}

	rows, err := c.DB.QueryContext(ctx, columnTypesQuery, schemaName, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, err
		}
		t.AddColumn(&Column{Name: name, Type: typ, PostgresType: typ})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pk, err := c.PrimaryKeyColumns(ctx, schemaName, table)
	if err != nil {
		return nil, err
	}
	t.PrimaryKey = pk

	return t, nil
}
