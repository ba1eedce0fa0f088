// SPDX-License-Identifier: Apache-2.0

package document

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"
	"text/template"

	"github.com/lib/pq"
)

// RowSource resolves rows for one table, filtered by an equality
// condition over one or more columns (a primary key lookup, or a
// foreign key lookup against a parent's key). Production code
// implements it against Postgres; tests implement it directly against
// in-memory fixtures, the same way pkg/index substitutes a fake sink
// for a live cluster.
type RowSource interface {
	SelectWhere(ctx context.Context, schemaName, table string, columns, whereColumns []string, whereValues []any, orderBy []string) ([]map[string]any, error)
}

// PGRowSource queries rows directly against Postgres.
type PGRowSource struct {
	DB interface {
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	}
}

// NewPGRowSource wraps a query-capable handle.
func NewPGRowSource(db interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}) *PGRowSource {
	return &PGRowSource{DB: db}
}

type selectConfig struct {
	Schema       string
	Table        string
	Columns      []string
	WhereColumns []string
	OrderBy      []string
}

const selectTemplate = `SELECT {{quoteIdentifiers .Columns | commaSeparate}}
FROM {{qi .Schema}}.{{qi .Table}}
{{- if .WhereColumns}}
WHERE {{whereClause .WhereColumns}}
{{- end}}
{{- if .OrderBy}}
ORDER BY {{quoteIdentifiers .OrderBy | commaSeparate}}
{{- end}}`

func buildSelect(cfg selectConfig) (string, error) {
	qi := pq.QuoteIdentifier

	tmpl := template.Must(template.New("select_rows").
		Funcs(template.FuncMap{
			"qi": qi,
			"commaSeparate": func(slice []string) string {
				return strings.Join(slice, ", ")
			},
			"quoteIdentifiers": func(slice []string) []string {
				quoted := make([]string, len(slice))
				for i, s := range slice {
					quoted[i] = qi(s)
				}
				return quoted
			},
			"whereClause": func(cols []string) string {
				parts := make([]string, len(cols))
				for i, c := range cols {
					parts[i] = fmt.Sprintf("%s = $%d", qi(c), i+1)
				}
				return strings.Join(parts, " AND ")
			},
		}).
		Parse(selectTemplate))

	buf := bytes.Buffer{}
	if err := tmpl.Execute(&buf, cfg); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SelectWhere implements RowSource against a live Postgres connection.
func (s *PGRowSource) SelectWhere(ctx context.Context, schemaName, table string, columns, whereColumns []string, whereValues []any, orderBy []string) ([]map[string]any, error) {
	query, err := buildSelect(selectConfig{
		Schema:       schemaName,
		Table:        table,
		Columns:      columns,
		WhereColumns: whereColumns,
		OrderBy:      orderBy,
	})
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, query, whereValues...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRows(rows, columns)
}

func scanRows(rows *sql.Rows, columns []string) ([]map[string]any, error) {
	var results []map[string]any
	for rows.Next() {
		dest := make([]any, len(columns))
		for i := range dest {
			dest[i] = new(any)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		obj := make(map[string]any, len(columns))
		for i, col := range columns {
			v := *(dest[i].(*any))
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			obj[col] = v
		}
		results = append(results, obj)
	}
	return results, rows.Err()
}
