// SPDX-License-Identifier: Apache-2.0

package sync

import (
	"context"
	"database/sql"
	"strconv"
)

// PGTxID resolves the current transaction id directly from Postgres.
type PGTxID struct {
	DB interface {
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	}
}

// CurrentTxID implements TxIDSource against a live connection.
func (t *PGTxID) CurrentTxID(ctx context.Context) (uint64, error) {
	rows, err := t.DB.QueryContext(ctx, `SELECT txid_current()::text`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var raw string
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if !rows.Next() {
		return 0, FatalError{Reason: "txid_current() returned no rows"}
	}
	if err := rows.Scan(&raw); err != nil {
		return 0, err
	}

	txid, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, FatalError{Reason: "txid_current() returned a non-numeric value: " + raw, Err: err}
	}
	return txid, nil
}
