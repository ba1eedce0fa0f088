// SPDX-License-Identifier: Apache-2.0

// Package slot manages a single PostgreSQL logical replication slot: its
// creation, its non-destructive and destructive reads, and its eventual
// teardown.
package slot

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"
)

// duplicateObjectErrorCode is raised by Postgres when a second
// concurrent CREATE races the first; it is tolerated rather than
// treated as a failure.
const duplicateObjectErrorCode pq.ErrorCode = "42710"

// queryer is the subset of db.DB the slot manager issues queries
// through; it is satisfied by *db.RDB so slot operations retry on
// lock_timeout exactly like DDL does.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Change is one row of raw output from a logical-decoding slot: its WAL
// position, the text payload (in the test_decoding plugin's format),
// and the transaction id that produced it.
type Change struct {
	LSN  string
	XID  uint64
	Data string
}

// Name returns the deterministic slot name for a (database, index) pair.
func Name(database, index string) string {
	return sanitize(database) + "_" + sanitize(index)
}

func sanitize(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "-", "_"))
}

// Manager owns one named replication slot.
type Manager struct {
	DB   queryer
	Name string
}

// NewManager constructs a Manager for the slot named after database and
// index.
func NewManager(d queryer, database, index string) *Manager {
	return &Manager{DB: d, Name: Name(database, index)}
}

// Exists reports whether the slot is already present on the server.
func (m *Manager) Exists(ctx context.Context) (bool, error) {
	rows, err := m.DB.QueryContext(ctx, `SELECT 1 FROM pg_replication_slots WHERE slot_name = $1`, m.Name)
	if err != nil {
		return false, ReplicationError{Slot: m.Name, Op: "exists", Err: err}
	}
	defer rows.Close()
	return rows.Next(), rows.Err()
}

// Create creates the slot using the test_decoding output plugin. A
// concurrent racing creation is tolerated, not an error.
func (m *Manager) Create(ctx context.Context) error {
	_, err := m.DB.ExecContext(ctx, `SELECT pg_create_logical_replication_slot($1, 'test_decoding')`, m.Name)
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == duplicateObjectErrorCode {
		return nil
	}
	if strings.Contains(err.Error(), "already exists") {
		return nil
	}
	return ReplicationError{Slot: m.Name, Op: "create", Err: err}
}

// Drop removes the slot. Missing slots are tolerated as a no-op.
func (m *Manager) Drop(ctx context.Context) error {
	_, err := m.DB.ExecContext(ctx, `SELECT pg_drop_replication_slot($1)`, m.Name)
	if err != nil {
		if strings.Contains(err.Error(), "does not exist") {
			return nil
		}
		return ReplicationError{Slot: m.Name, Op: "drop", Err: err}
	}
	return nil
}

// Peek performs a non-destructive read of pending changes, without
// advancing the confirmed position. limit/offset paginate within the
// rows the server returns for a single session; txmin/txmax, if
// non-nil, filter the result to xids within [txmin, txmax].
func (m *Manager) Peek(ctx context.Context, txmin, txmax *uint64, limit, offset int) ([]Change, error) {
	rows, err := m.DB.QueryContext(ctx,
		`SELECT lsn, xid, data FROM pg_logical_slot_peek_changes($1, NULL, $2)`,
		m.Name, limit+offset)
	if err != nil {
		return nil, ReplicationError{Slot: m.Name, Op: "peek", Err: err}
	}
	defer rows.Close()

	changes, err := scanChanges(rows, txmin, txmax)
	if err != nil {
		return nil, ReplicationError{Slot: m.Name, Op: "peek", Err: err}
	}
	if offset >= len(changes) {
		return nil, nil
	}
	end := offset + limit
	if end > len(changes) || limit <= 0 {
		end = len(changes)
	}
	return changes[offset:end], nil
}

// Get performs a destructive read, advancing the slot's confirmed
// position past every row it returns. uptoNChanges, if non-nil, bounds
// how many changes the server returns in one call; nil drains
// everything available.
func (m *Manager) Get(ctx context.Context, txmin, txmax *uint64, uptoNChanges *int) ([]Change, error) {
	rows, err := m.DB.QueryContext(ctx,
		`SELECT lsn, xid, data FROM pg_logical_slot_get_changes($1, NULL, $2)`,
		m.Name, uptoNChanges)
	if err != nil {
		return nil, ReplicationError{Slot: m.Name, Op: "get", Err: err}
	}
	defer rows.Close()

	changes, err := scanChanges(rows, txmin, txmax)
	if err != nil {
		return nil, ReplicationError{Slot: m.Name, Op: "get", Err: err}
	}
	return changes, nil
}

// Truncate drains and discards every pending change on the slot.
func (m *Manager) Truncate(ctx context.Context) error {
	_, err := m.Get(ctx, nil, nil, nil)
	return err
}

func scanChanges(rows *sql.Rows, txmin, txmax *uint64) ([]Change, error) {
	var changes []Change
	for rows.Next() {
		var c Change
		if err := rows.Scan(&c.LSN, &c.XID, &c.Data); err != nil {
			return nil, err
		}
		if txmin != nil && c.XID < *txmin {
			continue
		}
		if txmax != nil && c.XID > *txmax {
			continue
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// HasRowEvents reports whether a batch of changes contains anything
// beyond transaction-control lines (BEGIN/COMMIT), i.e. whether feeding
// it through the decoder would yield applicable row events.
func HasRowEvents(changes []Change) bool {
	for _, c := range changes {
		if !isControlData(c.Data) {
			return true
		}
	}
	return false
}

func isControlData(data string) bool {
	trimmed := strings.TrimSpace(data)
	return strings.HasPrefix(trimmed, "BEGIN") || strings.HasPrefix(trimmed, "COMMIT")
}
