// SPDX-License-Identifier: Apache-2.0

// Package decode parses PostgreSQL logical-decoding "test_decoding"
// output into structured row events, grouped by committed transaction.
package decode

import (
	"strconv"
	"strings"

	"github.com/pgmirror/pgmirror/pkg/rowevent"
)

// Decoder consumes raw logical-decoding lines one at a time and emits row
// events only once the transaction they belong to has committed. An
// unterminated transaction at stream end is held back.
type Decoder struct {
	inTxn   bool
	xid     uint64
	pending []rowevent.Event
}

// New creates an empty Decoder.
func New() *Decoder {
	return &Decoder{}
}

// Feed processes a single raw line of logical-decoding output. It returns
// the row events that became available for emission as a result (i.e.
// the events of a transaction whose COMMIT this line was), and any
// decode errors encountered while parsing this specific line. BEGIN and
// COMMIT markers never themselves produce row events.
func (d *Decoder) Feed(line string) ([]rowevent.Event, []DecodeError) {
	trimmed := strings.TrimRight(line, "\r\n")

	switch {
	case strings.HasPrefix(trimmed, "BEGIN"):
		xid, err := parseXID(trimmed, "BEGIN")
		if err != nil {
			return nil, []DecodeError{{Raw: line, Reason: err.Error()}}
		}
		d.inTxn = true
		d.xid = xid
		d.pending = nil
		return nil, nil

	case strings.HasPrefix(trimmed, "COMMIT"):
		xid, err := parseXID(trimmed, "COMMIT")
		if err != nil {
			return nil, []DecodeError{{Raw: line, Reason: err.Error()}}
		}
		if !d.inTxn {
			return nil, []DecodeError{{Raw: line, Reason: "COMMIT without matching BEGIN"}}
		}
		events := d.pending
		d.pending = nil
		d.inTxn = false
		_ = xid
		return events, nil

	case strings.HasPrefix(trimmed, "table "):
		event, err := d.parseTableLine(trimmed)
		if err != nil {
			if de, ok := err.(DecodeError); ok {
				return nil, []DecodeError{de}
			}
			return nil, []DecodeError{{Raw: line, Reason: err.Error()}}
		}
		if d.inTxn {
			d.pending = append(d.pending, event)
		} else {
			// A table line with no enclosing BEGIN/COMMIT is unusual but
			// harmless to emit immediately; treat its xid as already
			// committed.
			return []rowevent.Event{event}, nil
		}
		return nil, nil

	default:
		return nil, []DecodeError{{Raw: line, Reason: "unrecognized line"}}
	}
}

// HasPending reports whether a transaction is open but not yet committed.
func (d *Decoder) HasPending() bool {
	return d.inTxn
}

// IsControlLine reports whether a raw line is a transaction boundary
// marker (BEGIN/COMMIT) rather than a row change. The sync coordinator
// uses this to detect chunks that carry no applicable events without
// fully parsing them.
func IsControlLine(line string) bool {
	trimmed := strings.TrimRight(line, "\r\n")
	return strings.HasPrefix(trimmed, "BEGIN") || strings.HasPrefix(trimmed, "COMMIT")
}

func parseXID(line, prefix string) (uint64, error) {
	rest := strings.TrimSpace(strings.TrimPrefix(line, prefix))
	rest = strings.TrimPrefix(rest, ":")
	rest = strings.TrimSpace(rest)
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return 0, errMalformedXID(line)
	}
	xid, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return 0, errMalformedXID(line)
	}
	return xid, nil
}

func errMalformedXID(line string) error {
	return DecodeError{Raw: line, Reason: "missing or malformed xid"}
}

// parseTableLine parses a line of the form:
//
//	table <schema>.<table>: <OP>: <col>[<type>]:<value> ...
func (d *Decoder) parseTableLine(line string) (rowevent.Event, error) {
	rest := strings.TrimPrefix(line, "table ")

	qualified, rest, ok := cutOnce(rest, ": ")
	if !ok {
		return rowevent.Event{}, DecodeError{Raw: line, Reason: "missing table qualifier"}
	}

	schema, table, ok := cutOnceByte(qualified, '.')
	if !ok {
		return rowevent.Event{}, DecodeError{Raw: line, Reason: "table name not schema-qualified"}
	}

	opToken, rest, ok := cutOnce(rest, ": ")
	if !ok {
		// Operations with no trailing column list (e.g. TRUNCATE) may
		// have no further ": " separator.
		opToken = strings.TrimSuffix(rest, ":")
		rest = ""
	}

	op, err := parseOp(opToken)
	if err != nil {
		return rowevent.Event{}, DecodeError{Raw: line, Reason: err.Error()}
	}

	event := rowevent.Event{
		Schema:    schema,
		Table:     table,
		Operation: op,
		XID:       d.xid,
	}

	switch op {
	case rowevent.OpTruncate:
		return event, nil
	case rowevent.OpDelete:
		tuple, err := parseColumns(rest)
		if err != nil {
			return rowevent.Event{}, err
		}
		event.Old = tuple
		return event, nil
	case rowevent.OpUpdate:
		oldTuple, newTuple, err := parseUpdateColumns(rest)
		if err != nil {
			return rowevent.Event{}, err
		}
		event.Old = oldTuple
		event.New = newTuple
		return event, nil
	default: // INSERT
		tuple, err := parseColumns(rest)
		if err != nil {
			return rowevent.Event{}, err
		}
		event.New = tuple
		return event, nil
	}
}

// parseUpdateColumns splits the column portion of an UPDATE line, which
// is either a plain new-tuple column list (REPLICA IDENTITY DEFAULT, key
// unchanged) or an "old-key: ... new-tuple: ..." pair (key changed, or
// REPLICA IDENTITY FULL).
func parseUpdateColumns(rest string) (old, new rowevent.Tuple, err error) {
	if strings.HasPrefix(rest, "old-key:") {
		rest = strings.TrimPrefix(rest, "old-key:")
		rest = strings.TrimSpace(rest)

		oldPart, newPart, ok := cutOnce(rest, "new-tuple:")
		if !ok {
			return nil, nil, DecodeError{Raw: rest, Reason: "UPDATE missing new-tuple section"}
		}

		old, err = parseColumns(strings.TrimSpace(oldPart))
		if err != nil {
			return nil, nil, err
		}
		new, err = parseColumns(strings.TrimSpace(newPart))
		if err != nil {
			return nil, nil, err
		}
		return old, new, nil
	}

	new, err = parseColumns(rest)
	if err != nil {
		return nil, nil, err
	}
	return nil, new, nil
}

func parseOp(token string) (rowevent.Op, error) {
	switch strings.TrimSpace(token) {
	case "INSERT":
		return rowevent.OpInsert, nil
	case "UPDATE":
		return rowevent.OpUpdate, nil
	case "DELETE":
		return rowevent.OpDelete, nil
	case "TRUNCATE":
		return rowevent.OpTruncate, nil
	default:
		return "", DecodeError{Raw: token, Reason: "unknown operation token"}
	}
}

// cutOnce splits s on the first occurrence of sep, like strings.Cut but
// named to read clearly against parseTableLine's two-part splits.
func cutOnce(s, sep string) (before, after string, found bool) {
	return strings.Cut(s, sep)
}

func cutOnceByte(s string, sep byte) (before, after string, found bool) {
	idx := strings.IndexByte(s, sep)
	if idx < 0 {
		return s, "", false
	}
	return s[:idx], s[idx+1:], true
}
