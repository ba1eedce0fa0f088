// SPDX-License-Identifier: Apache-2.0

package sync

import (
	"context"

	"github.com/pgmirror/pgmirror/pkg/rowevent"
)

// Payload is an already-decoded change delivered out-of-band from an
// external queue, bypassing the Slot Manager and Change Decoder
// entirely. Old/New carry plain column values (the publisher is
// expected to have already resolved SQL types on its side).
type Payload struct {
	Schema string
	Table  string
	TgOp   string
	Old    map[string]any
	New    map[string]any
	Xmin   uint64
}

// PublishSource is the narrow interface Run's stream loop drains once
// per pass (via RunOptions.Publish); it stands in for the out-of-scope
// external queue.
type PublishSource interface {
	Receive(ctx context.Context) ([]Payload, error)
}

func (p Payload) toEvent() rowevent.Event {
	return rowevent.Event{
		Schema:    p.Schema,
		Table:     p.Table,
		Operation: rowevent.Op(p.TgOp),
		Old:       tupleFromMap(p.Old),
		New:       tupleFromMap(p.New),
		XID:       p.Xmin,
	}
}

func tupleFromMap(m map[string]any) rowevent.Tuple {
	if m == nil {
		return nil
	}
	tuple := make(rowevent.Tuple, 0, len(m))
	for name, val := range m {
		if val == nil {
			tuple = append(tuple, rowevent.Column{Name: name, Value: rowevent.NullValue("")})
			continue
		}
		tuple = append(tuple, rowevent.Column{Name: name, Value: rowevent.ScalarValue("", val)})
	}
	return tuple
}
