// SPDX-License-Identifier: Apache-2.0

// Package sync orchestrates the replication-driven pipeline: bootstrap,
// streaming pull, publish handling, checkpointing, and status
// reporting. It is the component that wires the Slot Manager, Change
// Decoder, Document Builder, Transform Pipeline, and Bulk Indexer
// together into one coherent process.
package sync

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/pgmirror/pgmirror/pkg/applog"
	"github.com/pgmirror/pgmirror/pkg/checkpoint"
	"github.com/pgmirror/pgmirror/pkg/decode"
	"github.com/pgmirror/pgmirror/pkg/document"
	"github.com/pgmirror/pgmirror/pkg/index"
	"github.com/pgmirror/pgmirror/pkg/rowevent"
	"github.com/pgmirror/pgmirror/pkg/schema"
	"github.com/pgmirror/pgmirror/pkg/slot"
	"github.com/pgmirror/pgmirror/pkg/transform"
)

// settingsQuerier reads a single server setting by name (as from `SHOW
// <name>`). Production code implements it against a live Postgres
// connection; tests implement it directly against fixed values.
type settingsQuerier interface {
	Setting(ctx context.Context, name string) (string, error)
}

// errUnrecognizedSetting is returned by a settingsQuerier when the
// named setting does not exist on the server (e.g.
// rds.logical_replication on a non-managed instance).
var errUnrecognizedSetting = errors.New("unrecognized configuration parameter")

// slotClient is the subset of *slot.Manager the coordinator drives.
// Production code wires a real *slot.Manager in; tests substitute a
// fake that scripts a sequence of peek/get responses.
type slotClient interface {
	Peek(ctx context.Context, txmin, txmax *uint64, limit, offset int) ([]slot.Change, error)
	Get(ctx context.Context, txmin, txmax *uint64, uptoNChanges *int) ([]slot.Change, error)
	Truncate(ctx context.Context) error
}

// Coordinator orchestrates one sync descriptor's worth of work: one
// schema tree materializing into one index, driven by one replication
// slot.
type Coordinator struct {
	Database string
	Index    string

	Tree     *schema.Tree
	Slot     slotClient
	Builder  *document.Builder
	Indexer  *index.Indexer
	Settings settingsQuerier
	Check    *checkpoint.Store
	Log      applog.Logger

	ChunkSize int

	renameTree *transform.RenameNode
	concatTree *transform.ConcatNode
	counters   counters
	truncate   bool
}

// DefaultChunkSize is how many slot rows logicalSlotChanges peeks per
// iteration when the caller does not override it.
const DefaultChunkSize = 1000

// New constructs a Coordinator. log may be nil, in which case all
// logging is discarded.
func New(database, indexName string, tree *schema.Tree, slotMgr slotClient, builder *document.Builder, indexer *index.Indexer, settings settingsQuerier, check *checkpoint.Store, log applog.Logger) *Coordinator {
	if log == nil {
		log = applog.NewNoop()
	}
	return &Coordinator{
		Database:   database,
		Index:      indexName,
		Tree:       tree,
		Slot:       slotMgr,
		Builder:    builder,
		Indexer:    indexer,
		Settings:   settings,
		Check:      check,
		Log:        log,
		ChunkSize:  DefaultChunkSize,
		renameTree: tree.RenameTree(),
		concatTree: tree.ConcatTree(),
	}
}

// Validate checks that the live server can support logical replication
// and that the schema tree is well-formed. A malformed tree returns the
// schema package's error, an unusable max_replication_slots or wal_level
// returns ConfigError, and a managed-instance setting returns RDSError,
// so the caller can decide how to report it.
func (c *Coordinator) Validate(ctx context.Context) error {
	if err := c.Tree.Validate(); err != nil {
		return err
	}

	rawMaxSlots, err := c.Settings.Setting(ctx, "max_replication_slots")
	if err != nil {
		return ConfigError{Reason: "unable to read max_replication_slots: " + err.Error()}
	}
	maxSlots, err := strconv.Atoi(strings.TrimSpace(rawMaxSlots))
	if err != nil {
		return ConfigError{Reason: "max_replication_slots is not numeric: " + rawMaxSlots}
	}
	if maxSlots < 1 {
		return ConfigError{Reason: "max_replication_slots=1 or greater is required"}
	}

	walLevel, err := c.Settings.Setting(ctx, "wal_level")
	if err != nil {
		return ConfigError{Reason: "unable to read wal_level: " + err.Error()}
	}
	if walLevel != "logical" {
		return ConfigError{Reason: "wal_level=logical is required, got " + walLevel}
	}

	rdsLogical, err := c.Settings.Setting(ctx, "rds.logical_replication")
	switch {
	case err == nil && strings.ToLower(rdsLogical) != "on":
		return RDSError{Reason: "rds.logical_replication=on is required on managed instances"}
	case err != nil && !errors.Is(err, errUnrecognizedSetting):
		return RDSError{Reason: "unable to read rds.logical_replication: " + err.Error()}
	}

	return nil
}

// Bootstrap performs a full query and bulk index of every root
// document, setting the checkpoint to the current txid at the start of
// the scan.
func (c *Coordinator) Bootstrap(ctx context.Context, currentTxID uint64) error {
	c.Check.Advance(currentTxID)

	docs, err := c.Builder.BuildAll(ctx)
	if err != nil {
		return err
	}

	items := make([]index.Item, 0, len(docs))
	for _, doc := range docs {
		items = append(items, c.toItem(c.applyTransforms(doc)))
	}

	if _, err := withIndexRetry(ctx, func() ([]index.Result, error) {
		return c.Indexer.Bulk(ctx, items)
	}); err != nil {
		return err
	}
	c.counters.db.Add(int64(len(items)))
	c.counters.elasticIndex.Add(int64(len(items)))
	return nil
}

// Pull performs one catch-up pass: stream changes in [last_checkpoint,
// current_txid-1], apply them, and advance the checkpoint to the
// window's upper bound. After a successful pass the slot may be
// truncated on the next cycle.
func (c *Coordinator) Pull(ctx context.Context, currentTxID uint64) error {
	txmin := c.Check.Get()
	if currentTxID == 0 {
		return nil
	}
	txmax := currentTxID - 1
	if txmax < txmin {
		return nil
	}

	if err := c.logicalSlotChanges(ctx, &txmin, &txmax); err != nil {
		return err
	}

	c.Check.Advance(txmax)
	c.truncate = true
	return nil
}

// logicalSlotChanges repeatedly peeks ChunkSize rows from the slot. A
// chunk containing only transaction-control rows is skipped without
// ever calling Get -- the slot's confirmed position does not move and
// no document is built. A chunk carrying row events is applied, then a
// matching Get advances the slot past exactly what was applied. An
// empty peek ends the loop.
func (c *Coordinator) logicalSlotChanges(ctx context.Context, txmin, txmax *uint64) error {
	for {
		changes, err := withReplicationRetry(ctx, func() ([]slot.Change, error) {
			return c.Slot.Peek(ctx, txmin, txmax, c.chunkSize(), 0)
		})
		if err != nil {
			return err
		}
		if len(changes) == 0 {
			return nil
		}

		if !slot.HasRowEvents(changes) {
			continue
		}

		if err := c.applyRawChanges(ctx, changes); err != nil {
			return err
		}

		n := len(changes)
		if _, err := withReplicationRetry(ctx, func() ([]slot.Change, error) {
			return c.Slot.Get(ctx, txmin, txmax, &n)
		}); err != nil {
			return err
		}
	}
}

func (c *Coordinator) chunkSize() int {
	if c.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return c.ChunkSize
}

// applyRawChanges decodes a batch of raw slot changes into row events
// and applies them.
func (c *Coordinator) applyRawChanges(ctx context.Context, changes []slot.Change) error {
	d := decode.New()
	var events []rowevent.Event

	for _, change := range changes {
		newEvents, decodeErrs := d.Feed(change.Data)
		for _, de := range decodeErrs {
			c.counters.decodeErrors.Add(1)
			c.Log.Warn("decode error, skipping line", "reason", de.Reason)
		}
		events = append(events, newEvents...)
	}

	c.counters.xlog.Add(int64(len(changes)))
	return c.applyEvents(ctx, events)
}

// OnPublish accepts externally-delivered payloads from the publish
// path (bypassing the Slot Manager and Change Decoder), advances the
// checkpoint to min(xmin)-1 of the batch, and dispatches the decoded
// events to the Document Builder and Bulk Indexer. The checkpoint never
// moves backward: if it already stands above min(xmin)-1, it is left
// where it is.
func (c *Coordinator) OnPublish(ctx context.Context, payloads []Payload) error {
	if len(payloads) == 0 {
		return nil
	}

	c.counters.redisTotal.Add(int64(len(payloads)))
	c.counters.redisPending.Add(int64(len(payloads)))
	defer c.counters.redisPending.Add(-int64(len(payloads)))

	minXmin := payloads[0].Xmin
	for _, p := range payloads[1:] {
		if p.Xmin < minXmin {
			minXmin = p.Xmin
		}
	}
	if minXmin > 0 {
		c.Check.Advance(minXmin - 1)
	}

	events := make([]rowevent.Event, 0, len(payloads))
	for _, p := range payloads {
		events = append(events, p.toEvent())
	}

	return c.applyEvents(ctx, events)
}

// applyEvents runs each event through the Document Builder and
// Transform Pipeline, batching the results into one bulk call
// preserving input order.
func (c *Coordinator) applyEvents(ctx context.Context, events []rowevent.Event) error {
	var items []index.Item

	for _, event := range events {
		docs, err := c.Builder.Build(ctx, event)
		if err != nil {
			var buildErr document.BuildError
			if errors.As(err, &buildErr) {
				c.counters.buildErrors.Add(1)
				c.Log.Warn("build error, skipping event", "table", event.QualifiedTable(), "reason", buildErr.Reason)
				continue
			}
			return err
		}

		for _, doc := range docs {
			items = append(items, c.toItem(c.applyTransforms(doc)))
		}
	}

	if len(items) == 0 {
		return nil
	}

	results, err := withIndexRetry(ctx, func() ([]index.Result, error) {
		return c.Indexer.Bulk(ctx, items)
	})
	if err != nil {
		return err
	}

	c.counters.db.Add(int64(len(events)))
	for _, r := range results {
		if r.Err != nil {
			c.Log.Warn("index error", "id", r.ID, "reason", r.Err.Error())
			continue
		}
		c.counters.elasticIndex.Add(1)
	}

	return nil
}

func (c *Coordinator) applyTransforms(doc document.Document) document.Document {
	if doc.Deleted || doc.Source == nil {
		return doc
	}
	renamed := transform.Rename(doc.Source, c.renameTree)
	doc.Source = transform.Concat(renamed, c.concatTree)
	return doc
}

func (c *Coordinator) toItem(doc document.Document) index.Item {
	if doc.Deleted {
		return index.Item{Index: doc.Index, ID: doc.ID, Action: index.ActionDelete}
	}
	return index.Item{Index: doc.Index, ID: doc.ID, Action: index.ActionIndex, Source: doc.Source}
}

// TruncateSlots drains and discards the replication slot if a prior
// Pull completed successfully, then clears the flag.
func (c *Coordinator) TruncateSlots(ctx context.Context) error {
	if !c.truncate {
		return nil
	}
	if _, err := withReplicationRetry(ctx, func() (struct{}, error) {
		return struct{}{}, c.Slot.Truncate(ctx)
	}); err != nil {
		return err
	}
	c.truncate = false
	return nil
}

// Persist flushes the current checkpoint to durable storage.
func (c *Coordinator) Persist() error {
	return c.Check.Persist()
}
