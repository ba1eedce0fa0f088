// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"database/sql"

	elastic "gopkg.in/olivere/elastic.v5"

	"github.com/pgmirror/pgmirror/cmd/flags"
	"github.com/pgmirror/pgmirror/internal/config"
	"github.com/pgmirror/pgmirror/pkg/applog"
	"github.com/pgmirror/pgmirror/pkg/checkpoint"
	"github.com/pgmirror/pgmirror/pkg/db"
	"github.com/pgmirror/pgmirror/pkg/document"
	"github.com/pgmirror/pgmirror/pkg/index"
	"github.com/pgmirror/pgmirror/pkg/schema"
	"github.com/pgmirror/pgmirror/pkg/slot"
	pgsync "github.com/pgmirror/pgmirror/pkg/sync"
)

// buildCoordinator wires one descriptor's Slot Manager, Document
// Builder, and Bulk Indexer into a Coordinator, backed by the given
// live connections. Primary keys left undeclared in the descriptor are
// resolved against the live catalog before the tree is used.
func buildCoordinator(ctx context.Context, sqlDB *sql.DB, esClient *elastic.Client, d config.Descriptor, log applog.Logger) (*pgsync.Coordinator, error) {
	tree, err := d.Tree()
	if err != nil {
		return nil, err
	}

	rdb := &db.RDB{DB: sqlDB}

	catalog := schema.NewPGCatalog(rdb)
	if err := tree.ResolvePrimaryKeys(ctx, catalog); err != nil {
		return nil, err
	}
	if err := tree.ValidateColumns(ctx, catalog); err != nil {
		return nil, err
	}

	slotMgr := slot.NewManager(rdb, d.Database, d.Index)
	rows := document.NewPGRowSource(rdb)
	builder := document.NewBuilder(tree, d.Index, rows, log)
	sink := index.NewElasticSink(esClient)
	indexer := index.NewIndexer(sink)
	settings := &pgsync.PGSettings{DB: sqlDB}

	check, err := checkpoint.Open(flags.CheckpointDir(), d.Database, d.Index)
	if err != nil {
		return nil, err
	}

	return pgsync.New(d.Database, d.Index, tree, slotMgr, builder, indexer, settings, check, log), nil
}
