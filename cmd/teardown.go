// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/pgmirror/pgmirror/cmd/flags"
	"github.com/pgmirror/pgmirror/internal/config"
	"github.com/pgmirror/pgmirror/pkg/checkpoint"
	"github.com/pgmirror/pgmirror/pkg/db"
	"github.com/pgmirror/pgmirror/pkg/slot"
	pgsync "github.com/pgmirror/pgmirror/pkg/sync"
)

func teardownCmd() *cobra.Command {
	var dropDB bool

	teardownCmd := &cobra.Command{
		Use:   "teardown",
		Short: "Drop the replication slots (and optionally checkpoints) backing the configured indices",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			descriptors, err := config.Load(flags.ConfigPath())
			if err != nil {
				return pgsync.ConfigError{Reason: err.Error()}
			}

			sqlDB, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer sqlDB.Close()

			rdb := &db.RDB{DB: sqlDB}

			for _, d := range descriptors {
				sp, _ := pterm.DefaultSpinner.WithText(fmt.Sprintf("tearing down %s...", d.Index)).Start()

				slotMgr := slot.NewManager(rdb, d.Database, d.Index)
				if err := slotMgr.Drop(ctx); err != nil {
					sp.Fail(err.Error())
					return err
				}

				if dropDB {
					path := checkpoint.FileName(flags.CheckpointDir(), d.Database, d.Index)
					if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
						sp.Fail(err.Error())
						return err
					}
				}

				sp.Success(fmt.Sprintf("%s torn down", d.Index))
			}

			return nil
		},
	}

	teardownCmd.Flags().BoolVar(&dropDB, "drop-db", false, "Also remove the persisted checkpoint file")

	return teardownCmd
}
