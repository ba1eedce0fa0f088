// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/pgmirror/pgmirror/cmd/flags"
	"github.com/pgmirror/pgmirror/internal/config"
	"github.com/pgmirror/pgmirror/pkg/applog"
	pgsync "github.com/pgmirror/pgmirror/pkg/sync"
)

func bootstrapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Validate the source database and perform a full initial load of every configured index",
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

			esClient, err := openElastic()
			if err != nil {
				return err
			}

			log := applog.New()
			txids := &pgsync.PGTxID{DB: sqlDB}

			for _, d := range descriptors {
				sp, _ := pterm.DefaultSpinner.WithText(fmt.Sprintf("bootstrapping %s...", d.Index)).Start()

				coordinator, err := buildCoordinator(ctx, sqlDB, esClient, d, log)
				if err != nil {
					sp.Fail(err.Error())
					return err
				}

				if err := coordinator.Validate(ctx); err != nil {
					sp.Fail(err.Error())
					return err
				}

				txid, err := txids.CurrentTxID(ctx)
				if err != nil {
					sp.Fail(err.Error())
					return err
				}

				if err := coordinator.Bootstrap(ctx, txid); err != nil {
					sp.Fail(err.Error())
					return err
				}

				if err := coordinator.Persist(); err != nil {
					sp.Fail(err.Error())
					return err
				}

				sp.Success(fmt.Sprintf("%s bootstrapped", d.Index))
			}

			return nil
		},
	}
}
