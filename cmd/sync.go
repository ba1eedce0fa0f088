// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pgmirror/pgmirror/cmd/flags"
	"github.com/pgmirror/pgmirror/internal/config"
	"github.com/pgmirror/pgmirror/pkg/applog"
	pgsync "github.com/pgmirror/pgmirror/pkg/sync"
)

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Continuously stream changes from the source database into the configured indices",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

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

			pollInterval, err := time.ParseDuration(flags.PollInterval())
			if err != nil {
				return pgsync.ConfigError{Reason: "poll-interval is not a valid duration: " + err.Error()}
			}

			log := applog.New()

			var wg sync.WaitGroup
			errs := make(chan error, len(descriptors))

			for _, d := range descriptors {
				coordinator, err := buildCoordinator(ctx, sqlDB, esClient, d, log)
				if err != nil {
					return err
				}

				wg.Add(1)
				go func(c *pgsync.Coordinator, dbLabel string) {
					defer wg.Done()
					errs <- c.Run(ctx, pgsync.RunOptions{
						TxIDs:        &pgsync.PGTxID{DB: sqlDB},
						PollInterval: pollInterval,
						DBLabel:      dbLabel,
					})
				}(coordinator, d.Database)
			}

			wg.Wait()
			close(errs)

			for err := range errs {
				if err != nil && ctx.Err() == nil {
					return err
				}
			}
			return nil
		},
	}
}
