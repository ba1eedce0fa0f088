// SPDX-License-Identifier: Apache-2.0

package sync

import (
	"context"
	"time"
)

// TxIDSource resolves the current transaction id, used to bound the
// replay window for Bootstrap and Pull.
type TxIDSource interface {
	CurrentTxID(ctx context.Context) (uint64, error)
}

// phase names the coordinator's state machine states.
type phase int

const (
	phaseInit phase = iota
	phaseValidate
	phaseBootstrap
	phaseStream
	phaseRecover
	phaseStop
)

// RunOptions configures the long-running Run loop.
type RunOptions struct {
	TxIDs          TxIDSource
	Publish        PublishSource
	PollInterval   time.Duration
	StatusInterval time.Duration
	DBLabel        string
}

// Run drives the coordinator through its full lifecycle: INIT ->
// VALIDATE -> BOOTSTRAP -> STREAM (alternating Pull and OnPublish) ->
// STOP, transitioning to RECOVER on any fatal streaming error and
// resuming from the persisted checkpoint. It returns when ctx is
// cancelled or a non-recoverable error occurs during VALIDATE or
// BOOTSTRAP.
func (c *Coordinator) Run(ctx context.Context, opts RunOptions) error {
	state := phaseInit
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	var lastStatus time.Time

	for {
		select {
		case <-ctx.Done():
			state = phaseStop
		default:
		}

		switch state {
		case phaseInit:
			state = phaseValidate

		case phaseValidate:
			if err := c.Validate(ctx); err != nil {
				return err
			}
			state = phaseBootstrap

		case phaseBootstrap:
			txid, err := opts.TxIDs.CurrentTxID(ctx)
			if err != nil {
				return err
			}
			if err := c.Bootstrap(ctx, txid); err != nil {
				return err
			}
			state = phaseStream

		case phaseStream:
			if err := c.streamOnce(ctx, opts); err != nil {
				c.Log.Warn("stream iteration failed, entering recovery", "reason", err.Error())
				state = phaseRecover
				continue
			}
			if time.Since(lastStatus) >= opts.StatusInterval {
				c.Log.Info(c.Status(opts.DBLabel))
				lastStatus = time.Now()
			}
			if err := sleepCtx(ctx, pollInterval); err != nil {
				state = phaseStop
			}

		case phaseRecover:
			if err := c.reconnect(ctx); err != nil {
				return err
			}
			state = phaseStream

		case phaseStop:
			return c.stop(ctx)
		}
	}
}

func (c *Coordinator) streamOnce(ctx context.Context, opts RunOptions) error {
	txid, err := opts.TxIDs.CurrentTxID(ctx)
	if err != nil {
		return err
	}
	if err := c.Pull(ctx, txid); err != nil {
		return err
	}

	if opts.Publish != nil {
		payloads, err := opts.Publish.Receive(ctx)
		if err != nil {
			return err
		}
		if err := c.OnPublish(ctx, payloads); err != nil {
			return err
		}
	}

	return c.TruncateSlots(ctx)
}

// reconnect resumes streaming from the persisted checkpoint. There is
// nothing beyond the checkpoint itself to reload: the slot is
// server-side state the reader reopens a connection to, and Pull always
// starts from the checkpoint's current value.
func (c *Coordinator) reconnect(ctx context.Context) error {
	return c.Persist()
}

// stop truncates the slot if a Pull completed since the last truncation
// and persists the checkpoint. It does not close any connection; those
// belong to the caller.
func (c *Coordinator) stop(ctx context.Context) error {
	if err := c.TruncateSlots(ctx); err != nil {
		c.Log.Warn("truncate on shutdown failed", "reason", err.Error())
	}
	return c.Persist()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
