// SPDX-License-Identifier: Apache-2.0

package sync

import (
	"fmt"
	"sync/atomic"
)

// counters tracks the running totals the status line reports. Every
// field is updated from whichever worker goroutine touches it, so all
// access goes through atomic operations rather than a mutex.
type counters struct {
	xlog          atomic.Int64
	db            atomic.Int64
	redisTotal    atomic.Int64
	redisPending  atomic.Int64
	elasticIndex  atomic.Int64
	decodeErrors  atomic.Int64
	buildErrors   atomic.Int64
}

// Status snapshots the coordinator's counters for reporting.
type Status struct {
	Xlog          int64
	Db            int64
	RedisTotal    int64
	RedisPending  int64
	ElasticIndex  int64
	DecodeErrors  int64
	BuildErrors   int64
}

func (c *counters) snapshot() Status {
	return Status{
		Xlog:         c.xlog.Load(),
		Db:           c.db.Load(),
		RedisTotal:   c.redisTotal.Load(),
		RedisPending: c.redisPending.Load(),
		ElasticIndex: c.elasticIndex.Load(),
		DecodeErrors: c.decodeErrors.Load(),
		BuildErrors:  c.buildErrors.Load(),
	}
}

// Status returns a single-line status string: "<db_label> <index> Xlog:
// [n_xlog] => Db: [n_db] => Redis: [total = X pending = Y] => Elastic:
// [n_indexed] ..."
func (c *Coordinator) Status(dbLabel string) string {
	s := c.counters.snapshot()
	return fmt.Sprintf(
		"%s %s Xlog: [%d] => Db: [%d] => Redis: [total = %d pending = %d] => Elastic: [%d] ... (decode errors: %d, build errors: %d)",
		dbLabel, c.Index, s.Xlog, s.Db, s.RedisTotal, s.RedisPending, s.ElasticIndex, s.DecodeErrors, s.BuildErrors,
	)
}
