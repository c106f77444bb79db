package accord

import (
	"context"
	"errors"

	"github.com/dogmatiq/accord/internal/mlog"
	"github.com/dogmatiq/accord/persistence"
	"github.com/dogmatiq/accord/process"
	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger"
)

// watch periodically reclaims expired leases until ctx is canceled.
func (e *Engine) watch(ctx context.Context) error {
	for {
		if _, err := e.ReclaimLeases(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			logging.Log(e.opts.Logger, "unable to reclaim expired leases: %s", err)
		}

		if err := linger.Sleep(ctx, e.opts.WatchdogInterval); err != nil {
			return err
		}
	}
}

// ReclaimLeases clears leases that have expired, typically because the
// worker holding them crashed. The state and retry count of each process are
// left unchanged.
//
// It returns the number of leases that were cleared.
func (e *Engine) ReclaimLeases(ctx context.Context) (int, error) {
	ds, err := e.dataStore.Get(ctx)
	if err != nil {
		return 0, err
	}

	records, err := ds.LoadExpiredLeases(ctx, e.now(), e.opts.BatchSize)
	if err != nil {
		return 0, err
	}

	n := 0

	for _, r := range records {
		lease := r.Lease
		r.Lease = process.Lease{}

		if _, err := save(ctx, ds, r); err != nil {
			if errors.As(err, &persistence.ConflictError{}) {
				continue
			}

			return n, err
		}

		n++
		mlog.LogReclaimed(e.opts.Logger, r.ID, lease)
	}

	e.opts.Metrics.RecordReclaimed(n)

	return n, nil
}
