package bboltx

import (
	"context"
	"os"

	"github.com/dogmatiq/linger"
	"go.etcd.io/bbolt"
)

// Open opens the database at path, creating it with the given mode if it
// does not exist. A zero mode means 0600.
//
// BoltDB waits for an exclusive file lock. The wait is bounded by the
// earlier of opts.Timeout and the deadline of ctx. A timeout is reported as
// context.DeadlineExceeded.
func Open(
	ctx context.Context,
	path string,
	mode os.FileMode,
	opts *bbolt.Options,
) (*bbolt.DB, error) {
	if err := ctx.Err(); err != nil {
		// A non-positive timeout would make BoltDB wait forever.
		return nil, err
	}

	if mode == 0 {
		mode = 0600
	}

	db, err := bbolt.Open(path, mode, withDeadline(ctx, opts))
	if err == bbolt.ErrTimeout {
		return nil, context.DeadlineExceeded
	}

	return db, err
}

// withDeadline returns a copy of opts with its timeout shortened to the
// deadline of ctx.
func withDeadline(ctx context.Context, opts *bbolt.Options) *bbolt.Options {
	timeout, ok := linger.FromContextDeadline(ctx)
	if !ok {
		return opts
	}

	if opts == nil {
		opts = bbolt.DefaultOptions
	}

	if opts.Timeout != 0 && opts.Timeout <= timeout {
		return opts
	}

	clone := *opts
	clone.Timeout = timeout
	return &clone
}

// View calls fn within a read-only transaction.
//
// A PanicSentinel panic raised by fn reaches the caller unchanged.
func View(db *bbolt.DB, fn func(tx *bbolt.Tx)) {
	Must(db.View(func(tx *bbolt.Tx) error {
		fn(tx)
		return nil
	}))
}

// Update calls fn within a read-write transaction, which is committed if fn
// returns normally and rolled back if it panics.
func Update(db *bbolt.DB, fn func(tx *bbolt.Tx)) {
	Must(db.Update(func(tx *bbolt.Tx) error {
		fn(tx)
		return nil
	}))
}
