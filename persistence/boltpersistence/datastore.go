package boltpersistence

import (
	"context"
	"sync"

	"github.com/dogmatiq/accord/internal/x/bboltx"
	"github.com/dogmatiq/accord/persistence"
	"go.etcd.io/bbolt"
)

// dataStore is a persistence.DataStore that keeps a connector's processes
// in a root bucket named after the connector key.
type dataStore struct {
	db           *bbolt.DB
	connectorKey []byte

	m       sync.RWMutex
	release func(string) error
}

// Persist applies every operation in b within a single BoltDB transaction.
//
// All operations are validated before any is applied. A revision mismatch
// aborts the whole batch with a ConflictError.
func (ds *dataStore) Persist(ctx context.Context, b persistence.Batch) error {
	b.MustValidate()

	return ds.guard(func() {
		bboltx.Update(
			ds.db,
			func(tx *bbolt.Tx) {
				root := bboltx.CreateBucketIfNotExists(tx, ds.connectorKey)
				bboltx.Must(b.AcceptVisitor(ctx, &validator{root}))
				bboltx.Must(b.AcceptVisitor(ctx, &committer{root}))
			},
		)
	})
}

// Close releases the connector key so that it may be opened again.
//
// It waits for in-flight calls to finish. Later calls return
// ErrDataStoreClosed.
func (ds *dataStore) Close() error {
	ds.m.Lock()
	defer ds.m.Unlock()

	if ds.release == nil {
		return persistence.ErrDataStoreClosed
	}

	r := ds.release
	ds.release = nil

	return r(string(ds.connectorKey))
}

// view calls fn with the connector's root bucket in a read-only
// transaction. fn is not called if nothing has been stored yet.
func (ds *dataStore) view(fn func(root *bbolt.Bucket)) error {
	return ds.guard(func() {
		bboltx.View(
			ds.db,
			func(tx *bbolt.Tx) {
				if root := bboltx.Bucket(tx, ds.connectorKey); root != nil {
					fn(root)
				}
			},
		)
	})
}

// guard calls fn while holding a read lock on the data-store, converting
// bboltx panics into errors.
func (ds *dataStore) guard(fn func()) (err error) {
	defer bboltx.Recover(&err)

	ds.m.RLock()
	defer ds.m.RUnlock()

	if ds.release == nil {
		return persistence.ErrDataStoreClosed
	}

	fn()

	return nil
}

// validator is a persistence.OperationVisitor that checks each operation's
// revision without writing anything.
type validator struct {
	root *bbolt.Bucket
}

// committer is a persistence.OperationVisitor that writes operations that
// have already passed the validator.
type committer struct {
	root *bbolt.Bucket
}
