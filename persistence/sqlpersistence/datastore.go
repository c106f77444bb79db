package sqlpersistence

import (
	"context"
	"database/sql"
	"sync"

	"github.com/dogmatiq/accord/persistence"
)

// dataStore is a persistence.DataStore backed by a SQL database.
//
// Any number of engines may open the same connector key. They share its
// processes and coordinate through revisions and leases.
type dataStore struct {
	db           *sql.DB
	driver       Driver
	connectorKey string

	m       sync.RWMutex
	release func() error
}

// Persist applies every operation in b within a single transaction.
//
// A revision mismatch on any operation rolls back the transaction and
// returns a ConflictError.
func (ds *dataStore) Persist(ctx context.Context, b persistence.Batch) error {
	b.MustValidate()

	return ds.withDB(func(db *sql.DB) error {
		tx, err := ds.driver.Begin(ctx, db)
		if err != nil {
			return err
		}
		defer tx.Rollback() // nolint:errcheck

		if err := b.AcceptVisitor(ctx, &committer{ds.driver, tx, ds.connectorKey}); err != nil {
			return err
		}

		return tx.Commit()
	})
}

// Close releases the data-store's reference to the database pool.
//
// It waits for in-flight calls to finish. Later calls return
// ErrDataStoreClosed.
func (ds *dataStore) Close() error {
	ds.m.Lock()
	defer ds.m.Unlock()

	r := ds.release
	if r == nil {
		return persistence.ErrDataStoreClosed
	}
	ds.release = nil

	return r()
}

// withDB calls fn while holding a read lock, provided the data-store is
// open.
func (ds *dataStore) withDB(fn func(db *sql.DB) error) error {
	ds.m.RLock()
	defer ds.m.RUnlock()

	if ds.release == nil {
		return persistence.ErrDataStoreClosed
	}

	return fn(ds.db)
}

// committer is a persistence.OperationVisitor that applies operations
// within tx.
type committer struct {
	driver       Driver
	tx           *sql.Tx
	connectorKey string
}
