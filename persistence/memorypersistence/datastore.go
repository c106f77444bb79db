package memorypersistence

import (
	"context"
	"sync"

	"github.com/dogmatiq/accord/persistence"
)

// dataStore is an implementation of persistence.DataStore for the in-memory
// persistence provider.
type dataStore struct {
	db *database

	m      sync.RWMutex
	closed bool
}

// Persist commits a batch of operations atomically.
//
// If any one of the operations causes an optimistic concurrency conflict
// the entire batch is aborted and a ConflictError is returned.
func (ds *dataStore) Persist(
	ctx context.Context,
	b persistence.Batch,
) error {
	b.MustValidate()

	ds.m.RLock()
	defer ds.m.RUnlock()

	if ds.closed {
		return persistence.ErrDataStoreClosed
	}

	ds.db.mutex.Lock()
	defer ds.db.mutex.Unlock()

	if err := b.AcceptVisitor(ctx, &validator{ds.db}); err != nil {
		return err
	}

	return b.AcceptVisitor(ctx, &committer{ds.db})
}

// Close closes the data store.
//
// Closing a data-store causes any future calls to Persist() to return
// ErrDataStoreClosed.
//
// Read operations on a closed data-store continue to return the data as it
// was when the data-store was closed.
func (ds *dataStore) Close() error {
	ds.m.Lock()
	defer ds.m.Unlock()

	if ds.closed {
		return persistence.ErrDataStoreClosed
	}

	ds.closed = true
	ds.db.Close()

	return nil
}

// validator is an implementation of persistence.OperationVisitor that
// validates operations before they are committed.
type validator struct {
	db *database
}

// committer is an implementation of persistence.OperationVisitor that
// applies operations to the database.
type committer struct {
	db *database
}
