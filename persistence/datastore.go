package persistence

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrDataStoreClosed is returned when performing any persistence
	// operation on a closed data-store.
	ErrDataStoreClosed = errors.New("data store is closed")

	// ErrDataStoreLocked is returned by Provider.Open() if the data-store has
	// already been opened for exclusive use.
	ErrDataStoreLocked = errors.New("data store is locked")
)

// DataStore is an interface used by the engine to persist and retrieve
// process data.
type DataStore interface {
	ProcessRepository

	// Persist commits a batch of operations atomically.
	//
	// If any one of the operations causes an optimistic concurrency conflict
	// the entire batch is aborted and a ConflictError is returned.
	Persist(ctx context.Context, b Batch) error

	// Close closes the data store.
	//
	// Closing a data-store causes any future calls to Persist() to return
	// ErrDataStoreClosed.
	//
	// The behavior of read operations on a closed data-store is
	// implementation-defined.
	Close() error
}

// DataStoreHandle lazily opens a data-store on first use.
type DataStoreHandle struct {
	Provider Provider
	Key      string

	m  sync.Mutex
	ds DataStore
}

// Get returns the data-store, opening it if necessary.
//
// The caller is NOT responsible for closing the data-store.
func (h *DataStoreHandle) Get(ctx context.Context) (DataStore, error) {
	h.m.Lock()
	defer h.m.Unlock()

	if h.ds != nil {
		return h.ds, nil
	}

	ds, err := h.Provider.Open(ctx, h.Key)
	if err != nil {
		return nil, err
	}

	h.ds = ds

	return ds, nil
}

// Close closes the data-store, if it has been opened.
func (h *DataStoreHandle) Close() error {
	h.m.Lock()
	defer h.m.Unlock()

	ds := h.ds
	h.ds = nil

	if ds == nil {
		return nil
	}

	return ds.Close()
}
