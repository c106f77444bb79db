package fixtures

import (
	"context"
	"time"

	"github.com/dogmatiq/accord/persistence"
	"github.com/dogmatiq/accord/persistence/memorypersistence"
	"github.com/dogmatiq/accord/process"
)

// ProviderStub is a test implementation of the persistence.Provider interface.
type ProviderStub struct {
	persistence.Provider

	OpenFunc func(context.Context, string) (persistence.DataStore, error)
}

// Open returns a data-store for a specific connector.
func (p *ProviderStub) Open(ctx context.Context, k string) (persistence.DataStore, error) {
	if p.OpenFunc != nil {
		return p.OpenFunc(ctx, k)
	}

	if p.Provider != nil {
		ds, err := p.Provider.Open(ctx, k)
		if ds != nil {
			ds = &DataStoreStub{DataStore: ds}
		}
		return ds, err
	}

	return nil, nil
}

// DataStoreStub is a test implementation of the persistence.DataStore interface.
type DataStoreStub struct {
	persistence.DataStore

	LoadProcessFunc       func(context.Context, string) (persistence.ProcessRecord, bool, error)
	LoadDueProcessesFunc  func(context.Context, process.Type, []process.State, time.Time, int) ([]persistence.ProcessRecord, error)
	LoadExpiredLeasesFunc func(context.Context, time.Time, int) ([]persistence.ProcessRecord, error)
	PersistFunc           func(context.Context, persistence.Batch) error
	CloseFunc             func() error
}

// NewDataStoreStub returns a new data-store stub that uses an in-memory
// persistence provider.
func NewDataStoreStub() *DataStoreStub {
	p := &ProviderStub{
		Provider: &memorypersistence.Provider{},
	}

	ds, err := p.Open(context.Background(), "<connector-key>")
	if err != nil {
		panic(err)
	}

	return ds.(*DataStoreStub)
}

// LoadProcess loads the process with the given ID.
func (ds *DataStoreStub) LoadProcess(
	ctx context.Context,
	id string,
) (persistence.ProcessRecord, bool, error) {
	if ds.LoadProcessFunc != nil {
		return ds.LoadProcessFunc(ctx, id)
	}

	if ds.DataStore != nil {
		return ds.DataStore.LoadProcess(ctx, id)
	}

	return persistence.ProcessRecord{}, false, nil
}

// LoadDueProcesses loads processes that are due to be handled.
func (ds *DataStoreStub) LoadDueProcesses(
	ctx context.Context,
	t process.Type,
	states []process.State,
	now time.Time,
	n int,
) ([]persistence.ProcessRecord, error) {
	if ds.LoadDueProcessesFunc != nil {
		return ds.LoadDueProcessesFunc(ctx, t, states, now, n)
	}

	if ds.DataStore != nil {
		return ds.DataStore.LoadDueProcesses(ctx, t, states, now, n)
	}

	return nil, nil
}

// LoadExpiredLeases loads processes with expired leases.
func (ds *DataStoreStub) LoadExpiredLeases(
	ctx context.Context,
	now time.Time,
	n int,
) ([]persistence.ProcessRecord, error) {
	if ds.LoadExpiredLeasesFunc != nil {
		return ds.LoadExpiredLeasesFunc(ctx, now, n)
	}

	if ds.DataStore != nil {
		return ds.DataStore.LoadExpiredLeases(ctx, now, n)
	}

	return nil, nil
}

// Persist commits a batch of operations atomically.
func (ds *DataStoreStub) Persist(ctx context.Context, b persistence.Batch) error {
	if ds.PersistFunc != nil {
		return ds.PersistFunc(ctx, b)
	}

	if ds.DataStore != nil {
		return ds.DataStore.Persist(ctx, b)
	}

	return nil
}

// Close closes the data store.
func (ds *DataStoreStub) Close() error {
	if ds.CloseFunc != nil {
		return ds.CloseFunc()
	}

	if ds.DataStore != nil {
		return ds.DataStore.Close()
	}

	return nil
}
