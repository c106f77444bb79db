package memorypersistence

import (
	"context"
	"sync"

	"github.com/dogmatiq/accord/persistence"
)

// Provider is a persistence.Provider that keeps processes in memory.
//
// Processes survive closing and re-opening a data-store, but not the
// provider itself. It is intended for tests and single-node development.
type Provider struct {
	m          sync.Mutex
	connectors map[string]*database
}

// Open returns the data-store for the connector with key k.
//
// Each key may only be open once at a time. ErrDataStoreLocked is returned
// if k is already open.
func (p *Provider) Open(_ context.Context, k string) (persistence.DataStore, error) {
	p.m.Lock()
	defer p.m.Unlock()

	db, ok := p.connectors[k]
	if !ok {
		if p.connectors == nil {
			p.connectors = map[string]*database{}
		}

		db = &database{}
		p.connectors[k] = db
	}

	if !db.TryOpen() {
		return nil, persistence.ErrDataStoreLocked
	}

	return &dataStore{db: db}, nil
}
