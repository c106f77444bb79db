package boltpersistence

import (
	"context"
	"os"
	"sync"

	"github.com/dogmatiq/accord/internal/x/bboltx"
	"github.com/dogmatiq/accord/persistence"
	"go.etcd.io/bbolt"
)

// Provider is a persistence.Provider that stores processes in a BoltDB
// database owned by the caller.
//
// The database is not closed when the data-stores are closed.
type Provider struct {
	keys

	// DB is the database in which processes are stored.
	DB *bbolt.DB
}

// Open returns the data-store for the connector with key k.
//
// BoltDB is a single-process database, so each key may only be open once at
// a time. ErrDataStoreLocked is returned if k is already open.
func (p *Provider) Open(_ context.Context, k string) (persistence.DataStore, error) {
	return p.acquire(
		k,
		func() (*bbolt.DB, error) { return p.DB, nil },
		func(*bbolt.DB) error { return nil },
	)
}

// FileProvider is a persistence.Provider that stores processes in a BoltDB
// database file, which is opened with the first data-store and closed with
// the last.
type FileProvider struct {
	keys

	// Path is the location of the database file. It is created if it does
	// not exist.
	Path string

	// Mode is the permission bits of a newly created file. If it is zero,
	// 0600 is used.
	Mode os.FileMode

	// Options configures BoltDB. If it is nil, bbolt.DefaultOptions is used.
	Options *bbolt.Options
}

// Open returns the data-store for the connector with key k.
//
// Each key may only be open once at a time. ErrDataStoreLocked is returned
// if k is already open.
//
// Opening the file waits for BoltDB's file lock, bounded by the deadline of
// ctx.
func (p *FileProvider) Open(ctx context.Context, k string) (persistence.DataStore, error) {
	return p.acquire(
		k,
		func() (*bbolt.DB, error) { return bboltx.Open(ctx, p.Path, p.Mode, p.Options) },
		(*bbolt.DB).Close,
	)
}

// keys tracks the connector keys that are open against a shared database.
type keys struct {
	m     sync.Mutex
	db    *bbolt.DB
	close func(*bbolt.DB) error
	open  map[string]struct{}
}

func (p *keys) acquire(
	k string,
	open func() (*bbolt.DB, error),
	close func(*bbolt.DB) error,
) (persistence.DataStore, error) {
	p.m.Lock()
	defer p.m.Unlock()

	if _, ok := p.open[k]; ok {
		return nil, persistence.ErrDataStoreLocked
	}

	if p.db == nil {
		db, err := open()
		if err != nil {
			return nil, err
		}

		p.db = db
		p.close = close
		p.open = map[string]struct{}{}
	}

	p.open[k] = struct{}{}

	return &dataStore{
		db:           p.db,
		connectorKey: []byte(k),
		release:      p.release,
	}, nil
}

// release closes k. The database is closed once no keys remain open.
func (p *keys) release(k string) error {
	p.m.Lock()
	defer p.m.Unlock()

	delete(p.open, k)
	if len(p.open) > 0 {
		return nil
	}

	db, close := p.db, p.close
	p.db, p.close = nil, nil

	return close(db)
}
