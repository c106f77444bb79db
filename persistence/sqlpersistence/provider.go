package sqlpersistence

import (
	"context"
	"database/sql"
	"runtime"
	"sync"
	"time"

	"github.com/dogmatiq/accord/persistence"
	"github.com/dogmatiq/linger"
)

var (
	// DefaultMaxIdleConns is the number of idle connections kept by a pool
	// opened by DSNProvider.
	DefaultMaxIdleConns = runtime.GOMAXPROCS(0)

	// DefaultMaxOpenConns is the maximum number of connections opened by a
	// pool opened by DSNProvider.
	DefaultMaxOpenConns = DefaultMaxIdleConns * 10

	// DefaultMaxConnLifetime is the age at which connections in a pool opened
	// by DSNProvider are replaced.
	DefaultMaxConnLifetime = 10 * time.Minute
)

// Provider is a persistence.Provider that stores processes in a database
// pool owned by the caller.
//
// The pool is not closed when the data-stores are closed.
type Provider struct {
	pool

	// DB is the database in which processes are stored.
	DB *sql.DB

	// Driver is the driver used to query DB. If it is nil, the built-in driver
	// that is compatible with DB is used.
	Driver Driver

	// AutoCreateSchema, if true, creates the schema when the first
	// data-store is opened.
	AutoCreateSchema bool
}

// Open returns the data-store for the connector with key k.
//
// Engines that open the same key share the same processes and coordinate
// through revisions and leases.
func (p *Provider) Open(ctx context.Context, k string) (persistence.DataStore, error) {
	return p.acquire(
		ctx,
		k,
		poolConfig{
			Driver:           p.Driver,
			AutoCreateSchema: p.AutoCreateSchema,
			Open: func() (*sql.DB, error) {
				return p.DB, nil
			},
			Close: func(*sql.DB) error {
				return nil
			},
		},
	)
}

// DSNProvider is a persistence.Provider that opens its own database pool
// from a driver name and data-source name.
//
// The pool is closed when the last of its data-stores is closed.
type DSNProvider struct {
	pool

	// DriverName is the database/sql driver name, such as "sqlite" or "pgx".
	DriverName string

	// DSN is the data-source name passed to sql.Open().
	DSN string

	// Driver is the driver used to query the database. If it is nil, the
	// built-in driver that is compatible with the database is used.
	Driver Driver

	// AutoCreateSchema, if true, creates the schema when the pool is opened.
	AutoCreateSchema bool

	// MaxIdleConns is the number of idle connections kept in the pool. If it
	// is zero, DefaultMaxIdleConns is used.
	MaxIdleConns int

	// MaxOpenConns is the maximum number of open connections. If it is zero,
	// DefaultMaxOpenConns is used.
	MaxOpenConns int

	// MaxConnLifetime is the age at which connections are replaced. If it is
	// zero, DefaultMaxConnLifetime is used.
	MaxConnLifetime time.Duration
}

// Open returns the data-store for the connector with key k.
//
// Engines that open the same key share the same processes and coordinate
// through revisions and leases.
func (p *DSNProvider) Open(ctx context.Context, k string) (persistence.DataStore, error) {
	return p.acquire(
		ctx,
		k,
		poolConfig{
			Driver:           p.Driver,
			AutoCreateSchema: p.AutoCreateSchema,
			Open:             p.openDB,
			Close:            (*sql.DB).Close,
		},
	)
}

func (p *DSNProvider) openDB() (*sql.DB, error) {
	db, err := sql.Open(p.DriverName, p.DSN)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(intOrDefault(p.MaxIdleConns, DefaultMaxIdleConns))
	db.SetMaxOpenConns(intOrDefault(p.MaxOpenConns, DefaultMaxOpenConns))
	db.SetConnMaxLifetime(linger.MustCoalesce(p.MaxConnLifetime, DefaultMaxConnLifetime))

	return db, nil
}

func intOrDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// poolConfig describes how a pool obtains and releases its database.
type poolConfig struct {
	Driver           Driver
	AutoCreateSchema bool
	Open             func() (*sql.DB, error)
	Close            func(*sql.DB) error
}

// pool reference-counts the database shared by the data-stores of a
// provider.
type pool struct {
	m      sync.Mutex
	db     *sql.DB
	driver Driver
	close  func(*sql.DB) error
	refs   int
}

// acquire returns a data-store for connector key k, opening the database if
// this is the first reference.
func (p *pool) acquire(
	ctx context.Context,
	k string,
	cfg poolConfig,
) (persistence.DataStore, error) {
	p.m.Lock()
	defer p.m.Unlock()

	if p.refs == 0 {
		db, d, err := prepare(ctx, cfg)
		if err != nil {
			return nil, err
		}

		p.db = db
		p.driver = d
		p.close = cfg.Close
	}

	p.refs++

	return &dataStore{
		db:           p.db,
		driver:       p.driver,
		connectorKey: k,
		release:      p.release,
	}, nil
}

// prepare opens the database and resolves its driver.
func prepare(ctx context.Context, cfg poolConfig) (*sql.DB, Driver, error) {
	db, err := cfg.Open()
	if err != nil {
		return nil, nil, err
	}

	d := cfg.Driver
	if d == nil {
		d, err = selectDriver(ctx, db)
	}

	if err == nil && cfg.AutoCreateSchema {
		err = d.CreateSchema(ctx, db)
	}

	if err != nil {
		cfg.Close(db) // nolint:errcheck
		return nil, nil, err
	}

	return db, d, nil
}

// release drops a reference to the database, closing it when no data-stores
// remain.
func (p *pool) release() error {
	p.m.Lock()
	defer p.m.Unlock()

	p.refs--
	if p.refs > 0 {
		return nil
	}

	db := p.db
	p.db = nil
	p.driver = nil

	return p.close(db)
}
