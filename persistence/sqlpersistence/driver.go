package sqlpersistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/dogmatiq/accord/persistence"
	"github.com/dogmatiq/accord/process"
)

// Driver is used to interface with the underlying SQL database.
type Driver interface {
	ProcessDriver

	// IsCompatibleWith returns nil if this driver can be used with db.
	IsCompatibleWith(ctx context.Context, db *sql.DB) error

	// Begin starts a transaction for use by DataStore.Persist().
	Begin(ctx context.Context, db *sql.DB) (*sql.Tx, error)

	// CreateSchema creates any SQL schema elements required by the driver.
	CreateSchema(ctx context.Context, db *sql.DB) error

	// DropSchema removes any SQL schema elements created by CreateSchema().
	DropSchema(ctx context.Context, db *sql.DB) error
}

// ProcessDriver is the subset of the Driver interface that is concerned with
// processes.
type ProcessDriver interface {
	// InsertProcess inserts a process record with a revision of 1.
	//
	// It returns false if the row already exists.
	InsertProcess(
		ctx context.Context,
		tx *sql.Tx,
		ck string,
		r persistence.ProcessRecord,
	) (bool, error)

	// UpdateProcess updates a process record, incrementing its revision.
	//
	// It returns false if the row does not exist or r.Revision is not
	// current.
	UpdateProcess(
		ctx context.Context,
		tx *sql.Tx,
		ck string,
		r persistence.ProcessRecord,
	) (bool, error)

	// HasCorrelationConflict returns true if another process of the same type
	// already uses r's correlation ID.
	HasCorrelationConflict(
		ctx context.Context,
		tx *sql.Tx,
		ck string,
		r persistence.ProcessRecord,
	) (bool, error)

	// SelectProcess selects the process with the given ID.
	SelectProcess(
		ctx context.Context,
		db *sql.DB,
		ck, id string,
	) (persistence.ProcessRecord, bool, error)

	// SelectProcessByCorrelationID selects the process of type t with the
	// given correlation ID.
	SelectProcessByCorrelationID(
		ctx context.Context,
		db *sql.DB,
		ck string,
		t process.Type,
		id string,
	) (persistence.ProcessRecord, bool, error)

	// SelectDueProcesses selects up to n due processes, oldest first.
	SelectDueProcesses(
		ctx context.Context,
		db *sql.DB,
		ck string,
		t process.Type,
		states []process.State,
		now time.Time,
		n int,
	) ([]persistence.ProcessRecord, error)

	// SelectExpiredLeases selects up to n processes with expired leases.
	SelectExpiredLeases(
		ctx context.Context,
		db *sql.DB,
		ck string,
		now time.Time,
		n int,
	) ([]persistence.ProcessRecord, error)

	// SelectProcesses selects the processes that match a query.
	SelectProcesses(
		ctx context.Context,
		db *sql.DB,
		ck string,
		q persistence.ProcessQuery,
	) ([]persistence.ProcessRecord, error)
}
