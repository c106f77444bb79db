package sqlpersistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/dogmatiq/accord/persistence"
	"github.com/dogmatiq/accord/process"
)

// LoadProcess loads the process with the given ID.
func (ds *dataStore) LoadProcess(
	ctx context.Context,
	id string,
) (r persistence.ProcessRecord, ok bool, err error) {
	err = ds.withDB(func(db *sql.DB) error {
		r, ok, err = ds.driver.SelectProcess(ctx, db, ds.connectorKey, id)
		return err
	})

	return r, ok, err
}

// LoadProcessByCorrelationID loads the process of the given type that has
// the given correlation ID.
func (ds *dataStore) LoadProcessByCorrelationID(
	ctx context.Context,
	t process.Type,
	id string,
) (r persistence.ProcessRecord, ok bool, err error) {
	err = ds.withDB(func(db *sql.DB) error {
		r, ok, err = ds.driver.SelectProcessByCorrelationID(ctx, db, ds.connectorKey, t, id)
		return err
	})

	return r, ok, err
}

// LoadDueProcesses loads up to n due processes of type t, oldest first.
func (ds *dataStore) LoadDueProcesses(
	ctx context.Context,
	t process.Type,
	states []process.State,
	now time.Time,
	n int,
) (records []persistence.ProcessRecord, err error) {
	err = ds.withDB(func(db *sql.DB) error {
		records, err = ds.driver.SelectDueProcesses(ctx, db, ds.connectorKey, t, states, now, n)
		return err
	})

	return records, err
}

// LoadExpiredLeases loads up to n processes with leases that have expired.
func (ds *dataStore) LoadExpiredLeases(
	ctx context.Context,
	now time.Time,
	n int,
) (records []persistence.ProcessRecord, err error) {
	err = ds.withDB(func(db *sql.DB) error {
		records, err = ds.driver.SelectExpiredLeases(ctx, db, ds.connectorKey, now, n)
		return err
	})

	return records, err
}

// LoadProcesses loads processes that match the query, ordered by ID.
func (ds *dataStore) LoadProcesses(
	ctx context.Context,
	q persistence.ProcessQuery,
) (records []persistence.ProcessRecord, err error) {
	err = ds.withDB(func(db *sql.DB) error {
		records, err = ds.driver.SelectProcesses(ctx, db, ds.connectorKey, q)
		return err
	})

	return records, err
}

// VisitSaveProcess applies the changes in a "SaveProcess" operation to the
// database.
func (c *committer) VisitSaveProcess(
	ctx context.Context,
	op persistence.SaveProcess,
) error {
	conflict, err := c.driver.HasCorrelationConflict(ctx, c.tx, c.connectorKey, op.Record)
	if err != nil {
		return err
	}

	if conflict {
		return persistence.ConflictError{Cause: op}
	}

	var ok bool

	if op.Record.Revision == 0 {
		ok, err = c.driver.InsertProcess(ctx, c.tx, c.connectorKey, op.Record)
	} else {
		ok, err = c.driver.UpdateProcess(ctx, c.tx, c.connectorKey, op.Record)
	}

	if err != nil {
		return err
	}

	if !ok {
		return persistence.ConflictError{Cause: op}
	}

	return nil
}
