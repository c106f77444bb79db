package sqlite

import (
	"context"
	"database/sql"

	"github.com/dogmatiq/accord/internal/x/sqlx"
	"github.com/dogmatiq/accord/persistence/sqlpersistence/internal/processsql"
)

// Driver is an implementation of sqlpersistence.Driver for SQLite.
var Driver = driver{
	processsql.Queries{Table: "process"},
}

type driver struct {
	processsql.Queries
}

// IsCompatibleWith returns nil if this driver can be used with db.
func (driver) IsCompatibleWith(ctx context.Context, db *sql.DB) error {
	// Verify that we're using SQLite and that $1-style placeholders are
	// supported.
	return db.QueryRowContext(
		ctx,
		`SELECT sqlite_version() WHERE 1 = $1`,
		1,
	).Err()
}

// Begin starts a transaction.
func (driver) Begin(ctx context.Context, db *sql.DB) (*sql.Tx, error) {
	return db.BeginTx(ctx, nil)
}

// CreateSchema creates the schema elements required by the SQLite driver.
func (driver) CreateSchema(ctx context.Context, db *sql.DB) (err error) {
	defer sqlx.Recover(&err)

	sqlx.Transaction(ctx, db, func(tx *sql.Tx) {
		sqlx.Exec(
			ctx,
			tx,
			`CREATE TABLE IF NOT EXISTS process (
				connector_key   TEXT NOT NULL,
				id              TEXT NOT NULL,
				type            TEXT NOT NULL,
				state           TEXT NOT NULL,
				state_timestamp INTEGER NOT NULL,
				revision        INTEGER NOT NULL,
				lease_owner     TEXT NOT NULL,
				lease_expiry    INTEGER NOT NULL,
				retry_count     INTEGER NOT NULL,
				error_detail    TEXT NOT NULL,
				correlation_id  TEXT NOT NULL,
				pending_command TEXT NOT NULL,
				pending_reason  TEXT NOT NULL,
				awaiting        INTEGER NOT NULL,
				media_type      TEXT NOT NULL,
				data            BLOB,

				PRIMARY KEY (connector_key, id)
			)`,
		)

		sqlx.Exec(
			ctx,
			tx,
			`CREATE INDEX IF NOT EXISTS process_due ON process (
				connector_key,
				type,
				state_timestamp
			)`,
		)

		sqlx.Exec(
			ctx,
			tx,
			`CREATE INDEX IF NOT EXISTS process_lease ON process (
				connector_key,
				lease_expiry
			) WHERE lease_owner != ''`,
		)

		sqlx.Exec(
			ctx,
			tx,
			`CREATE UNIQUE INDEX IF NOT EXISTS process_correlation ON process (
				connector_key,
				type,
				correlation_id
			) WHERE correlation_id != ''`,
		)
	})

	return nil
}

// DropSchema drops the schema elements required by the SQLite driver.
func (driver) DropSchema(ctx context.Context, db *sql.DB) (err error) {
	defer sqlx.Recover(&err)

	sqlx.Exec(ctx, db, `DROP TABLE IF EXISTS process`)

	return nil
}
