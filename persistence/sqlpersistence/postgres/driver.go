package postgres

import (
	"context"
	"database/sql"

	"github.com/dogmatiq/accord/internal/x/sqlx"
	"github.com/dogmatiq/accord/persistence/sqlpersistence/internal/processsql"
)

// Driver is an implementation of sqlpersistence.Driver for PostgreSQL.
var Driver = driver{
	processsql.Queries{Table: "accord.process"},
}

type driver struct {
	processsql.Queries
}

// IsCompatibleWith returns nil if this driver can be used with db.
func (driver) IsCompatibleWith(ctx context.Context, db *sql.DB) error {
	// Verify that we're using PostgreSQL and that $1-style placeholders are
	// supported.
	return db.QueryRowContext(
		ctx,
		`SELECT pg_backend_pid() WHERE 1 = $1`,
		1,
	).Err()
}

// Begin starts a transaction.
func (driver) Begin(ctx context.Context, db *sql.DB) (*sql.Tx, error) {
	return db.BeginTx(ctx, nil)
}

// CreateSchema creates any SQL schema elements required by the driver.
func (driver) CreateSchema(ctx context.Context, db *sql.DB) (err error) {
	defer sqlx.Recover(&err)

	sqlx.Transaction(ctx, db, func(tx *sql.Tx) {
		sqlx.Exec(ctx, tx, `CREATE SCHEMA IF NOT EXISTS accord`)

		sqlx.Exec(
			ctx,
			tx,
			`CREATE TABLE IF NOT EXISTS accord.process (
				connector_key   TEXT NOT NULL,
				id              TEXT NOT NULL,
				type            TEXT NOT NULL,
				state           TEXT NOT NULL,
				state_timestamp BIGINT NOT NULL,
				revision        BIGINT NOT NULL,
				lease_owner     TEXT NOT NULL,
				lease_expiry    BIGINT NOT NULL,
				retry_count     BIGINT NOT NULL,
				error_detail    TEXT NOT NULL,
				correlation_id  TEXT NOT NULL,
				pending_command TEXT NOT NULL,
				pending_reason  TEXT NOT NULL,
				awaiting        BOOLEAN NOT NULL,
				media_type      TEXT NOT NULL,
				data            BYTEA,

				PRIMARY KEY (connector_key, id)
			)`,
		)

		sqlx.Exec(
			ctx,
			tx,
			`CREATE INDEX IF NOT EXISTS process_due ON accord.process (
				connector_key,
				type,
				state_timestamp
			)`,
		)

		sqlx.Exec(
			ctx,
			tx,
			`CREATE INDEX IF NOT EXISTS process_lease ON accord.process (
				connector_key,
				lease_expiry
			) WHERE lease_owner != ''`,
		)

		sqlx.Exec(
			ctx,
			tx,
			`CREATE UNIQUE INDEX IF NOT EXISTS process_correlation ON accord.process (
				connector_key,
				type,
				correlation_id
			) WHERE correlation_id != ''`,
		)
	})

	return nil
}

// DropSchema removes any SQL schema elements created by CreateSchema().
func (driver) DropSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS accord CASCADE`)
	return err
}
