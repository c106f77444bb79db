package sqlx

import (
	"context"
	"database/sql"
)

// Transaction calls fn within a transaction on db.
//
// The transaction is committed if fn returns normally, and rolled back if it
// panics.
func Transaction(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx)) {
	tx, err := db.BeginTx(ctx, nil)
	Must(err)
	defer tx.Rollback() // nolint:errcheck

	fn(tx)

	Must(tx.Commit())
}

// Exec executes a statement that does not return rows.
func Exec(ctx context.Context, db DB, query string, args ...interface{}) sql.Result {
	res, err := db.ExecContext(ctx, query, args...)
	Must(err)
	return res
}

// TryExecRow executes a statement and reports whether it affected exactly
// one row.
//
// Conditional updates use it to detect revision conflicts.
func TryExecRow(ctx context.Context, db DB, query string, args ...interface{}) bool {
	n, err := Exec(ctx, db, query, args...).RowsAffected()
	Must(err)
	return n == 1
}

// Query executes a statement that returns rows.
func Query(ctx context.Context, db DB, query string, args ...interface{}) *sql.Rows {
	rows, err := db.QueryContext(ctx, query, args...)
	Must(err)
	return rows
}

// QueryBool executes a statement that returns a single boolean column of a
// single row.
func QueryBool(ctx context.Context, db DB, query string, args ...interface{}) (v bool) {
	Must(
		db.QueryRowContext(ctx, query, args...).Scan(&v),
	)
	return v
}
