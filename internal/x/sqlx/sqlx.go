// Package sqlx contains helpers for database/sql that report failures by
// panicking with a PanicSentinel, so that a sequence of statements can be
// written without checking each error.
package sqlx

import (
	"context"
	"database/sql"
)

// DB is the statement-executing subset of *sql.DB, *sql.Conn and *sql.Tx.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

var (
	_ DB = (*sql.DB)(nil)
	_ DB = (*sql.Tx)(nil)
	_ DB = (*sql.Conn)(nil)
)

// Scanner reads the columns of a single row, as *sql.Row and *sql.Rows do.
type Scanner interface {
	Scan(dest ...interface{}) error
}

// PanicSentinel is the value panicked by Must().
type PanicSentinel struct {
	Cause error
}

// Must panics with a PanicSentinel if err is non-nil.
func Must(err error) {
	if err != nil {
		panic(PanicSentinel{err})
	}
}

// Recover assigns the cause of a PanicSentinel panic to *err.
//
// It must be called directly by a deferred statement. Any other panic value
// is re-panicked.
func Recover(err *error) {
	if err == nil {
		panic("err must be a non-nil pointer")
	}

	r := recover()
	if r == nil {
		return
	}

	if s, ok := r.(PanicSentinel); ok {
		*err = s.Cause
		return
	}

	panic(r)
}
