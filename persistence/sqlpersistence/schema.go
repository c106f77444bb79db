package sqlpersistence

import (
	"context"
	"database/sql"
)

// CreateSchema creates the process table and its indexes in db, using the
// built-in driver that is compatible with db.
//
// It is idempotent.
func CreateSchema(ctx context.Context, db *sql.DB) error {
	return withDriver(ctx, db, func(d Driver) error {
		return d.CreateSchema(ctx, db)
	})
}

// DropSchema removes everything created by CreateSchema(), including all
// stored processes.
//
// It is idempotent.
func DropSchema(ctx context.Context, db *sql.DB) error {
	return withDriver(ctx, db, func(d Driver) error {
		return d.DropSchema(ctx, db)
	})
}

func withDriver(ctx context.Context, db *sql.DB, fn func(Driver) error) error {
	d, err := selectDriver(ctx, db)
	if err != nil {
		return err
	}

	return fn(d)
}
