package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dogmatiq/accord/persistence/sqlpersistence"
	"github.com/dogmatiq/dodeca/config"
	"github.com/spf13/cobra"
)

// createSchemaCommand creates the "schema" command, which manages the SQL
// schema used by the sqlite and postgres stores.
func createSchemaCommand(env config.Bucket) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Manage the SQL schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "create",
			Short: "Create the SQL schema",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDB(cmd.Context(), env, sqlpersistence.CreateSchema)
			},
		},
		&cobra.Command{
			Use:   "drop",
			Short: "Drop the SQL schema",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDB(cmd.Context(), env, sqlpersistence.DropSchema)
			},
		},
	)

	return cmd
}

// withDB opens the configured SQL database and calls fn.
func withDB(
	ctx context.Context,
	env config.Bucket,
	fn func(context.Context, *sql.DB) error,
) error {
	s, err := loadSettings(env)
	if err != nil {
		return err
	}

	if s.Store == "bolt" {
		return fmt.Errorf("the bolt store does not use a SQL schema")
	}

	db, err := sql.Open(s.driverName(), s.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(ctx, db)
}
