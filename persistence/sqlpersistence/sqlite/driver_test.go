package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"time"

	"github.com/dogmatiq/accord/persistence"
	"github.com/dogmatiq/accord/persistence/internal/providertest"
	"github.com/dogmatiq/accord/persistence/sqlpersistence"
	. "github.com/dogmatiq/accord/persistence/sqlpersistence/sqlite"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	_ "modernc.org/sqlite"
)

var _ = Describe("type driver", func() {
	var db *sql.DB

	providertest.Declare(
		func(ctx context.Context, in providertest.In) providertest.Out {
			var err error
			db, err = sql.Open("sqlite", filepath.Join(GinkgoT().TempDir(), "accord.db"))
			Expect(err).ShouldNot(HaveOccurred())

			// SQLite permits a single writer. Sharing one connection keeps
			// the tests free of "database is locked" errors.
			db.SetMaxOpenConns(1)

			err = Driver.CreateSchema(ctx, db)
			Expect(err).ShouldNot(HaveOccurred())

			return providertest.Out{
				NewProvider: func() (persistence.Provider, func()) {
					return &sqlpersistence.Provider{
						DB:     db,
						Driver: Driver,
					}, nil
				},
				IsShared: true,
			}
		},
		func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()

			err := Driver.DropSchema(ctx, db)
			Expect(err).ShouldNot(HaveOccurred())

			err = db.Close()
			Expect(err).ShouldNot(HaveOccurred())
		},
	)

	Describe("func IsCompatibleWith()", func() {
		It("returns nil for a SQLite database", func() {
			db, err := sql.Open("sqlite", filepath.Join(GinkgoT().TempDir(), "compat.db"))
			Expect(err).ShouldNot(HaveOccurred())
			defer db.Close()

			err = Driver.IsCompatibleWith(context.Background(), db)
			Expect(err).ShouldNot(HaveOccurred())
		})
	})

	Describe("func CreateSchema()", func() {
		It("can be called when the schema already exists", func() {
			db, err := sql.Open("sqlite", filepath.Join(GinkgoT().TempDir(), "schema.db"))
			Expect(err).ShouldNot(HaveOccurred())
			defer db.Close()

			ctx := context.Background()
			Expect(Driver.CreateSchema(ctx, db)).To(Succeed())
			Expect(Driver.CreateSchema(ctx, db)).To(Succeed())
		})
	})
})
