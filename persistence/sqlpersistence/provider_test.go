//go:build cgo
// +build cgo

package sqlpersistence_test

import (
	"context"
	"database/sql"
	"time"

	"github.com/dogmatiq/accord/persistence"
	"github.com/dogmatiq/accord/persistence/internal/providertest"
	. "github.com/dogmatiq/accord/persistence/sqlpersistence"
	"github.com/dogmatiq/sqltest"
	"github.com/dogmatiq/sqltest/sqlstub"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/multierr"
)

// newDatabase returns a new SQLite database, and a function that destroys
// it.
func newDatabase(ctx context.Context) (*sqltest.Database, func()) {
	database, err := sqltest.NewDatabase(ctx, sqltest.SQLite3Driver, sqltest.SQLite)
	Expect(err).ShouldNot(HaveOccurred())

	return database, func() {
		Expect(database.Close()).To(Succeed())
	}
}

var _ = Describe("type Provider", func() {
	var (
		db      *sql.DB
		destroy func()
	)

	providertest.Declare(
		func(ctx context.Context, in providertest.In) providertest.Out {
			var database *sqltest.Database
			database, destroy = newDatabase(ctx)

			var err error
			db, err = database.Open()
			Expect(err).ShouldNot(HaveOccurred())

			return providertest.Out{
				NewProvider: func() (persistence.Provider, func()) {
					return &Provider{
						DB:               db,
						AutoCreateSchema: true,
					}, nil
				},
				IsShared: true,
			}
		},
		func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()

			Expect(DropSchema(ctx, db)).To(Succeed())
			Expect(db.Close()).To(Succeed())
			destroy()
		},
	)

	It("returns an error if no built-in driver is compatible with the database", func() {
		provider := &Provider{
			DB: sql.OpenDB(&sqlstub.Connector{}),
		}

		ds, err := provider.Open(context.Background(), providertest.DefaultConnectorKey)
		if ds != nil {
			ds.Close()
		}

		Expect(err).Should(HaveOccurred())
		Expect(multierr.Errors(err)).To(ContainElement(
			MatchError("could not find a driver that is compatible with *sqlstub.Driver"),
		))
	})
})

var _ = Describe("type DSNProvider", func() {
	var (
		database *sqltest.Database
		destroy  func()
	)

	providertest.Declare(
		func(ctx context.Context, in providertest.In) providertest.Out {
			database, destroy = newDatabase(ctx)

			db, err := database.Open()
			Expect(err).ShouldNot(HaveOccurred())
			defer db.Close()

			Expect(CreateSchema(ctx, db)).To(Succeed())

			return providertest.Out{
				NewProvider: func() (persistence.Provider, func()) {
					return &DSNProvider{
						DriverName: database.DataSource.DriverName(),
						DSN:        database.DataSource.DSN(),
					}, nil
				},
				IsShared: true,
			}
		},
		func() {
			destroy()
		},
	)

	It("returns an error if the database can not be opened", func() {
		provider := &DSNProvider{
			DriverName: "<unregistered>",
			DSN:        "<dsn>",
		}

		ds, err := provider.Open(context.Background(), providertest.DefaultConnectorKey)
		if ds != nil {
			ds.Close()
		}
		Expect(err).Should(HaveOccurred())
	})

	It("creates the schema when AutoCreateSchema is set", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		fresh, destroy := newDatabase(ctx)
		defer destroy()

		provider := &DSNProvider{
			DriverName:       fresh.DataSource.DriverName(),
			DSN:              fresh.DataSource.DSN(),
			AutoCreateSchema: true,
		}

		ds, err := provider.Open(ctx, providertest.DefaultConnectorKey)
		Expect(err).ShouldNot(HaveOccurred())
		defer ds.Close()

		_, ok, err := ds.LoadProcess(ctx, "<id>")
		Expect(err).ShouldNot(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("sizes the pool relative to the number of CPUs", func() {
		Expect(DefaultMaxIdleConns).To(BeNumerically(">", 0))
		Expect(DefaultMaxOpenConns).To(BeNumerically(">", DefaultMaxIdleConns))
		Expect(DefaultMaxConnLifetime).To(BeNumerically(">", 0))
	})
})

var _ = Describe("func CreateSchema() and DropSchema()", func() {
	It("can be called repeatedly", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		database, destroy := newDatabase(ctx)
		defer destroy()

		db, err := database.Open()
		Expect(err).ShouldNot(HaveOccurred())
		defer db.Close()

		Expect(CreateSchema(ctx, db)).To(Succeed())
		Expect(CreateSchema(ctx, db)).To(Succeed())
		Expect(DropSchema(ctx, db)).To(Succeed())
		Expect(DropSchema(ctx, db)).To(Succeed())
	})
})
