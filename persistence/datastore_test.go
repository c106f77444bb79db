package persistence_test

import (
	"context"

	. "github.com/dogmatiq/accord/persistence"
	"github.com/dogmatiq/accord/persistence/memorypersistence"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type DataStoreHandle", func() {
	var (
		ctx    context.Context
		handle *DataStoreHandle
	)

	BeforeEach(func() {
		ctx = context.Background()
		handle = &DataStoreHandle{
			Provider: &memorypersistence.Provider{},
			Key:      "<node>",
		}

		DeferCleanup(handle.Close)
	})

	Describe("func Get()", func() {
		It("opens the data-store once", func() {
			ds1, err := handle.Get(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			ds2, err := handle.Get(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ds2).To(BeIdenticalTo(ds1))
		})
	})

	Describe("func Close()", func() {
		It("closes the data-store", func() {
			ds, err := handle.Get(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			err = handle.Close()
			Expect(err).ShouldNot(HaveOccurred())

			err = ds.Persist(ctx, nil)
			Expect(err).To(Equal(ErrDataStoreClosed))
		})

		It("does nothing if the data-store was never opened", func() {
			Expect(handle.Close()).To(Succeed())
		})
	})
})
