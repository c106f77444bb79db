package providertest

import (
	"github.com/dogmatiq/accord/persistence"
	"github.com/dogmatiq/accord/process"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

// declareProviderTests declares tests for the provider and data-store life
// cycle.
func declareProviderTests(tc *TestContext) {
	ginkgo.Describe("type persistence.Provider", func() {
		ginkgo.Describe("func Open()", func() {
			ginkgo.It("returns a data-store", func() {
				ds, tearDown := tc.SetupDataStore()
				defer tearDown()

				gomega.Expect(ds).NotTo(gomega.BeNil())
			})

			ginkgo.It("returns ErrDataStoreLocked if the data-store is already open", func() {
				if !tc.Out.IsExclusive {
					ginkgo.Skip("provider does not open data-stores exclusively")
				}

				p, close := tc.Out.NewProvider()
				if close != nil {
					defer close()
				}

				ds, err := p.Open(tc.Context, DefaultConnectorKey)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				defer ds.Close()

				_, err = p.Open(tc.Context, DefaultConnectorKey)
				gomega.Expect(err).To(gomega.Equal(persistence.ErrDataStoreLocked))
			})

			ginkgo.It("allows the data-store to be re-opened after it is closed", func() {
				p, close := tc.Out.NewProvider()
				if close != nil {
					defer close()
				}

				ds, err := p.Open(tc.Context, DefaultConnectorKey)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(ds.Close()).To(gomega.Succeed())

				ds, err = p.Open(tc.Context, DefaultConnectorKey)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(ds.Close()).To(gomega.Succeed())
			})

			ginkgo.It("shares data between instances of a shared provider", func() {
				if !tc.Out.IsShared {
					ginkgo.Skip("provider instances do not share data")
				}

				ds1, tearDown1 := tc.SetupDataStore()
				persist(tc, ds1, persistence.SaveProcess{
					Record: newRecord("<id>", process.NegotiationType, process.Initial),
				})
				tearDown1()

				ds2, tearDown2 := tc.SetupDataStore()
				defer tearDown2()

				_, ok := loadProcess(tc, ds2, "<id>")
				gomega.Expect(ok).To(gomega.BeTrue())
			})
		})
	})

	ginkgo.Describe("type persistence.DataStore", func() {
		ginkgo.Describe("func Close()", func() {
			ginkgo.It("returns ErrDataStoreClosed if the data-store is already closed", func() {
				ds, tearDown := tc.SetupDataStore()
				defer tearDown()

				gomega.Expect(ds.Close()).To(gomega.Succeed())
				gomega.Expect(ds.Close()).To(gomega.Equal(persistence.ErrDataStoreClosed))
			})

			ginkgo.It("causes Persist() to return ErrDataStoreClosed", func() {
				ds, tearDown := tc.SetupDataStore()
				defer tearDown()

				gomega.Expect(ds.Close()).To(gomega.Succeed())

				err := ds.Persist(tc.Context, persistence.Batch{
					persistence.SaveProcess{
						Record: newRecord("<id>", process.NegotiationType, process.Initial),
					},
				})
				gomega.Expect(err).To(gomega.Equal(persistence.ErrDataStoreClosed))
			})
		})
	})
}
