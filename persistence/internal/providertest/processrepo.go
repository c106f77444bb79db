package providertest

import (
	"fmt"
	"time"

	"github.com/dogmatiq/accord/persistence"
	"github.com/dogmatiq/accord/process"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

// declareProcessRepositoryTests declares a functional test-suite for a
// specific persistence.ProcessRepository implementation.
func declareProcessRepositoryTests(tc *TestContext) {
	ginkgo.Describe("type persistence.ProcessRepository", func() {
		var (
			dataStore persistence.DataStore
			tearDown  func()
			active    []process.State
		)

		ginkgo.BeforeEach(func() {
			dataStore, tearDown = tc.SetupDataStore()
			active = []process.State{process.Initial, process.Requesting, process.Requested}
		})

		ginkgo.AfterEach(func() {
			tearDown()
		})

		ginkgo.Describe("func LoadProcess()", func() {
			ginkgo.It("returns false if the process does not exist", func() {
				_, ok := loadProcess(tc, dataStore, "<unknown>")
				gomega.Expect(ok).To(gomega.BeFalse())
			})
		})

		ginkgo.Describe("func LoadProcessByCorrelationID()", func() {
			ginkgo.BeforeEach(func() {
				r := newRecord("<id>", process.NegotiationType, process.Requested)
				r.CorrelationID = "<peer-id>"
				save(tc, dataStore, r)
			})

			ginkgo.It("returns the process with the given correlation ID", func() {
				r, ok, err := dataStore.LoadProcessByCorrelationID(tc.Context, process.NegotiationType, "<peer-id>")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(ok).To(gomega.BeTrue())
				gomega.Expect(r.ID).To(gomega.Equal("<id>"))
			})

			ginkgo.It("returns false if there is no such process", func() {
				_, ok, err := dataStore.LoadProcessByCorrelationID(tc.Context, process.NegotiationType, "<unknown>")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(ok).To(gomega.BeFalse())
			})

			ginkgo.It("does not return processes of other types", func() {
				_, ok, err := dataStore.LoadProcessByCorrelationID(tc.Context, process.TransferType, "<peer-id>")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(ok).To(gomega.BeFalse())
			})

			ginkgo.It("reflects changes to the correlation ID", func() {
				r, _ := loadProcess(tc, dataStore, "<id>")
				r.CorrelationID = "<new-peer-id>"
				save(tc, dataStore, r)

				_, ok, err := dataStore.LoadProcessByCorrelationID(tc.Context, process.NegotiationType, "<peer-id>")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(ok).To(gomega.BeFalse())

				x, ok, err := dataStore.LoadProcessByCorrelationID(tc.Context, process.NegotiationType, "<new-peer-id>")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(ok).To(gomega.BeTrue())
				gomega.Expect(x.ID).To(gomega.Equal("<id>"))
			})
		})

		ginkgo.Describe("func LoadDueProcesses()", func() {
			now := epoch.Add(time.Hour)

			load := func(n int) []string {
				records, err := dataStore.LoadDueProcesses(tc.Context, process.NegotiationType, active, now, n)
				gomega.ExpectWithOffset(1, err).ShouldNot(gomega.HaveOccurred())
				return ids(records)
			}

			ginkgo.It("returns nothing if there are no processes", func() {
				gomega.Expect(load(10)).To(gomega.BeEmpty())
			})

			ginkgo.It("returns due processes oldest first", func() {
				for i, offset := range []time.Duration{3, 1, 2} {
					r := newRecord(fmt.Sprintf("<id-%d>", i), process.NegotiationType, process.Initial)
					r.StateTimestamp = epoch.Add(offset * time.Minute)
					save(tc, dataStore, r)
				}

				gomega.Expect(load(10)).To(gomega.Equal([]string{"<id-1>", "<id-2>", "<id-0>"}))
			})

			ginkgo.It("returns at most n processes", func() {
				for i := 0; i < 5; i++ {
					r := newRecord(fmt.Sprintf("<id-%d>", i), process.NegotiationType, process.Initial)
					r.StateTimestamp = epoch.Add(time.Duration(i) * time.Minute)
					save(tc, dataStore, r)
				}

				gomega.Expect(load(2)).To(gomega.Equal([]string{"<id-0>", "<id-1>"}))
			})

			ginkgo.It("excludes processes that are not yet due", func() {
				r := newRecord("<future>", process.NegotiationType, process.Initial)
				r.StateTimestamp = now.Add(time.Second)
				save(tc, dataStore, r)

				save(tc, dataStore, newRecord("<due>", process.NegotiationType, process.Initial))

				gomega.Expect(load(10)).To(gomega.Equal([]string{"<due>"}))
			})

			ginkgo.It("never returns finished processes", func() {
				save(tc, dataStore, newRecord("<finalized>", process.NegotiationType, process.Finalized))
				save(tc, dataStore, newRecord("<failed>", process.NegotiationType, process.FatalError))

				r := save(tc, dataStore, newRecord("<terminated>", process.NegotiationType, process.Initial))
				r.State = process.Terminated
				save(tc, dataStore, r)

				save(tc, dataStore, newRecord("<due>", process.NegotiationType, process.Initial))

				records, err := dataStore.LoadDueProcesses(
					tc.Context,
					process.NegotiationType,
					[]process.State{process.Initial, process.Finalized, process.Terminated, process.FatalError},
					now,
					10,
				)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(ids(records)).To(gomega.Equal([]string{"<due>"}))
			})

			ginkgo.It("only returns processes of the requested type", func() {
				save(tc, dataStore, newRecord("<transfer>", process.TransferType, process.Initial))
				save(tc, dataStore, newRecord("<negotiation>", process.NegotiationType, process.Initial))

				gomega.Expect(load(10)).To(gomega.Equal([]string{"<negotiation>"}))
			})

			ginkgo.It("includes processes that are due exactly now", func() {
				r := newRecord("<id>", process.NegotiationType, process.Initial)
				r.StateTimestamp = now
				save(tc, dataStore, r)

				gomega.Expect(load(10)).To(gomega.Equal([]string{"<id>"}))
			})

			ginkgo.It("excludes processes with an active lease", func() {
				r := newRecord("<leased>", process.NegotiationType, process.Initial)
				r.Lease = process.Lease{Owner: "<worker>", ExpiresAt: now.Add(time.Minute)}
				save(tc, dataStore, r)

				gomega.Expect(load(10)).To(gomega.BeEmpty())
			})

			ginkgo.It("includes processes with an expired lease", func() {
				r := newRecord("<expired>", process.NegotiationType, process.Initial)
				r.Lease = process.Lease{Owner: "<worker>", ExpiresAt: now.Add(-time.Minute)}
				save(tc, dataStore, r)

				gomega.Expect(load(10)).To(gomega.Equal([]string{"<expired>"}))
			})

			ginkgo.It("excludes processes of other types", func() {
				save(tc, dataStore, newRecord("<transfer>", process.TransferType, process.Initial))

				gomega.Expect(load(10)).To(gomega.BeEmpty())
			})

			ginkgo.It("excludes processes in other states", func() {
				save(tc, dataStore, newRecord("<finalized>", process.NegotiationType, process.Finalized))

				gomega.Expect(load(10)).To(gomega.BeEmpty())
			})

			ginkgo.It("moves updated processes to the back of the queue", func() {
				first := save(tc, dataStore, newRecord("<first>", process.NegotiationType, process.Initial))

				r := newRecord("<second>", process.NegotiationType, process.Initial)
				r.StateTimestamp = epoch.Add(time.Minute)
				save(tc, dataStore, r)

				first.State = process.Requesting
				first.StateTimestamp = epoch.Add(2 * time.Minute)
				save(tc, dataStore, first)

				gomega.Expect(load(10)).To(gomega.Equal([]string{"<second>", "<first>"}))
			})
		})

		ginkgo.Describe("func LoadExpiredLeases()", func() {
			now := epoch.Add(time.Hour)

			ginkgo.It("returns processes whose lease has expired, earliest expiry first", func() {
				for i, offset := range []time.Duration{-1, -3, 1} {
					r := newRecord(fmt.Sprintf("<id-%d>", i), process.TransferType, process.Started)
					r.Lease = process.Lease{Owner: "<worker>", ExpiresAt: now.Add(offset * time.Minute)}
					save(tc, dataStore, r)
				}

				save(tc, dataStore, newRecord("<unleased>", process.TransferType, process.Started))

				records, err := dataStore.LoadExpiredLeases(tc.Context, now, 10)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(ids(records)).To(gomega.Equal([]string{"<id-1>", "<id-0>"}))
			})

			ginkgo.It("returns at most n processes", func() {
				for i := 0; i < 3; i++ {
					r := newRecord(fmt.Sprintf("<id-%d>", i), process.TransferType, process.Started)
					r.Lease = process.Lease{Owner: "<worker>", ExpiresAt: epoch.Add(time.Duration(i) * time.Minute)}
					save(tc, dataStore, r)
				}

				records, err := dataStore.LoadExpiredLeases(tc.Context, now, 1)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(ids(records)).To(gomega.Equal([]string{"<id-0>"}))
			})
		})

		ginkgo.Describe("func LoadProcesses()", func() {
			ginkgo.BeforeEach(func() {
				save(tc, dataStore, newRecord("<a>", process.NegotiationType, process.Finalized))
				save(tc, dataStore, newRecord("<b>", process.TransferType, process.Started))
				save(tc, dataStore, newRecord("<c>", process.TransferType, process.Completed))
				save(tc, dataStore, newRecord("<d>", process.NegotiationType, process.Requested))
			})

			load := func(q persistence.ProcessQuery) []string {
				records, err := dataStore.LoadProcesses(tc.Context, q)
				gomega.ExpectWithOffset(1, err).ShouldNot(gomega.HaveOccurred())
				return ids(records)
			}

			ginkgo.It("returns all processes ordered by ID", func() {
				gomega.Expect(load(persistence.ProcessQuery{})).To(gomega.Equal([]string{"<a>", "<b>", "<c>", "<d>"}))
			})

			ginkgo.It("filters by type", func() {
				gomega.Expect(load(persistence.ProcessQuery{
					Type: process.TransferType,
				})).To(gomega.Equal([]string{"<b>", "<c>"}))
			})

			ginkgo.It("filters by state", func() {
				gomega.Expect(load(persistence.ProcessQuery{
					States: []process.State{process.Started, process.Requested},
				})).To(gomega.Equal([]string{"<b>", "<d>"}))
			})

			ginkgo.It("pages through results", func() {
				gomega.Expect(load(persistence.ProcessQuery{
					Limit: 2,
				})).To(gomega.Equal([]string{"<a>", "<b>"}))

				gomega.Expect(load(persistence.ProcessQuery{
					After: "<b>",
					Limit: 2,
				})).To(gomega.Equal([]string{"<c>", "<d>"}))

				gomega.Expect(load(persistence.ProcessQuery{
					After: "<d>",
					Limit: 2,
				})).To(gomega.BeEmpty())
			})
		})
	})
}
