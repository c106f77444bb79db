package providertest

import (
	"time"

	"github.com/dogmatiq/accord/persistence"
	"github.com/dogmatiq/accord/process"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

// declareProcessOperationTests declares a functional test-suite for
// persistence operations related to processes.
func declareProcessOperationTests(tc *TestContext) {
	ginkgo.Context("process operations", func() {
		var (
			dataStore persistence.DataStore
			tearDown  func()
		)

		ginkgo.BeforeEach(func() {
			dataStore, tearDown = tc.SetupDataStore()
		})

		ginkgo.AfterEach(func() {
			tearDown()
		})

		ginkgo.Describe("type persistence.SaveProcess", func() {
			ginkgo.When("the process does not exist", func() {
				ginkgo.It("saves the process with a revision of 1", func() {
					persist(
						tc,
						dataStore,
						persistence.SaveProcess{
							Record: newRecord("<id>", process.NegotiationType, process.Initial),
						},
					)

					r, ok := loadProcess(tc, dataStore, "<id>")
					gomega.Expect(ok).To(gomega.BeTrue())
					gomega.Expect(r.Revision).To(gomega.BeEquivalentTo(1))
				})

				ginkgo.It("saves every field of the record", func() {
					expect := newRecord("<id>", process.TransferType, process.Started)
					expect.StateTimestamp = epoch.Add(1500 * time.Microsecond)
					expect.Lease = process.Lease{Owner: "<worker>", ExpiresAt: epoch.Add(time.Minute)}
					expect.RetryCount = 3
					expect.ErrorDetail = "<error>"
					expect.CorrelationID = "<peer-id>"
					expect.PendingCommand = &process.Command{
						Name:   process.SuspendCommand,
						Reason: "<reason>",
					}
					expect.Awaiting = true

					persist(tc, dataStore, persistence.SaveProcess{Record: expect})

					r, ok := loadProcess(tc, dataStore, "<id>")
					gomega.Expect(ok).To(gomega.BeTrue())

					expect.Revision = 1
					expectRecord(r, expect)
				})

				ginkgo.It("does not save the process when an OCC conflict occurs", func() {
					r := newRecord("<id>", process.NegotiationType, process.Initial)
					r.Revision = 123

					op := persistence.SaveProcess{Record: r}
					err := dataStore.Persist(tc.Context, persistence.Batch{op})
					gomega.Expect(err).To(gomega.Equal(
						persistence.ConflictError{
							Cause: op,
						},
					))

					_, ok := loadProcess(tc, dataStore, "<id>")
					gomega.Expect(ok).To(gomega.BeFalse())
				})

				ginkgo.It("causes a conflict if another process of the same type has the same correlation ID", func() {
					existing := newRecord("<id-1>", process.NegotiationType, process.Requested)
					existing.CorrelationID = "<peer-id>"
					save(tc, dataStore, existing)

					r := newRecord("<id-2>", process.NegotiationType, process.Requested)
					r.CorrelationID = "<peer-id>"

					op := persistence.SaveProcess{Record: r}
					err := dataStore.Persist(tc.Context, persistence.Batch{op})
					gomega.Expect(err).To(gomega.Equal(
						persistence.ConflictError{
							Cause: op,
						},
					))
				})

				ginkgo.It("allows processes of different types to share a correlation ID", func() {
					r1 := newRecord("<id-1>", process.NegotiationType, process.Requested)
					r1.CorrelationID = "<peer-id>"
					save(tc, dataStore, r1)

					r2 := newRecord("<id-2>", process.TransferType, process.Initial)
					r2.CorrelationID = "<peer-id>"
					save(tc, dataStore, r2)
				})
			})

			ginkgo.When("the process exists", func() {
				var record persistence.ProcessRecord

				ginkgo.BeforeEach(func() {
					record = save(
						tc,
						dataStore,
						newRecord("<id>", process.NegotiationType, process.Initial),
					)
				})

				ginkgo.It("increments the revision even if nothing has changed", func() {
					save(tc, dataStore, record)

					r, _ := loadProcess(tc, dataStore, "<id>")
					gomega.Expect(r.Revision).To(gomega.BeEquivalentTo(2))
				})

				ginkgo.It("updates the record", func() {
					record.State = process.Requesting
					record.StateTimestamp = epoch.Add(time.Hour)
					record.Packet.Data = []byte(`{"role":"provider"}`)
					save(tc, dataStore, record)

					r, _ := loadProcess(tc, dataStore, "<id>")
					record.Revision = 2
					expectRecord(r, record)
				})

				ginkgo.It("breaks the lease if the updated record has none", func() {
					record.Lease = process.Lease{Owner: "<worker>", ExpiresAt: epoch.Add(time.Hour)}
					record = save(tc, dataStore, record)

					record.Lease = process.Lease{}
					save(tc, dataStore, record)

					r, _ := loadProcess(tc, dataStore, "<id>")
					gomega.Expect(r.Lease.IsZero()).To(gomega.BeTrue())
				})

				ginkgo.It("clears the pending command if the updated record has none", func() {
					record.PendingCommand = &process.Command{Name: process.CancelCommand}
					record = save(tc, dataStore, record)

					record.PendingCommand = nil
					save(tc, dataStore, record)

					r, _ := loadProcess(tc, dataStore, "<id>")
					gomega.Expect(r.PendingCommand).To(gomega.BeNil())
				})

				ginkgo.DescribeTable(
					"it does not save the process when an OCC conflict occurs",
					func(conflictingRevision int) {
						// Update the process once more so that it's up to
						// revision 2. Otherwise we can't test for 1 as a
						// too-low value.
						record = save(tc, dataStore, record)

						r := record
						r.Revision = uint64(conflictingRevision)
						r.State = process.Terminated

						op := persistence.SaveProcess{Record: r}
						err := dataStore.Persist(tc.Context, persistence.Batch{op})
						gomega.Expect(err).To(gomega.Equal(
							persistence.ConflictError{
								Cause: op,
							},
						))

						x, _ := loadProcess(tc, dataStore, "<id>")
						gomega.Expect(x.State).To(gomega.Equal(process.Initial))
						gomega.Expect(x.Revision).To(gomega.BeEquivalentTo(2))
					},
					ginkgo.Entry("zero", 0),
					ginkgo.Entry("too low", 1),
					ginkgo.Entry("too high", 100),
				)

				ginkgo.It("rejects the entire batch if any operation conflicts", func() {
					other := newRecord("<other>", process.NegotiationType, process.Initial)
					other.Revision = 5

					record.State = process.Requesting

					err := dataStore.Persist(tc.Context, persistence.Batch{
						persistence.SaveProcess{Record: record},
						persistence.SaveProcess{Record: other},
					})
					gomega.Expect(err).To(gomega.BeAssignableToTypeOf(persistence.ConflictError{}))

					r, _ := loadProcess(tc, dataStore, "<id>")
					gomega.Expect(r.State).To(gomega.Equal(process.Initial))
				})
			})
		})
	})
}
