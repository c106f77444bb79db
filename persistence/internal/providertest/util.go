package providertest

import (
	"time"

	"github.com/dogmatiq/accord/persistence"
	"github.com/dogmatiq/accord/process"
	"github.com/dogmatiq/marshalkit"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jmalloc/gomegax"
	"github.com/onsi/gomega"
)

// epoch is a fixed point in time used to build process records. It has no
// sub-microsecond component so that it survives every provider's encoding.
var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// newRecord returns a new record with the given ID, type and state, due at
// epoch.
func newRecord(id string, t process.Type, s process.State) persistence.ProcessRecord {
	return persistence.ProcessRecord{
		ID:             id,
		Type:           t,
		State:          s,
		StateTimestamp: epoch,
		Packet: marshalkit.Packet{
			MediaType: "application/json; type=Negotiation",
			Data:      []byte(`{"role":"consumer"}`),
		},
	}
}

// persist persists a batch of operations and asserts that there was no
// failure.
func persist(
	tc *TestContext,
	ds persistence.DataStore,
	batch ...persistence.Operation,
) {
	err := ds.Persist(tc.Context, batch)
	gomega.ExpectWithOffset(1, err).ShouldNot(gomega.HaveOccurred())
}

// save persists r and returns it with the persisted revision.
func save(
	tc *TestContext,
	ds persistence.DataStore,
	r persistence.ProcessRecord,
) persistence.ProcessRecord {
	err := ds.Persist(tc.Context, persistence.Batch{
		persistence.SaveProcess{Record: r},
	})
	gomega.ExpectWithOffset(1, err).ShouldNot(gomega.HaveOccurred())

	r.Revision++
	return r
}

// loadProcess loads a process and asserts that there was no failure.
func loadProcess(
	tc *TestContext,
	ds persistence.DataStore,
	id string,
) (persistence.ProcessRecord, bool) {
	r, ok, err := ds.LoadProcess(tc.Context, id)
	gomega.ExpectWithOffset(1, err).ShouldNot(gomega.HaveOccurred())
	return r, ok
}

// ids returns the IDs of the given records.
func ids(records []persistence.ProcessRecord) []string {
	var ids []string
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}

// expectRecord asserts that two records are equivalent, comparing times by
// instant rather than by representation.
func expectRecord(actual, expected persistence.ProcessRecord) {
	gomega.ExpectWithOffset(1, actual).To(
		gomegax.EqualX(
			expected,
			cmp.Comparer(func(a, b time.Time) bool {
				return a.Equal(b)
			}),
			cmpopts.EquateEmpty(),
		),
	)
}
