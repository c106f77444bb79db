package providertest

import (
	"context"
	"time"

	"github.com/dogmatiq/accord/persistence"
	"github.com/dogmatiq/accord/process"
	"github.com/dogmatiq/marshalkit"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

// DefaultTestTimeout bounds each test when Out.TestTimeout is zero.
const DefaultTestTimeout = 10 * time.Second

// DefaultConnectorKey is the connector key of every data-store opened by the
// suite.
const DefaultConnectorKey = "a96fefa1-2630-467a-b756-db2e428a56fd"

// In holds the values the suite hands to the provider under test before each
// test.
type In struct {
	Marshaler marshalkit.Marshaler
}

// Out describes the provider under test.
type Out struct {
	// NewProvider returns a provider and an optional function that releases
	// any resources it holds.
	NewProvider func() (p persistence.Provider, close func())

	// IsShared indicates that separate provider values see the same
	// processes.
	IsShared bool

	// IsExclusive indicates that a connector key can only be open once at a
	// time.
	IsExclusive bool

	// TestTimeout overrides DefaultTestTimeout.
	TestTimeout time.Duration
}

// TestContext is the state shared by the tests for a single provider.
type TestContext struct {
	Context context.Context
	In      In
	Out     Out
}

// SetupDataStore opens the data-store for DefaultConnectorKey using a fresh
// provider. The returned function closes both.
func (tc *TestContext) SetupDataStore() (persistence.DataStore, func()) {
	p, release := tc.Out.NewProvider()
	if release == nil {
		release = func() {}
	}

	ds, err := p.Open(tc.Context, DefaultConnectorKey)
	if err != nil {
		release()
		gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
	}

	return ds, func() {
		ds.Close()
		release()
	}
}

// Declare adds the provider conformance tests to the enclosing container.
//
// before is called ahead of each test to construct the provider, after is
// called once the test finishes and may be nil.
func Declare(
	before func(context.Context, In) Out,
	after func(),
) {
	tc := &TestContext{}
	var cancel context.CancelFunc

	ginkgo.Context("provider conformance", func() {
		ginkgo.BeforeEach(func() {
			ctx, cancelSetup := context.WithTimeout(context.Background(), DefaultTestTimeout)
			defer cancelSetup()

			tc.In = In{Marshaler: process.NewMarshaler()}
			tc.Out = before(ctx, tc.In)

			timeout := tc.Out.TestTimeout
			if timeout <= 0 {
				timeout = DefaultTestTimeout
			}

			tc.Context, cancel = context.WithTimeout(context.Background(), timeout)
		})

		ginkgo.AfterEach(func() {
			if after != nil {
				after()
			}

			cancel()
		})

		declareProviderTests(tc)
		declareProcessOperationTests(tc)
		declareProcessRepositoryTests(tc)
	})
}
