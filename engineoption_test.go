package accord

import (
	"context"
	"time"

	"github.com/dogmatiq/accord/credential"
	"github.com/dogmatiq/accord/executor"
	"github.com/dogmatiq/accord/persistence/memorypersistence"
	"github.com/dogmatiq/accord/policy"
	"github.com/dogmatiq/accord/process"
	"github.com/dogmatiq/accord/protocol"
	"github.com/dogmatiq/accord/retry"
	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger/backoff"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
)

var _ = Describe("func WithPersistence()", func() {
	It("sets the persistence provider", func() {
		p := &memorypersistence.Provider{}

		opts := resolveEngineOptions(
			WithPersistence(p),
		)

		Expect(opts.PersistenceProvider).To(BeIdenticalTo(p))
	})

	It("uses the default if the provider is nil", func() {
		opts := resolveEngineOptions(
			WithPersistence(nil),
		)

		Expect(opts.PersistenceProvider).To(Equal(DefaultPersistenceProvider))
	})
})

var _ = Describe("func WithConnectorID()", func() {
	It("is used as the default address and participant ID", func() {
		opts := resolveEngineOptions(
			WithConnectorID("<connector>"),
		)

		Expect(opts.ConnectorID).To(Equal("<connector>"))
		Expect(opts.Address).To(Equal("<connector>"))
		Expect(opts.ParticipantID).To(Equal("<connector>"))
	})

	It("does not override an explicit address or participant ID", func() {
		opts := resolveEngineOptions(
			WithConnectorID("<connector>"),
			WithAddress("<address>"),
			WithParticipantID("<participant>"),
		)

		Expect(opts.Address).To(Equal("<address>"))
		Expect(opts.ParticipantID).To(Equal("<participant>"))
	})

	It("uses the default if the ID is empty", func() {
		opts := resolveEngineOptions(
			WithConnectorID(""),
		)

		Expect(opts.ConnectorID).To(Equal(DefaultConnectorID))
	})
})

var _ = Describe("func WithNodeID()", func() {
	It("sets the node ID", func() {
		opts := resolveEngineOptions(
			WithNodeID("<node>"),
		)

		Expect(opts.NodeID).To(Equal("<node>"))
	})

	It("derives a default from the host and process", func() {
		opts := resolveEngineOptions()

		Expect(opts.NodeID).To(Equal(defaultNodeID()))
	})
})

var _ = Describe("func WithHandlerTimeout()", func() {
	It("sets the handler timeout", func() {
		opts := resolveEngineOptions(
			WithHandlerTimeout(10 * time.Second),
		)

		Expect(opts.HandlerTimeout).To(Equal(10 * time.Second))
	})

	It("uses the default if the duration is zero", func() {
		opts := resolveEngineOptions(
			WithHandlerTimeout(0),
		)

		Expect(opts.HandlerTimeout).To(Equal(DefaultHandlerTimeout))
	})

	It("defaults to ten seconds", func() {
		opts := resolveEngineOptions()
		Expect(opts.HandlerTimeout).To(Equal(10 * time.Second))
	})

	It("panics if the duration is less than zero", func() {
		Expect(func() {
			WithHandlerTimeout(-1)
		}).To(Panic())
	})
})

var _ = Describe("func WithLeaseDuration()", func() {
	It("sets the lease duration", func() {
		opts := resolveEngineOptions(
			WithLeaseDuration(10 * time.Minute),
		)

		Expect(opts.LeaseDuration).To(Equal(10 * time.Minute))
	})

	It("panics if the lease would expire before the handler times out", func() {
		Expect(func() {
			resolveEngineOptions(
				WithHandlerTimeout(1*time.Minute),
				WithLeaseDuration(1*time.Minute),
			)
		}).To(PanicWith("lease duration must be longer than the handler timeout"))
	})
})

var _ = Describe("func WithBackoff()", func() {
	It("sets the retry policy", func() {
		p := retry.ExponentialBackoff{Min: 1 * time.Minute}

		opts := resolveEngineOptions(
			WithBackoff(p),
		)

		Expect(opts.Backoff).To(Equal(p))
	})

	It("uses the default if the policy is nil", func() {
		opts := resolveEngineOptions(
			WithBackoff(nil),
		)

		Expect(opts.Backoff).To(Equal(DefaultBackoff))
	})
})

var _ = Describe("func WithCommandBackoff()", func() {
	It("sets the backoff strategy", func() {
		opts := resolveEngineOptions(
			WithCommandBackoff(backoff.Constant(10 * time.Second)),
		)

		Expect(opts.CommandBackoff(nil, 1)).To(Equal(10 * time.Second))
	})

	It("uses the default if the strategy is nil", func() {
		opts := resolveEngineOptions(
			WithCommandBackoff(nil),
		)

		Expect(opts.CommandBackoff).ToNot(BeNil())
	})
})

var _ = Describe("func WithMaxRetries()", func() {
	It("sets the retry limit", func() {
		opts := resolveEngineOptions(
			WithMaxRetries(3),
		)

		Expect(opts.MaxRetries).To(BeEquivalentTo(3))
	})

	It("uses the default if the limit is zero", func() {
		opts := resolveEngineOptions(
			WithMaxRetries(0),
		)

		Expect(opts.MaxRetries).To(Equal(DefaultMaxRetries))
	})
})

var _ = Describe("func WithExecutorRegistry()", func() {
	It("is used by the default selector", func() {
		r := &executor.MemoryRegistry{}

		opts := resolveEngineOptions(
			WithExecutorRegistry(r),
		)

		Expect(opts.Registry).To(BeIdenticalTo(r))
		Expect(opts.Selector).To(Equal(&executor.Selector{Registry: r}))
	})
})

var _ = Describe("func WithDispatcher()", func() {
	It("fails every send if no dispatcher is configured", func() {
		opts := resolveEngineOptions()

		err := opts.Dispatcher.Send(context.Background(), "<peer>", protocol.Message{})
		Expect(err).To(Equal(errUnconfigured))
	})
})

var _ = Describe("func WithMarshaler()", func() {
	It("sets the marshaler", func() {
		m := process.NewMarshaler()

		opts := resolveEngineOptions(
			WithMarshaler(m),
		)

		Expect(opts.Marshaler).To(BeIdenticalTo(m))
	})

	It("constructs a default if the marshaler is nil", func() {
		opts := resolveEngineOptions(
			WithMarshaler(nil),
		)

		Expect(opts.Marshaler).NotTo(BeNil())
	})
})

var _ = Describe("func WithCredentials()", func() {
	It("sets the issuer", func() {
		i := &credential.OpaqueIssuer{}

		opts := resolveEngineOptions(
			WithCredentials(i),
		)

		Expect(opts.Credentials).To(BeIdenticalTo(i))
	})

	It("uses an opaque issuer by default", func() {
		opts := resolveEngineOptions()

		Expect(opts.Credentials).To(BeAssignableToTypeOf(&credential.OpaqueIssuer{}))
	})
})

var _ = Describe("func WithSecrets()", func() {
	It("sets the secret store", func() {
		s := &credential.MemorySecretStore{}

		opts := resolveEngineOptions(
			WithSecrets(s),
		)

		Expect(opts.Secrets).To(BeIdenticalTo(s))
	})

	It("reads secrets from the environment by default", func() {
		opts := resolveEngineOptions()

		Expect(opts.Secrets).To(BeAssignableToTypeOf(credential.ConfigSecretStore{}))
		Expect(opts.Secrets.(credential.ConfigSecretStore).Prefix).To(Equal("ACCORD_SECRET_"))
	})
})

var _ = Describe("func WithPolicyEvaluator()", func() {
	It("sets the evaluator", func() {
		e := policy.EvaluatorFunc(func(context.Context, policy.Subject) (policy.Decision, error) {
			return policy.Permit, nil
		})

		opts := resolveEngineOptions(
			WithPolicyEvaluator(e),
		)

		Expect(opts.PolicyEvaluator).To(BeAssignableToTypeOf(e))
	})

	It("checks agreement expiry by default", func() {
		opts := resolveEngineOptions()

		Expect(opts.PolicyEvaluator).To(Equal(policy.ExpiryEvaluator{}))
	})
})

var _ = Describe("handler intervals", func() {
	It("sets the agreement validity and polling intervals", func() {
		opts := resolveEngineOptions(
			WithAgreementValidity(24*time.Hour),
			WithStatusInterval(5*time.Second),
			WithMonitorInterval(1*time.Minute),
		)

		Expect(opts.AgreementValidity).To(Equal(24 * time.Hour))
		Expect(opts.StatusInterval).To(Equal(5 * time.Second))
		Expect(opts.MonitorInterval).To(Equal(1 * time.Minute))
	})

	DescribeTable(
		"it panics if a duration is negative",
		func(fn func()) {
			Expect(fn).To(PanicWith("duration must not be negative"))
		},
		Entry("agreement validity", func() { WithAgreementValidity(-1) }),
		Entry("status interval", func() { WithStatusInterval(-1) }),
		Entry("monitor interval", func() { WithMonitorInterval(-1) }),
	)
})

var _ = Describe("func WithMetrics()", func() {
	It("registers the engine's collectors", func() {
		r := prometheus.NewRegistry()

		opts := resolveEngineOptions(
			WithMetrics(r),
		)

		Expect(opts.Metrics).NotTo(BeNil())
	})

	It("collects no metrics if the option is omitted", func() {
		opts := resolveEngineOptions()

		Expect(opts.Metrics).To(BeNil())
	})
})

var _ = Describe("func WithLogger()", func() {
	It("sets the logger", func() {
		opts := resolveEngineOptions(
			WithLogger(logging.DebugLogger),
		)

		Expect(opts.Logger).To(BeIdenticalTo(logging.DebugLogger))
	})

	It("uses the default if the logger is nil", func() {
		opts := resolveEngineOptions(
			WithLogger(nil),
		)

		Expect(opts.Logger).To(Equal(DefaultLogger))
	})
})
