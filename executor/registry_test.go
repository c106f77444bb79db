package executor_test

import (
	"context"
	"time"

	. "github.com/dogmatiq/accord/executor"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type MemoryRegistry", func() {
	var (
		ctx      context.Context
		registry *MemoryRegistry
		now      time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		registry = &MemoryRegistry{}
		now = time.Now()

		err := registry.Register(ctx, Registration{
			ID:           "<executor-b>",
			Capabilities: []string{"HttpData-PUSH"},
			Healthy:      true,
		})
		Expect(err).ShouldNot(HaveOccurred())

		err = registry.Register(ctx, Registration{
			ID:           "<executor-a>",
			Capabilities: []string{"HttpData-PULL"},
		})
		Expect(err).ShouldNot(HaveOccurred())
	})

	Describe("func Executors()", func() {
		It("returns the executors ordered by ID", func() {
			executors, err := registry.Executors(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(executors).To(HaveLen(2))
			Expect(executors[0].ID).To(Equal("<executor-a>"))
			Expect(executors[1].ID).To(Equal("<executor-b>"))
		})

		It("returns copies of the registrations", func() {
			executors, err := registry.Executors(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			executors[0].Capabilities[0] = "<modified>"

			x, ok, err := registry.Executor(ctx, "<executor-a>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(x.Capabilities).To(ConsistOf("HttpData-PULL"))
		})
	})

	Describe("func Heartbeat()", func() {
		It("updates the last heartbeat time", func() {
			err := registry.Heartbeat(ctx, "<executor-a>", now)
			Expect(err).ShouldNot(HaveOccurred())

			x, _, err := registry.Executor(ctx, "<executor-a>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(x.LastHeartbeat).To(BeTemporally("==", now))
		})

		It("ignores heartbeats that are older than the last one", func() {
			err := registry.Heartbeat(ctx, "<executor-a>", now)
			Expect(err).ShouldNot(HaveOccurred())

			err = registry.Heartbeat(ctx, "<executor-a>", now.Add(-time.Second))
			Expect(err).ShouldNot(HaveOccurred())

			x, _, err := registry.Executor(ctx, "<executor-a>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(x.LastHeartbeat).To(BeTemporally("==", now))
		})

		It("returns an error if the executor is not registered", func() {
			err := registry.Heartbeat(ctx, "<unknown>", now)
			Expect(err).To(Equal(UnknownExecutorError{ExecutorID: "<unknown>"}))
		})
	})

	Describe("func SetHealth()", func() {
		It("changes the health of the executor", func() {
			err := registry.SetHealth(ctx, "<executor-b>", false)
			Expect(err).ShouldNot(HaveOccurred())

			x, _, err := registry.Executor(ctx, "<executor-b>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(x.Healthy).To(BeFalse())
		})
	})

	Describe("func Deregister()", func() {
		It("removes the executor", func() {
			err := registry.Deregister(ctx, "<executor-b>")
			Expect(err).ShouldNot(HaveOccurred())

			_, ok, err := registry.Executor(ctx, "<executor-b>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("returns an error if the executor is not registered", func() {
			err := registry.Deregister(ctx, "<unknown>")
			Expect(err).To(MatchError("executor with ID '<unknown>' is not registered"))
		})
	})
})
