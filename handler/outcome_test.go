package handler_test

import (
	"errors"
	"time"

	. "github.com/dogmatiq/accord/handler"
	"github.com/dogmatiq/accord/handler/transfer"
	"github.com/dogmatiq/accord/process"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Outcome", func() {
	DescribeTable(
		"outcome constructors",
		func(o Outcome, expect Outcome, kind string) {
			Expect(o).To(Equal(expect))
			Expect(o.Kind.String()).To(Equal(kind))
		},
		Entry("TransitionTo()", TransitionTo(process.Started), Outcome{Kind: TransitionOutcome, State: process.Started}, "transition"),
		Entry("Update()", Update(), Outcome{Kind: UpdateOutcome}, "update"),
		Entry("Reschedule()", Reschedule(time.Second), Outcome{Kind: RescheduleOutcome, Delay: time.Second}, "reschedule"),
	)

	It("carries the cause of retries and failures", func() {
		err := errors.New("<error>")

		Expect(Retry(err)).To(Equal(Outcome{Kind: RetryOutcome, Err: err}))
		Expect(Fatal(err)).To(Equal(Outcome{Kind: FatalOutcome, Err: err}))
		Expect(RetryOutcome.String()).To(Equal("retry"))
		Expect(FatalOutcome.String()).To(Equal("fatal"))
	})
})

var _ = Describe("func CommandTarget()", func() {
	h := &transfer.Handler{}

	It("returns the target of a permitted command", func() {
		p := &process.Process{State: process.Started}

		to, err := CommandTarget(h, p, process.Command{Name: process.SuspendCommand})
		Expect(err).ShouldNot(HaveOccurred())
		Expect(to).To(Equal(process.Suspended))
	})

	It("returns an error if the command is not permitted", func() {
		p := &process.Process{State: process.Deprovisioned}

		_, err := CommandTarget(h, p, process.Command{Name: process.CancelCommand})
		Expect(err).To(Equal(CommandNotPermittedError{
			Command: process.CancelCommand,
			State:   process.Deprovisioned,
		}))
		Expect(err).To(MatchError("cancel command is not permitted in the DEPROVISIONED state"))
	})
})

var _ = Describe("func FailureTarget()", func() {
	h := &transfer.Handler{}

	It("routes failures through the graph's cleanup state", func() {
		Expect(FailureTarget(h, &process.Process{State: process.Started})).To(Equal(process.Deprovisioning))
		Expect(FailureTarget(h, &process.Process{State: process.Deprovisioned})).To(Equal(process.FatalError))
	})
})
