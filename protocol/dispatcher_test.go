package protocol_test

import (
	"github.com/dogmatiq/accord/process"
	. "github.com/dogmatiq/accord/protocol"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("func IdempotencyKey()", func() {
	It("returns the same key for the same process, state and message type", func() {
		a := IdempotencyKey("<process>", process.Requesting, ContractRequest)
		b := IdempotencyKey("<process>", process.Requesting, ContractRequest)
		Expect(a).To(Equal(b))
	})

	DescribeTable(
		"it returns a different key when any input differs",
		func(id string, s process.State, t MessageType) {
			a := IdempotencyKey("<process>", process.Requesting, ContractRequest)
			b := IdempotencyKey(id, s, t)
			Expect(a).NotTo(Equal(b))
		},
		Entry("process", "<other>", process.Requesting, ContractRequest),
		Entry("state", "<process>", process.Offered, ContractRequest),
		Entry("message type", "<process>", process.Requesting, NegotiationTermination),
	)
})

var _ = Describe("type MessageType", func() {
	Describe("func ProcessType()", func() {
		DescribeTable(
			"it returns the type of process that handles the message",
			func(t MessageType, expect process.Type) {
				pt, ok := t.ProcessType()
				Expect(ok).To(BeTrue())
				Expect(pt).To(Equal(expect))
			},
			Entry("contract request", ContractRequest, process.NegotiationType),
			Entry("negotiation termination", NegotiationTermination, process.NegotiationType),
			Entry("transfer request", TransferRequest, process.TransferType),
			Entry("transfer completion", TransferCompletion, process.TransferType),
		)

		It("returns false for unknown message types", func() {
			_, ok := MessageType("<unknown>").ProcessType()
			Expect(ok).To(BeFalse())
		})
	})
})

var _ = Describe("type RejectedError", func() {
	It("describes the rejection", func() {
		err := RejectedError{
			Peer:      "<peer>",
			MessageID: "<id>",
			Reason:    "<reason>",
		}
		Expect(err).To(MatchError("peer '<peer>' rejected message <id>: <reason>"))
	})
})
