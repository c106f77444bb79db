package negotiation_test

import (
	"context"
	"errors"
	"time"

	. "github.com/dogmatiq/accord/fixtures"
	"github.com/dogmatiq/accord/handler"
	. "github.com/dogmatiq/accord/handler/negotiation"
	"github.com/dogmatiq/accord/process"
	"github.com/dogmatiq/accord/protocol"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Handler", func() {
	var (
		ctx        context.Context
		dispatcher *DispatcherStub
		hnd        *Handler
		consumer   *process.Process
		provider   *process.Process
	)

	BeforeEach(func() {
		ctx = context.Background()
		dispatcher = &DispatcherStub{}

		hnd = &Handler{
			Dispatcher:        dispatcher,
			Address:           "<self>",
			AgreementValidity: 24 * time.Hour,
		}

		consumer = &process.Process{
			ID:    "<consumer-id>",
			Type:  process.NegotiationType,
			State: process.Initial,
			Payload: &process.Negotiation{
				Role:  process.ConsumerRole,
				Peer:  "<provider>",
				Offer: process.Offer{ID: "<offer>", AssetID: "<asset>", Policy: "<policy>"},
			},
		}

		provider = &process.Process{
			ID:            "<provider-id>",
			Type:          process.NegotiationType,
			State:         process.Requested,
			CorrelationID: "<consumer-id>",
			Payload: &process.Negotiation{
				Role:  process.ProviderRole,
				Peer:  "<consumer>",
				Offer: process.Offer{ID: "<offer>", AssetID: "<asset>", Policy: "<policy>"},
			},
		}
	})

	Describe("func Awaits()", func() {
		DescribeTable(
			"it reports whether the role has a local action",
			func(r process.Role, s process.State, expect bool) {
				p := &process.Process{
					State:   s,
					Payload: &process.Negotiation{Role: r},
				}
				Expect(hnd.Awaits(p)).To(Equal(expect))
			},
			Entry("consumer in INITIAL", process.ConsumerRole, process.Initial, false),
			Entry("consumer in REQUESTED", process.ConsumerRole, process.Requested, true),
			Entry("consumer in OFFERED", process.ConsumerRole, process.Offered, false),
			Entry("consumer in ACCEPTED", process.ConsumerRole, process.Accepted, true),
			Entry("consumer in VERIFIED", process.ConsumerRole, process.Verified, true),
			Entry("provider in REQUESTED", process.ProviderRole, process.Requested, false),
			Entry("provider in OFFERED", process.ProviderRole, process.Offered, true),
			Entry("provider in AGREED", process.ProviderRole, process.Agreed, true),
			Entry("terminal state", process.ProviderRole, process.Finalized, false),
		)
	})

	Describe("func HandleState()", func() {
		It("moves a consumer from INITIAL to REQUESTING without sending anything", func() {
			o := hnd.HandleState(ctx, consumer)
			Expect(o).To(Equal(handler.TransitionTo(process.Requesting)))
			Expect(dispatcher.Sent()).To(BeEmpty())
		})

		It("sends a contract request with a deterministic message ID", func() {
			consumer.State = process.Requesting

			o := hnd.HandleState(ctx, consumer)
			Expect(o).To(Equal(handler.TransitionTo(process.Requested)))

			o = hnd.HandleState(ctx, consumer)
			Expect(o).To(Equal(handler.TransitionTo(process.Requested)))

			sent := dispatcher.Sent()
			Expect(sent).To(HaveLen(2))
			Expect(sent[0].Peer).To(Equal("<provider>"))
			Expect(sent[0].Message.Type).To(Equal(protocol.ContractRequest))
			Expect(sent[0].Message.ProcessID).To(Equal("<consumer-id>"))
			Expect(sent[0].Message.Sender).To(Equal("<self>"))
			Expect(sent[0].Message.Offer).To(Equal(&process.Offer{ID: "<offer>", AssetID: "<asset>", Policy: "<policy>"}))
			Expect(sent[0].Message.ID).To(Equal(
				protocol.IdempotencyKey("<consumer-id>", process.Requesting, protocol.ContractRequest),
			))
			Expect(sent[1].Message.ID).To(Equal(sent[0].Message.ID))
		})

		It("retries if the message can not be sent", func() {
			dispatcher.SendFunc = func(context.Context, string, protocol.Message) error {
				return errors.New("<error>")
			}
			consumer.State = process.Requesting

			o := hnd.HandleState(ctx, consumer)
			Expect(o.Kind).To(Equal(handler.RetryOutcome))
			Expect(o.Err).To(MatchError("<error>"))
		})

		It("creates the agreement before sending it", func() {
			provider.State = process.Accepted

			o := hnd.HandleState(ctx, provider)
			Expect(o).To(Equal(handler.Update()))
			Expect(dispatcher.Sent()).To(BeEmpty())

			a := provider.Negotiation().Agreement
			Expect(a).NotTo(BeNil())
			Expect(a.ID).NotTo(BeEmpty())
			Expect(a.AssetID).To(Equal("<asset>"))
			Expect(a.Policy).To(Equal("<policy>"))
			Expect(a.NotAfter).To(BeTemporally("~", a.SignedAt.Add(24*time.Hour)))

			o = hnd.HandleState(ctx, provider)
			Expect(o).To(Equal(handler.TransitionTo(process.Agreed)))

			sent := dispatcher.Sent()
			Expect(sent).To(HaveLen(1))
			Expect(sent[0].Message.Type).To(Equal(protocol.ContractAgreement))
			Expect(sent[0].Message.CorrelationID).To(Equal("<consumer-id>"))
			Expect(sent[0].Message.Agreement).To(Equal(a))
		})

		It("fails if the role has no action in the current state", func() {
			provider.State = process.Offered

			o := hnd.HandleState(ctx, provider)
			Expect(o.Kind).To(Equal(handler.FatalOutcome))
			Expect(o.Err).To(MatchError("provider has no action in the OFFERED state"))
		})
	})

	Describe("func ApplyCommand()", func() {
		It("terminates without notifying a peer that is unaware of the negotiation", func() {
			to, err := hnd.ApplyCommand(ctx, consumer, process.Command{
				Name:   process.CancelCommand,
				Reason: "<reason>",
			})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(to).To(Equal(process.Terminated))
			Expect(consumer.Negotiation().Reason).To(Equal("<reason>"))
			Expect(dispatcher.Sent()).To(BeEmpty())
		})

		It("notifies the peer if it is aware of the negotiation", func() {
			to, err := hnd.ApplyCommand(ctx, provider, process.Command{
				Name:   process.TerminateCommand,
				Reason: "<reason>",
			})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(to).To(Equal(process.Terminated))
			Expect(dispatcher.SentTypes()).To(Equal([]protocol.MessageType{
				protocol.NegotiationTermination,
			}))
			Expect(dispatcher.Sent()[0].Message.Reason).To(Equal("<reason>"))
		})

		It("returns an error if the notification can not be sent", func() {
			dispatcher.SendFunc = func(context.Context, string, protocol.Message) error {
				return errors.New("<error>")
			}

			_, err := hnd.ApplyCommand(ctx, provider, process.Command{Name: process.CancelCommand})
			Expect(err).To(MatchError("<error>"))
		})

		It("returns an error if the command is not permitted", func() {
			_, err := hnd.ApplyCommand(ctx, provider, process.Command{Name: process.SuspendCommand})
			Expect(err).To(Equal(handler.CommandNotPermittedError{
				Command: process.SuspendCommand,
				State:   process.Requested,
			}))
		})
	})

	Describe("func New()", func() {
		It("creates a provider negotiation in the REQUESTED state", func() {
			s, v, err := hnd.New(protocol.Message{
				Type:      protocol.ContractRequest,
				ProcessID: "<consumer-id>",
				Sender:    "<consumer>",
				Offer:     &process.Offer{ID: "<offer>"},
			})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(s).To(Equal(process.Requested))
			Expect(v).To(Equal(&process.Negotiation{
				Role:  process.ProviderRole,
				Peer:  "<consumer>",
				Offer: process.Offer{ID: "<offer>"},
			}))
		})

		It("returns an error if the request has no offer", func() {
			_, _, err := hnd.New(protocol.Message{Sender: "<consumer>"})
			Expect(err).To(MatchError("contract request does not contain an offer"))
		})

		It("only initiates on contract requests", func() {
			Expect(hnd.Initiates(protocol.ContractRequest)).To(BeTrue())
			Expect(hnd.Initiates(protocol.ContractOffer)).To(BeFalse())
		})
	})

	Describe("func HandleMessage()", func() {
		offer := protocol.Message{
			Type:  protocol.ContractOffer,
			Offer: &process.Offer{ID: "<counter-offer>"},
		}

		BeforeEach(func() {
			consumer.State = process.Requested
		})

		It("applies a contract offer to a consumer", func() {
			to, changed, err := hnd.HandleMessage(ctx, consumer, offer)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(changed).To(BeTrue())
			Expect(to).To(Equal(process.Offered))
			Expect(consumer.Negotiation().Offer.ID).To(Equal("<counter-offer>"))
		})

		It("ignores an offer that has already been applied", func() {
			consumer.State = process.Agreed

			_, changed, err := hnd.HandleMessage(ctx, consumer, offer)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(changed).To(BeFalse())
			Expect(consumer.Negotiation().Offer.ID).To(Equal("<offer>"))
		})

		It("rejects messages intended for the other role", func() {
			_, _, err := hnd.HandleMessage(ctx, provider, offer)
			Expect(err).To(Equal(handler.UnexpectedMessageError{
				Type:  protocol.ContractOffer,
				State: process.Requested,
			}))
		})

		It("terminates the negotiation when the peer terminates it", func() {
			to, changed, err := hnd.HandleMessage(ctx, consumer, protocol.Message{
				Type:   protocol.NegotiationTermination,
				Reason: "<reason>",
			})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(changed).To(BeTrue())
			Expect(to).To(Equal(process.Terminated))
			Expect(consumer.Negotiation().Reason).To(Equal("<reason>"))
		})

		It("stores the agreement sent by the provider", func() {
			consumer.State = process.Accepted
			a := &process.Agreement{ID: "<agreement>"}

			to, changed, err := hnd.HandleMessage(ctx, consumer, protocol.Message{
				Type:      protocol.ContractAgreement,
				Agreement: a,
			})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(changed).To(BeTrue())
			Expect(to).To(Equal(process.Agreed))
			Expect(consumer.Negotiation().Agreement).To(Equal(a))
		})
	})
})

var _ = Describe("var Graph", func() {
	It("permits the peer to terminate from every non-terminal state", func() {
		for _, s := range Graph.NonTerminalStates() {
			Expect(Graph.CanTransition(process.Peer, s, process.Terminated)).To(BeTrue(), string(s))
		}
	})

	It("only permits the consumer's opening steps locally", func() {
		Expect(Graph.CanTransition(process.Local, process.Initial, process.Requesting)).To(BeTrue())
		Expect(Graph.CanTransition(process.Peer, process.Initial, process.Requesting)).To(BeFalse())
	})
})
