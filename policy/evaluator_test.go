package policy_test

import (
	"context"
	"errors"
	"time"

	. "github.com/dogmatiq/accord/policy"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type ExpiryEvaluator", func() {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	DescribeTable(
		"func Evaluate()",
		func(notAfter time.Time, compliant bool) {
			d, err := ExpiryEvaluator{}.Evaluate(
				context.Background(),
				Subject{
					AgreementID: "<agreement>",
					NotAfter:    notAfter,
					Now:         now,
				},
			)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(d.Compliant).To(Equal(compliant))
		},
		Entry("no expiry", time.Time{}, true),
		Entry("not yet expired", now.Add(time.Hour), true),
		Entry("expired exactly now", now, false),
		Entry("expired in the past", now.Add(-time.Hour), false),
	)

	It("describes the violation", func() {
		d, err := ExpiryEvaluator{}.Evaluate(
			context.Background(),
			Subject{
				AgreementID: "<agreement>",
				NotAfter:    now,
				Now:         now,
			},
		)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(d.Reason).To(Equal("agreement <agreement> expired at 2024-01-01T00:00:00Z"))
	})
})

var _ = Describe("func AllOf()", func() {
	deny := EvaluatorFunc(func(context.Context, Subject) (Decision, error) {
		return Deny("<reason>"), nil
	})

	permit := EvaluatorFunc(func(context.Context, Subject) (Decision, error) {
		return Permit, nil
	})

	It("permits the subject if every evaluator permits it", func() {
		d, err := AllOf(permit, permit).Evaluate(context.Background(), Subject{})
		Expect(err).ShouldNot(HaveOccurred())
		Expect(d).To(Equal(Permit))
	})

	It("returns the first denial", func() {
		d, err := AllOf(permit, deny).Evaluate(context.Background(), Subject{})
		Expect(err).ShouldNot(HaveOccurred())
		Expect(d).To(Equal(Decision{Reason: "<reason>"}))
	})

	It("returns evaluator errors", func() {
		failing := EvaluatorFunc(func(context.Context, Subject) (Decision, error) {
			return Decision{}, errors.New("<error>")
		})

		_, err := AllOf(failing, permit).Evaluate(context.Background(), Subject{})
		Expect(err).To(MatchError("<error>"))
	})
})
