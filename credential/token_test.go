package credential_test

import (
	"context"

	. "github.com/dogmatiq/accord/credential"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type OpaqueIssuer", func() {
	var (
		ctx    context.Context
		issuer *OpaqueIssuer
		claims Claims
	)

	BeforeEach(func() {
		ctx = context.Background()
		issuer = &OpaqueIssuer{}
		claims = Claims{
			ID:            "<process>",
			ProcessID:     "<process>",
			AgreementID:   "<agreement>",
			AssetID:       "<asset>",
			FlowType:      "HttpData-PUSH",
			ParticipantID: "<participant>",
		}
	})

	It("issues tokens that can be verified", func() {
		t, err := issuer.IssueAccessToken(ctx, claims)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(t).NotTo(BeEmpty())

		c, ok := issuer.Verify(t)
		Expect(ok).To(BeTrue())
		Expect(c).To(Equal(claims))
	})

	It("returns the same token for the same token ID", func() {
		a, err := issuer.IssueAccessToken(ctx, claims)
		Expect(err).ShouldNot(HaveOccurred())

		b, err := issuer.IssueAccessToken(ctx, claims)
		Expect(err).ShouldNot(HaveOccurred())

		Expect(a).To(Equal(b))
	})

	It("returns different tokens for different token IDs", func() {
		a, err := issuer.IssueAccessToken(ctx, claims)
		Expect(err).ShouldNot(HaveOccurred())

		claims.ID = "<other>"
		b, err := issuer.IssueAccessToken(ctx, claims)
		Expect(err).ShouldNot(HaveOccurred())

		Expect(a).NotTo(Equal(b))
	})

	It("does not verify revoked tokens", func() {
		t, err := issuer.IssueAccessToken(ctx, claims)
		Expect(err).ShouldNot(HaveOccurred())

		err = issuer.RevokeAccessToken(ctx, claims.ID)
		Expect(err).ShouldNot(HaveOccurred())

		_, ok := issuer.Verify(t)
		Expect(ok).To(BeFalse())
	})

	It("does not return an error when revoking an unknown token", func() {
		err := issuer.RevokeAccessToken(ctx, "<unknown>")
		Expect(err).ShouldNot(HaveOccurred())
	})
})
