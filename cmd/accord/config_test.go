package main

import (
	"time"

	"github.com/dogmatiq/accord/executor"
	"github.com/dogmatiq/dodeca/config"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("func loadSettings()", func() {
	It("applies defaults", func() {
		s, err := loadSettings(config.Map{
			"ACCORD_ADDRESS": config.String("<address>"),
		})
		Expect(err).ShouldNot(HaveOccurred())
		Expect(s.ConnectorID).To(Equal("accord"))
		Expect(s.Store).To(Equal("bolt"))
		Expect(s.HealthCheckInterval).To(Equal(10 * time.Second))
		Expect(s.Executors).To(BeEmpty())
	})

	It("does not require optional variables", func() {
		s, err := loadSettings(config.Map{
			"ACCORD_ADDRESS": config.String("<address>"),
		})
		Expect(err).ShouldNot(HaveOccurred())
		Expect(s.ParticipantID).To(BeEmpty())
		Expect(s.DSN).To(BeEmpty())
		Expect(s.SubjectPrefix).To(BeEmpty())
		Expect(s.LogFile).To(BeEmpty())
	})

	It("returns an error if a value is malformed", func() {
		_, err := loadSettings(config.Map{
			"ACCORD_ADDRESS":        config.String("<address>"),
			"ACCORD_HEALTH_CHECK_INTERVAL": config.String("<interval>"),
		})
		Expect(err).To(BeAssignableToTypeOf(config.InvalidValue{}))
	})

	It("returns an error if the address is not set", func() {
		_, err := loadSettings(config.Map{})
		Expect(err).To(MatchError("ACCORD_ADDRESS must be set"))
	})

	It("requires a DSN for SQL stores", func() {
		_, err := loadSettings(config.Map{
			"ACCORD_ADDRESS": config.String("<address>"),
			"ACCORD_STORE":   config.String("postgres"),
		})
		Expect(err).To(MatchError("ACCORD_DSN must be set when using the postgres store"))
	})

	It("rejects unknown stores", func() {
		_, err := loadSettings(config.Map{
			"ACCORD_ADDRESS": config.String("<address>"),
			"ACCORD_STORE":   config.String("<store>"),
		})
		Expect(err).To(MatchError("unsupported store '<store>'"))
	})

	It("chooses the SQL driver by store", func() {
		Expect(settings{Store: "postgres"}.driverName()).To(Equal("pgx"))
		Expect(settings{Store: "sqlite"}.driverName()).To(Equal("sqlite"))
	})
})

var _ = Describe("func parseExecutors()", func() {
	It("parses each entry", func() {
		x, err := parseExecutors("a=host-a:9000;HttpData-PUSH,HttpData-PULL;eu\n  b=host-b:9000")
		Expect(err).ShouldNot(HaveOccurred())
		Expect(x).To(Equal([]executor.Registration{
			{
				ID:           "a",
				Endpoint:     "host-a:9000",
				Capabilities: []string{"HttpData-PUSH", "HttpData-PULL"},
				Labels:       []string{"eu"},
			},
			{
				ID:       "b",
				Endpoint: "host-b:9000",
			},
		}))
	})

	DescribeTable(
		"it rejects malformed entries",
		func(v, expect string) {
			_, err := parseExecutors(v)
			Expect(err).To(MatchError(expect))
		},
		Entry("missing ID", "=host:9000", "executor entry '=host:9000' has no ID"),
		Entry("missing separator", "host:9000", "executor entry 'host:9000' has no ID"),
		Entry("missing endpoint", "a=;cap", "executor 'a' has no endpoint"),
		Entry("too many sections", "a=h;c;l;x", "executor 'a' has too many sections"),
	)
})
