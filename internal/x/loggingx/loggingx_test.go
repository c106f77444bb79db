package loggingx_test

import (
	. "github.com/dogmatiq/accord/internal/x/loggingx"
	"github.com/dogmatiq/dodeca/logging"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var _ = Describe("func WithPrefix()", func() {
	It("prefixes log messages", func() {
		target := &logging.BufferedLogger{CaptureDebug: true}
		logger := WithPrefix(target, "[%s] ", "node-1")

		logging.Log(logger, "<%s>", "format")
		logging.LogString(logger, "<string>")
		logging.Debug(logger, "<%s>", "debug")

		Expect(target.Messages()).To(Equal([]logging.BufferedLogMessage{
			{Message: "[node-1] <format>"},
			{Message: "[node-1] <string>"},
			{Message: "[node-1] <debug>", IsDebug: true},
		}))
	})

	It("escapes percent signs in the prefix", func() {
		target := &logging.BufferedLogger{}
		logger := WithPrefix(target, "%s ", "100%")

		logging.Log(logger, "<%d>", 1)

		Expect(target.Messages()).To(ConsistOf(
			logging.BufferedLogMessage{Message: "100% <1>"},
		))
	})
})

var _ = Describe("func Zap()", func() {
	It("writes messages at the info level", func() {
		core, logs := observer.New(zapcore.InfoLevel)
		logger := Zap(zap.New(core))

		logging.Log(logger, "<%s>", "message")
		logging.Debug(logger, "<%s>", "hidden")

		Expect(logger.IsDebug()).To(BeFalse())
		Expect(logs.Len()).To(Equal(1))

		e := logs.All()[0]
		Expect(e.Message).To(Equal("<message>"))
		Expect(e.Level).To(Equal(zapcore.InfoLevel))
	})

	It("writes debug messages when the debug level is enabled", func() {
		core, logs := observer.New(zapcore.DebugLevel)
		logger := Zap(zap.New(core))

		logging.DebugString(logger, "<debug>")

		Expect(logger.IsDebug()).To(BeTrue())
		Expect(logs.FilterMessage("<debug>").Len()).To(Equal(1))
	})
})
