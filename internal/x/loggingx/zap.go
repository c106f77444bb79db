package loggingx

import (
	"github.com/dogmatiq/dodeca/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Zap returns a logger that writes to l.
//
// Regular messages are written at the info level and debug messages at the
// debug level.
func Zap(l *zap.Logger) logging.Logger {
	return &zapLogger{
		l.WithOptions(zap.AddCallerSkip(2)).Sugar(),
		l.Core().Enabled(zapcore.DebugLevel),
	}
}

type zapLogger struct {
	target *zap.SugaredLogger
	debug  bool
}

func (z *zapLogger) Log(fmt string, v ...interface{}) {
	z.target.Infof(fmt, v...)
}

func (z *zapLogger) LogString(s string) {
	z.target.Info(s)
}

func (z *zapLogger) Debug(fmt string, v ...interface{}) {
	z.target.Debugf(fmt, v...)
}

func (z *zapLogger) DebugString(s string) {
	z.target.Debug(s)
}

func (z *zapLogger) IsDebug() bool {
	return z.debug
}
