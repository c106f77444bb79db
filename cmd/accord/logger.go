package main

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lj "gopkg.in/natefinch/lumberjack.v2"
)

// newLogger returns a zap logger that writes to stderr, or to a rotated log
// file if one is configured.
func newLogger(s settings) *zap.Logger {
	level := zapcore.InfoLevel
	if s.Debug {
		level = zapcore.DebugLevel
	}

	var out zapcore.WriteSyncer = zapcore.Lock(os.Stderr)
	enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())

	if s.LogFile != "" {
		out = zapcore.AddSync(&lj.Logger{
			Filename:   s.LogFile,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		})
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}

	return zap.New(
		zapcore.NewCore(enc, out, level),
		zap.AddCaller(),
		zap.Fields(zap.String("connector", s.ConnectorID)),
	)
}
