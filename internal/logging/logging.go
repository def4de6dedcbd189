// Package logging builds the zap loggers used by the binaries.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a JSON logger with RFC3339 timestamps and caller information. Entries
// below error level go to stdout, errors to stderr. Debug entries are dropped unless
// debug is set.
func New(debug bool) *zap.Logger {
	return newLogger(debug, zapcore.Lock(os.Stdout), zapcore.Lock(os.Stderr))
}

func newLogger(debug bool, stdout, stderr zapcore.WriteSyncer) *zap.Logger {
	minLevel := zapcore.InfoLevel
	if debug {
		minLevel = zapcore.DebugLevel
	}
	isErrorLevel := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.ErrorLevel
	})
	isInfoLevel := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= minLevel && lvl < zapcore.ErrorLevel
	})

	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = zapcore.RFC3339TimeEncoder
	encoder := zapcore.NewJSONEncoder(config)

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, stderr, isErrorLevel),
		zapcore.NewCore(encoder, stdout, isInfoLevel),
	)
	return zap.New(core, zap.AddCaller())
}
