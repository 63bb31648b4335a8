// Package logging builds the process-wide zap logger, following the same
// production JSON-encoder setup as uhyunpark-hyperlicked's pkg/util/log.go.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-mode zap logger with an ISO8601 timestamp
// encoder. Every long-lived task should derive a child logger from this
// with .Named("<component>") so log lines can be attributed to the task
// that emitted them (signature-scraper, tx-scraper-2, candle-batcher-1m, …).
func New() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// ForTask returns a child logger tagged with the task's name and, for
// partitioned tasks, its partition index.
func ForTask(base *zap.Logger, name string, fields ...zap.Field) *zap.Logger {
	return base.Named(name).With(fields...)
}
