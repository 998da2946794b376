package logger

import (
	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/zap"
)

// WatermillZapLogger lets watermill log through zap.
type WatermillZapLogger struct {
	log *zap.Logger
}

func NewWatermillZapLogger(log *zap.Logger) *WatermillZapLogger {
	return &WatermillZapLogger{log: log.With(zap.String("component", "watermill"))}
}

func (w *WatermillZapLogger) Error(msg string, err error, fields watermill.LogFields) {
	w.log.Error(msg, append(toZapFields(fields), zap.Error(err))...)
}

func (w *WatermillZapLogger) Info(msg string, fields watermill.LogFields) {
	w.log.Info(msg, toZapFields(fields)...)
}

func (w *WatermillZapLogger) Debug(msg string, fields watermill.LogFields) {
	w.log.Debug(msg, toZapFields(fields)...)
}

// Trace is mapped to Debug; zap has no finer level.
func (w *WatermillZapLogger) Trace(msg string, fields watermill.LogFields) {
	w.log.Debug(msg, toZapFields(fields)...)
}

func (w *WatermillZapLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &WatermillZapLogger{log: w.log.With(toZapFields(fields)...)}
}

func toZapFields(fields watermill.LogFields) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}
