package core

import "github.com/hupe1980/finmesh/logging"

// loggerAdapter wraps a logging.Logger and exposes convenience methods
// (LogDebug/LogInfo/LogWarn/LogError). Fields are prepended to every entry so
// lines emitted inside a run carry their correlation ids. A nil logger is
// replaced by a NoOpLogger.
type loggerAdapter struct {
	logger logging.Logger
	fields []any
}

func newLoggerAdapter(l logging.Logger, fields ...any) *loggerAdapter {
	if l == nil {
		l = logging.NoOpLogger{}
	}
	return &loggerAdapter{logger: l, fields: fields}
}

// with derives an adapter carrying additional key/value fields.
func (l *loggerAdapter) with(fields ...any) *loggerAdapter {
	merged := make([]any, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &loggerAdapter{logger: l.logger, fields: merged}
}

func (l *loggerAdapter) args(args []any) []any {
	if len(l.fields) == 0 {
		return args
	}
	out := make([]any, 0, len(l.fields)+len(args))
	out = append(out, l.fields...)
	return append(out, args...)
}

// Logger returns a logging.Logger that includes the adapter fields.
func (l *loggerAdapter) Logger() logging.Logger {
	return l
}

// Debug implements logging.Logger.
func (l *loggerAdapter) Debug(msg string, args ...any) { l.logger.Debug(msg, l.args(args)...) }

// Info implements logging.Logger.
func (l *loggerAdapter) Info(msg string, args ...any) { l.logger.Info(msg, l.args(args)...) }

// Warn implements logging.Logger.
func (l *loggerAdapter) Warn(msg string, args ...any) { l.logger.Warn(msg, l.args(args)...) }

// Error implements logging.Logger.
func (l *loggerAdapter) Error(msg string, args ...any) { l.logger.Error(msg, l.args(args)...) }

// LogDebug logs a debug message.
func (l *loggerAdapter) LogDebug(msg string, args ...any) { l.Debug(msg, args...) }

// LogInfo logs an info message.
func (l *loggerAdapter) LogInfo(msg string, args ...any) { l.Info(msg, args...) }

// LogWarn logs a warning message.
func (l *loggerAdapter) LogWarn(msg string, args ...any) { l.Warn(msg, args...) }

// LogError logs an error message.
func (l *loggerAdapter) LogError(msg string, args ...any) { l.Error(msg, args...) }
