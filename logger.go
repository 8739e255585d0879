package asyncmodbus

import "log/slog"

// Logger is the subset of *slog.Logger the engine writes to.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

func defaultLogger(l Logger) Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
