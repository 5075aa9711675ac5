package log

// Logger is the logging interface used across walletcore.
// keysAndValues are treated as alternating key-value pairs
// (e.g., "address", addr, "chainId", id).
type Logger interface {
	// Debug logs detailed information useful during development.
	Debug(msg string, keysAndValues ...any)
	// Info logs routine events and state changes.
	Info(msg string, keysAndValues ...any)
	// Warn logs unexpected situations that are not errors.
	Warn(msg string, keysAndValues ...any)
	// Error logs failures that need attention.
	Error(msg string, keysAndValues ...any)
	// Fatal logs an unrecoverable failure and may terminate the process.
	Fatal(msg string, keysAndValues ...any)
	// WithKV returns a logger with an extra key-value pair attached to all
	// future entries.
	WithKV(key string, value any) Logger
	// GetAllKV returns the persistent key-value pairs attached to this logger.
	GetAllKV() []any
	// WithName returns a logger named after a component or subsystem.
	WithName(name string) Logger
	// Name returns the logger's name.
	Name() string
	// AddCallerSkip returns a logger that skips extra stack frames when
	// reporting the log call site. Implementations that cannot honor it
	// return themselves.
	AddCallerSkip(skip int) Logger
}

// Level is the severity of a log entry.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelFatal Level = "fatal"
)

// SpanEventRecorder records log events onto a tracing span.
type SpanEventRecorder interface {
	// TraceID returns the trace ID of the underlying span.
	TraceID() string
	// SpanID returns the span ID of the underlying span.
	SpanID() string
	// RecordEvent records a regular event on the span.
	RecordEvent(name string, keysAndValues ...any)
	// RecordError records an error event and marks the span as failed.
	RecordError(name string, keysAndValues ...any)
}
