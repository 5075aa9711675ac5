// Package log provides structured, leveled logging for walletcore.
//
// The package is built around a small Logger interface so that library code
// never depends on a concrete logging backend. Two implementations are
// provided: ZapLogger (zap with console, logfmt or json encoding) for
// applications, and an ipfs/go-log backed logger for processes that already
// configure logging through the IPFS logging subsystem. A NoopLogger is
// returned whenever no logger is available, so callers never need nil checks.
//
// Loggers travel through context.Context. When the context carries an active
// OpenTelemetry span, the logger retrieved from it additionally records log
// entries as span events, correlating logs with traces.
package log
