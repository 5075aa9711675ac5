package log_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/erc4361/walletcore/pkg/log"
)

// testWriteSyncer captures encoded log entries for inspection.
type testWriteSyncer struct {
	buf bytes.Buffer
}

func (t *testWriteSyncer) Write(p []byte) (int, error) { return t.buf.Write(p) }
func (t *testWriteSyncer) Sync() error                 { return nil }

func (t *testWriteSyncer) lastEntry(tt *testing.T) map[string]any {
	tt.Helper()
	lines := strings.Split(strings.TrimSpace(t.buf.String()), "\n")
	require.NotEmpty(tt, lines)

	var entry map[string]any
	require.NoError(tt, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestZapLoggerLevels(t *testing.T) {
	tws := &testWriteSyncer{}
	logger := log.NewZapLogger(log.Config{Format: "json", Level: log.LevelDebug}, tws)

	logger.Debug("debug message", "k", "v")
	entry := tws.lastEntry(t)
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "debug message", entry["msg"])
	assert.Equal(t, "v", entry["k"])

	logger.Info("info message")
	assert.Equal(t, "info", tws.lastEntry(t)["level"])

	logger.Warn("warn message")
	assert.Equal(t, "warn", tws.lastEntry(t)["level"])

	logger.Error("error message")
	assert.Equal(t, "error", tws.lastEntry(t)["level"])
}

func TestZapLoggerLevelFiltering(t *testing.T) {
	tws := &testWriteSyncer{}
	logger := log.NewZapLogger(log.Config{Format: "json", Level: log.LevelWarn}, tws)

	logger.Debug("dropped")
	logger.Info("dropped")
	assert.Empty(t, tws.buf.String())

	logger.Warn("kept")
	assert.Contains(t, tws.buf.String(), "kept")
}

func TestZapLoggerNaming(t *testing.T) {
	tws := &testWriteSyncer{}
	logger := log.NewZapLogger(log.Config{Format: "json", Level: log.LevelDebug}, tws)

	named := logger.WithName("session").WithName("keystore")
	assert.Equal(t, "session.keystore", named.Name())

	named.Info("named entry")
	assert.Equal(t, "session.keystore", tws.lastEntry(t)["logger"])
}

func TestZapLoggerWithKV(t *testing.T) {
	tws := &testWriteSyncer{}
	logger := log.NewZapLogger(log.Config{Format: "json", Level: log.LevelDebug}, tws)

	child := logger.WithKV("chainId", "1").WithKV("kind", "local")
	assert.Equal(t, []any{"chainId", "1", "kind", "local"}, child.GetAllKV())

	child.Info("kv entry")
	entry := tws.lastEntry(t)
	assert.Equal(t, "1", entry["chainId"])
	assert.Equal(t, "local", entry["kind"])

	// The parent is unaffected.
	assert.Empty(t, logger.GetAllKV())
}

func TestNoopLogger(t *testing.T) {
	logger := log.NewNoopLogger()

	// Must never panic, whatever is thrown at it.
	logger.Debug("msg", "k", "v")
	logger.Error("msg")
	assert.Equal(t, "noop", logger.WithName("x").Name())
	assert.Empty(t, logger.WithKV("k", "v").GetAllKV())
}

func TestFromContextDefault(t *testing.T) {
	logger := log.FromContext(context.Background())
	require.NotNil(t, logger)
	logger.Info("safe on empty context")
}

func TestContextRoundTrip(t *testing.T) {
	tws := &testWriteSyncer{}
	logger := log.NewZapLogger(log.Config{Format: "json", Level: log.LevelDebug}, tws).WithName("ctx")

	ctx := log.SetContextLogger(context.Background(), logger)
	got := log.FromContext(ctx)
	assert.Equal(t, "ctx", got.Name())
}

func TestSpanLoggerMirrorsEntries(t *testing.T) {
	tws := &testWriteSyncer{}
	base := log.NewZapLogger(log.Config{Format: "json", Level: log.LevelDebug}, tws).WithName("traced")

	// The span from an empty context is a no-op span; recording on it is
	// safe and the IDs are all-zero.
	span := trace.SpanFromContext(context.Background())
	logger := log.NewSpanLogger(base, log.NewOtelSpanEventRecorder(span))

	logger.Info("traced entry", "k", "v")
	entry := tws.lastEntry(t)
	assert.Equal(t, "traced entry", entry["msg"])
	assert.Equal(t, "v", entry["k"])
	assert.Contains(t, entry, "traceId")
	assert.Contains(t, entry, "spanId")

	// Error entries record onto the span too; with a no-op span this must
	// simply not panic.
	logger.Error("traced failure", "reason", "test")
	assert.Equal(t, "error", tws.lastEntry(t)["level"])

	named := logger.WithName("child").WithKV("x", 1)
	assert.Equal(t, "traced.child", named.Name())
}
