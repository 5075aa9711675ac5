package log

import (
	"os"

	ipfslog "github.com/ipfs/go-log/v2"
	"go.uber.org/zap"
)

var _ Logger = &ipfsLogger{}

// NewLoggerIPFS returns a Logger backed by the ipfs/go-log subsystem.
// Log level is taken from WALLETCORE_LOG_LEVEL, defaulting to info.
func NewLoggerIPFS(name string) Logger {
	return &ipfsLogger{
		lg:            ipfslog.Logger(name).SugaredLogger.Desugar().WithOptions(zap.AddCallerSkip(1)).Sugar(),
		keysAndValues: []any{},
	}
}

type ipfsLogger struct {
	lg            *zap.SugaredLogger
	keysAndValues []any
}

func (l *ipfsLogger) Debug(msg string, keysAndValues ...any) { l.lg.Debugw(msg, keysAndValues...) }
func (l *ipfsLogger) Info(msg string, keysAndValues ...any)  { l.lg.Infow(msg, keysAndValues...) }
func (l *ipfsLogger) Warn(msg string, keysAndValues ...any)  { l.lg.Warnw(msg, keysAndValues...) }
func (l *ipfsLogger) Error(msg string, keysAndValues ...any) { l.lg.Errorw(msg, keysAndValues...) }
func (l *ipfsLogger) Fatal(msg string, keysAndValues ...any) { l.lg.Fatalw(msg, keysAndValues...) }

func (l *ipfsLogger) WithKV(key string, value any) Logger {
	return &ipfsLogger{
		lg:            l.lg.With(key, value),
		keysAndValues: append(l.keysAndValues, key, value),
	}
}

func (l *ipfsLogger) GetAllKV() []any { return l.keysAndValues }

func (l *ipfsLogger) WithName(name string) Logger {
	lg := ipfslog.Logger(name)
	return &ipfsLogger{
		lg:            lg.SugaredLogger.Desugar().WithOptions(zap.AddCallerSkip(1)).Sugar().With(l.keysAndValues...),
		keysAndValues: []any{},
	}
}

func (l *ipfsLogger) Name() string { return l.lg.Desugar().Name() }

func (l *ipfsLogger) AddCallerSkip(skip int) Logger {
	return &ipfsLogger{
		lg:            l.lg.WithOptions(zap.AddCallerSkip(skip)),
		keysAndValues: l.keysAndValues,
	}
}

func init() {
	level := os.Getenv("WALLETCORE_LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	parsed, err := ipfslog.Parse(level)
	if err != nil {
		parsed = ipfslog.LevelInfo
	}

	ipfslog.SetupLogging(ipfslog.Config{
		Level:  parsed,
		Stderr: true,
	})
}
