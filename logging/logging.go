// Package logging provides the structured logger used across rosbags-go,
// wrapping zap the way go.viam.com/rdk/logging wraps it for the rest of the
// teacher's stack.
package logging

import (
	"fmt"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level mirrors zap's level set with JSON marshaling matching the teacher's
// logging.Level (marshaled and unmarshaled as its string name only).
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "Debug"
	case INFO:
		return "Info"
	case WARN:
		return "Warn"
	case ERROR:
		return "Error"
	default:
		return "Info"
	}
}

// LevelFromString parses a level name spelled all-lowercase, Capitalized or
// all-uppercase, accepting the "warning" alias for WARN.
func LevelFromString(s string) (Level, error) {
	switch s {
	case "Debug", "debug", "DEBUG":
		return DEBUG, nil
	case "Info", "info", "INFO":
		return INFO, nil
	case "Warn", "warn", "WARN", "Warning", "warning", "WARNING":
		return WARN, nil
	case "Error", "error", "ERROR":
		return ERROR, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// MarshalJSON implements json.Marshaler.
func (l Level) MarshalJSON() ([]byte, error) {
	return []byte(`"` + l.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Level) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid level literal %q", data)
	}
	lvl, err := LevelFromString(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*l = lvl
	return nil
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger is the structured logging interface that the mcap, sqlite3 and
// rosbag2 readers and writer accept and hold.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Named(name string) Logger
}

type sugarLogger struct {
	sugar *zap.SugaredLogger
}

func (l *sugarLogger) Debugw(msg string, kv ...interface{}) { l.sugar.Debugw(msg, kv...) }
func (l *sugarLogger) Infow(msg string, kv ...interface{})  { l.sugar.Infow(msg, kv...) }
func (l *sugarLogger) Warnw(msg string, kv ...interface{})  { l.sugar.Warnw(msg, kv...) }
func (l *sugarLogger) Errorw(msg string, kv ...interface{}) { l.sugar.Errorw(msg, kv...) }

func (l *sugarLogger) Named(name string) Logger {
	return &sugarLogger{sugar: l.sugar.Named(name)}
}

// NewLogger builds a production logger writing level-tagged JSON output,
// named after the component that owns it (e.g. "mcap", "registry").
func NewLogger(name string) Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	z, err := cfg.Build()
	if err != nil {
		z = zap.NewNop()
	}
	return &sugarLogger{sugar: z.Named(name).Sugar()}
}

// NewTestLogger builds a logger that writes to the test's own log output,
// matching the teacher's logging.NewTestLogger(t) convention.
func NewTestLogger(tb testing.TB) Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(cfg.EncoderConfig),
		zapcore.AddSync(testWriter{tb}),
		zapcore.DebugLevel,
	)
	return &sugarLogger{sugar: zap.New(core).Sugar()}
}

type testWriter struct{ tb testing.TB }

func (w testWriter) Write(p []byte) (int, error) {
	w.tb.Helper()
	w.tb.Log(string(p))
	return len(p), nil
}
