package logger

import (
	"sort"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/redact"
)

var (
	mu   sync.RWMutex
	base = zap.NewNop()
)

// Init builds the process logger. Production emits JSON at info level,
// development emits colored console output at debug level.
func Init(production bool) {
	var cfg zap.Config
	if production {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		l = zap.NewExample(zap.AddCallerSkip(1))
	}

	mu.Lock()
	base = l
	mu.Unlock()

	Info("logger initialized", map[string]any{"production": production})
}

// SetForTest swaps the logger and returns a func restoring the previous one.
func SetForTest(l *zap.Logger) func() {
	mu.Lock()
	prev := base
	base = l.WithOptions(zap.AddCallerSkip(1))
	mu.Unlock()

	return func() {
		mu.Lock()
		base = prev
		mu.Unlock()
	}
}

// Sync flushes buffered entries.
func Sync() {
	_ = current().Sync()
}

func current() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// toZap redacts fields and converts them in key order.
func toZap(fields map[string]any) []zap.Field {
	if len(fields) == 0 {
		return nil
	}

	clean := redact.Fields(fields)
	keys := make([]string, 0, len(clean))
	for k := range clean {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, zap.Any(k, clean[k]))
	}
	return out
}

func Debug(msg string, fields map[string]any) {
	current().Debug(msg, toZap(fields)...)
}

func Info(msg string, fields map[string]any) {
	current().Info(msg, toZap(fields)...)
}

func Warn(msg string, fields map[string]any) {
	current().Warn(msg, toZap(fields)...)
}

func Error(msg string, fields map[string]any) {
	current().Error(msg, toZap(fields)...)
}

// Fatal logs and exits the process.
func Fatal(msg string, fields map[string]any) {
	current().Fatal(msg, toZap(fields)...)
}
