package logging

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Fields carries structured log context as key/value pairs
type Fields map[string]interface{}

// Logger is the logging interface used across the application
type Logger interface {
	Debug(msg string, fields ...Fields)
	Info(msg string, fields ...Fields)
	Warn(msg string, fields ...Fields)
	Error(err error, msg string, fields ...Fields)
	WithFields(fields Fields) Logger
}

// Config controls logger construction
type Config struct {
	// Level is one of debug, info, warn, error
	Level string `json:"level" yaml:"level" mapstructure:"level"`
	// Format is console or json
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

type zapLogger struct {
	base *zap.Logger
}

// NewLogger creates a zap-backed Logger from config
func NewLogger(cfg Config) (Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Encoding = "json"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if strings.EqualFold(cfg.Format, "console") || cfg.Format == "" {
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	zc.DisableStacktrace = true

	base, err := zc.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return &zapLogger{base: base}, nil
}

// NewDefaultLogger creates a console logger at info level
func NewDefaultLogger() Logger {
	logger, err := NewLogger(Config{Level: "info", Format: "console"})
	if err != nil {
		// zap's default production config cannot fail to build; fall back anyway
		return &zapLogger{base: zap.NewNop()}
	}
	return logger
}

// NewNopLogger creates a logger that discards everything, for tests
func NewNopLogger() Logger {
	return &zapLogger{base: zap.NewNop()}
}

// WithFields creates a default logger pre-populated with fields
func WithFields(fields Fields) Logger {
	return NewDefaultLogger().WithFields(fields)
}

func (l *zapLogger) Debug(msg string, fields ...Fields) {
	l.base.Debug(msg, flatten(fields)...)
}

func (l *zapLogger) Info(msg string, fields ...Fields) {
	l.base.Info(msg, flatten(fields)...)
}

func (l *zapLogger) Warn(msg string, fields ...Fields) {
	l.base.Warn(msg, flatten(fields)...)
}

func (l *zapLogger) Error(err error, msg string, fields ...Fields) {
	zf := flatten(fields)
	if err != nil {
		zf = append(zf, zap.Error(err))
	}
	l.base.Error(msg, zf...)
}

func (l *zapLogger) WithFields(fields Fields) Logger {
	return &zapLogger{base: l.base.With(flatten([]Fields{fields})...)}
}

// flatten merges the variadic field maps into sorted zap fields so log
// output is stable for a given call site
func flatten(fields []Fields) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	merged := make(map[string]interface{})
	for _, f := range fields {
		for k, v := range f {
			merged[k] = v
		}
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	zf := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		zf = append(zf, zap.Any(k, merged[k]))
	}
	return zf
}

func parseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level: %q", level)
	}
}
