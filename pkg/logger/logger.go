package logger

import (
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger interface {
	Info(message string, fields map[string]interface{})
	Error(message string, fields map[string]interface{})
	Warn(message string, fields map[string]interface{})
	Debug(message string, fields map[string]interface{})
	Fatal(message string, fields map[string]interface{})
}

type zapLogger struct {
	z *zap.Logger
}

// New returns a production JSON logger tagged with the service name.
func New(serviceName string) Logger {
	l, err := NewWithLevel(serviceName, "info")
	if err != nil {
		return NewNop()
	}
	return l
}

// NewWithLevel is New with an explicit minimum level (debug, info, warn, error).
func NewWithLevel(serviceName, level string) (Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.MessageKey = "message"

	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return &zapLogger{z: z.With(zap.String("service", serviceName))}, nil
}

// FromZap adapts an existing zap logger.
func FromZap(z *zap.Logger) Logger {
	return &zapLogger{z: z}
}

func toFields(fields map[string]interface{}) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(fields))
	for _, k := range keys {
		if err, ok := fields[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}

func (l *zapLogger) Info(message string, fields map[string]interface{}) {
	l.z.Info(message, toFields(fields)...)
}

func (l *zapLogger) Error(message string, fields map[string]interface{}) {
	l.z.Error(message, toFields(fields)...)
}

func (l *zapLogger) Warn(message string, fields map[string]interface{}) {
	l.z.Warn(message, toFields(fields)...)
}

func (l *zapLogger) Debug(message string, fields map[string]interface{}) {
	l.z.Debug(message, toFields(fields)...)
}

func (l *zapLogger) Fatal(message string, fields map[string]interface{}) {
	l.z.Fatal(message, toFields(fields)...)
}

func NewNop() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (l *nopLogger) Info(message string, fields map[string]interface{})  {}
func (l *nopLogger) Error(message string, fields map[string]interface{}) {}
func (l *nopLogger) Warn(message string, fields map[string]interface{})  {}
func (l *nopLogger) Debug(message string, fields map[string]interface{}) {}
func (l *nopLogger) Fatal(message string, fields map[string]interface{}) {}
