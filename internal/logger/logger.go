package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process-wide logger. It is a no-op logger until InitLogger runs.
var Log = zap.NewNop()

// New builds a zap logger for the given environment. "production" yields
// JSON output, anything else the colored development console encoder.
func New(env string) (*zap.Logger, error) {
	var cfg zap.Config

	if env == "production" {
		cfg = zap.Config{
			Encoding:         "json",
			Level:            zap.NewAtomicLevelAt(zapcore.InfoLevel),
			OutputPaths:      []string{"stdout"},
			ErrorOutputPaths: []string{"stderr"},
			EncoderConfig: zapcore.EncoderConfig{
				TimeKey:        "time",
				LevelKey:       "level",
				MessageKey:     "message",
				CallerKey:      "caller",
				EncodeTime:     zapcore.ISO8601TimeEncoder,
				EncodeLevel:    zapcore.CapitalLevelEncoder,
				EncodeCaller:   zapcore.ShortCallerEncoder,
				EncodeDuration: zapcore.StringDurationEncoder,
			},
		}
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	return cfg.Build()
}

// InitLogger replaces Log with a logger built for env.
func InitLogger(env string) {
	l, err := New(env)
	if err != nil {
		panic("failed to initialize zap logger: " + err.Error())
	}
	Log = l

	Log.Info("Logger initialized", zap.String("env", env))
}

func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}

// Leveled adapts a zap logger to the key/value LeveledLogger shape expected by
// retryablehttp.
type Leveled struct {
	L *zap.Logger
}

func (l Leveled) Error(msg string, keysAndValues ...interface{}) {
	l.L.Error(msg, fields(keysAndValues)...)
}

func (l Leveled) Warn(msg string, keysAndValues ...interface{}) {
	l.L.Warn(msg, fields(keysAndValues)...)
}

func (l Leveled) Info(msg string, keysAndValues ...interface{}) {
	l.L.Info(msg, fields(keysAndValues)...)
}

func (l Leveled) Debug(msg string, keysAndValues ...interface{}) {
	l.L.Debug(msg, fields(keysAndValues)...)
}

func fields(kv []interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		out = append(out, zap.Any(key, kv[i+1]))
	}
	return out
}
