package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const tokenVisible = 4

func New(json bool, debug bool) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	encoding := "console"

	if json {
		encoding = "json"
	}

	if debug {
		level = zapcore.DebugLevel
	}

	cfg := zap.Config{
		Encoding:         encoding,
		Level:            zap.NewAtomicLevelAt(level),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey: "step",

			LevelKey:    "level",
			EncodeLevel: zapcore.LowercaseLevelEncoder,

			TimeKey:    "time",
			EncodeTime: zapcore.RFC3339TimeEncoder,

			CallerKey:    "caller",
			EncodeCaller: zapcore.ShortCallerEncoder,

			StacktraceKey: "stacktrace",
		},
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return logger, nil
}

// MaskToken hides everything but the edges of a bearer token.
func MaskToken(token string) string {
	token = strings.TrimSpace(token)
	if len(token) <= tokenVisible*2 {
		return strings.Repeat("*", len(token))
	}
	return token[:tokenVisible] + strings.Repeat("*", len(token)-tokenVisible*2) + token[len(token)-tokenVisible:]
}

// Token is a zap field with the masked token.
func Token(token string) zap.Field {
	return zap.String("token", MaskToken(token))
}
