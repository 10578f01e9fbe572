// Package logger is a process-wide structured logger over zap. Every entry
// takes a message plus alternating key/value pairs:
//
//	logger.Info("Message created", "message_id", id, "total_recipients", n)
//
// LOG_ENV=production selects JSON output, LOG_LEVEL overrides the level.
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the subset fasthttp and the rest of the code rely on.
type Logger interface {
	Info(msg string, values ...any)
	Warn(msg string, values ...any)
	Error(msg string, values ...any)
	Debug(msg string, values ...any)
	Printf(format string, args ...any)
}

type ZapLogger struct {
	log *zap.SugaredLogger
}

var std *ZapLogger

func init() {
	l, err := New(os.Getenv("LOG_ENV"), os.Getenv("LOG_LEVEL"))
	if err != nil {
		panic(err)
	}
	SetDefault(l)
}

// New builds a logger for env ("production" or anything else) at level
// (zap level name, empty keeps the env default).
func New(env, level string) (*ZapLogger, error) {
	config := zap.NewDevelopmentConfig()
	if env == "production" {
		config = zap.NewProductionConfig()
	}
	if level != "" {
		if l, err := zapcore.ParseLevel(strings.ToLower(level)); err == nil {
			config.Level = zap.NewAtomicLevelAt(l)
		}
	}

	z, err := config.Build()
	if err != nil {
		return nil, err
	}
	return FromZap(z), nil
}

// FromZap wraps an existing zap logger, e.g. an observer core in tests.
func FromZap(z *zap.Logger) *ZapLogger {
	// package helpers add two frames between the caller and zap
	return &ZapLogger{log: z.WithOptions(zap.AddCallerSkip(2)).Sugar()}
}

func SetDefault(l *ZapLogger) {
	std = l
}

func GetLogger() *ZapLogger {
	if std == nil {
		panic("logger not initialized")
	}
	return std
}

// Sync flushes buffered entries; call it before the process exits.
func Sync() {
	_ = GetLogger().log.Sync()
}

func Info(msg string, values ...any)  { GetLogger().Info(msg, values...) }
func Warn(msg string, values ...any)  { GetLogger().Warn(msg, values...) }
func Error(msg string, values ...any) { GetLogger().Error(msg, values...) }
func Debug(msg string, values ...any) { GetLogger().Debug(msg, values...) }
func Panic(msg string, values ...any) { GetLogger().Panic(msg, values...) }

// With returns a child logger that adds the given key/value pairs to every
// entry, e.g. logger.With("run_id", id).
func With(values ...any) *ZapLogger {
	return GetLogger().With(values...)
}

// With is called directly rather than through a package helper, so the
// child's caller skip is one frame shorter.
func (l *ZapLogger) With(values ...any) *ZapLogger {
	return &ZapLogger{log: l.log.With(values...).WithOptions(zap.AddCallerSkip(-1))}
}

func (l *ZapLogger) Info(message string, values ...any)  { l.log.Infow(message, values...) }
func (l *ZapLogger) Warn(message string, values ...any)  { l.log.Warnw(message, values...) }
func (l *ZapLogger) Error(message string, values ...any) { l.log.Errorw(message, values...) }
func (l *ZapLogger) Debug(message string, values ...any) { l.log.Debugw(message, values...) }
func (l *ZapLogger) Panic(message string, values ...any) { l.log.Panicw(message, values...) }

// Printf lets fasthttp's server log through the same sink.
func (l *ZapLogger) Printf(format string, args ...any) {
	l.log.Infof(format, args...)
}
