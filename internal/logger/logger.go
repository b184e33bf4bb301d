package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// process-wide logger
	logger *zap.Logger
	level  = zap.NewAtomicLevelAt(zap.InfoLevel)
	mu     sync.RWMutex
)

func init() {
	logger = newLogger("json")
}

// newLogger builds a zap logger for the given encoding
func newLogger(format string) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if format == "console" {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level)

	return zap.New(core,
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
}

// Init configures level and encoding from config values
func Init(lvl, format string) {
	SetLevel(lvl)

	mu.Lock()
	defer mu.Unlock()
	logger = newLogger(format)
}

func get() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Info logs at INFO level
func Info(msg string, fields ...zap.Field) {
	get().Info(msg, fields...)
}

// Debug logs at DEBUG level
func Debug(msg string, fields ...zap.Field) {
	get().Debug(msg, fields...)
}

// Warn logs at WARN level
func Warn(msg string, fields ...zap.Field) {
	get().Warn(msg, fields...)
}

// Error logs at ERROR level
func Error(msg string, fields ...zap.Field) {
	get().Error(msg, fields...)
}

// Fatal logs at FATAL level and exits
func Fatal(msg string, fields ...zap.Field) {
	get().Fatal(msg, fields...)
}

// With returns a child logger carrying fields
func With(fields ...zap.Field) *zap.Logger {
	return get().With(fields...)
}

// Sync flushes buffered entries
func Sync() {
	_ = get().Sync()
}

// SetLevel changes the level of every logger handed out by this package
func SetLevel(lvl string) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(lvl)); err != nil {
		zapLevel = zap.InfoLevel
	}
	level.SetLevel(zapLevel)
}

// Level current level
func Level() zapcore.Level {
	return level.Level()
}
