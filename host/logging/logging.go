// Package logging sets up the shared zap logger for the host tools.
// Firmware builds never import this; core logs through its injected
// debug writer instead.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var Logger *zap.Logger

type Level = zapcore.Level

const (
	DebugLevel = zapcore.DebugLevel
	InfoLevel  = zapcore.InfoLevel
	WarnLevel  = zapcore.WarnLevel
	ErrorLevel = zapcore.ErrorLevel
)

func newEncoder() zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		MessageKey:       "message",
		LevelKey:         "level",
		TimeKey:          "time",
		CallerKey:        "caller",
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		ConsoleSeparator: " ",
	}

	return zapcore.NewConsoleEncoder(encoderConfig)
}

func newConsoleCore(encoder zapcore.Encoder, level zapcore.Level) zapcore.Core {
	return zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level)
}

func newFileCore(encoder zapcore.Encoder, level zapcore.Level, logfile string) zapcore.Core {
	logFile := &lumberjack.Logger{
		Filename:   logfile,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     14, // days
		LocalTime:  true,
	}

	return zapcore.NewCore(encoder, zapcore.AddSync(logFile), level)
}

// Init configures the package logger. An empty logfile disables the
// rotating file sink and logs to stdout only.
func Init(level Level, logfile string) {
	encoder := newEncoder()

	core := newConsoleCore(encoder, level)
	if logfile != "" {
		core = zapcore.NewTee(core, newFileCore(encoder, level, logfile))
	}
	Logger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
}

func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

func Infof(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Sugar().Infof(format, args...)
	}
}

func Debugf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Sugar().Debugf(format, args...)
	}
}

func Warnf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Sugar().Warnf(format, args...)
	}
}

func Errorf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Sugar().Errorf(format, args...)
	}
}
