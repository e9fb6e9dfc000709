package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"chainvote/pkg/config"
)

// DefaultLogConfig returns default logging configuration
func DefaultLogConfig() *config.LogConfig {
	return &config.LogConfig{
		OutputPath: "logs/chainvote.log",
		MaxSize:    20,
		MaxAge:     14,
		MaxBackups: 3,
		Compress:   true,
	}
}

// NewLogger creates a logger writing JSON lines to a rotating file.
// Console mode tees human-readable output to stderr as well.
func NewLogger(cfg *config.LogConfig, level zapcore.LevelEnabler, debug bool) (*zap.Logger, error) {
	if cfg == nil {
		cfg = DefaultLogConfig()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.OutputPath,
		MaxSize:    cfg.MaxSize,
		MaxAge:     cfg.MaxAge,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(rotator),
		level,
	)

	if cfg.Console {
		consoleConfig := encoderConfig
		consoleConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		core = zapcore.NewTee(core, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleConfig),
			zapcore.Lock(os.Stderr),
			level,
		))
	}

	var options []zap.Option
	if debug {
		options = append(options, zap.Development())
	}
	options = append(options,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)

	return zap.New(core, options...), nil
}

// RotateLogs triggers log rotation
func RotateLogs(outputPath string) error {
	rotator := &lumberjack.Logger{
		Filename: outputPath,
	}
	if err := rotator.Rotate(); err != nil {
		return fmt.Errorf("rotating logs: %w", err)
	}
	return nil
}

// CronLogger adapts zap.Logger to the cron.Logger interface
type CronLogger struct {
	log *zap.Logger
}

var _ cron.Logger = (*CronLogger)(nil)

func NewCronLogger(log *zap.Logger) *CronLogger {
	return &CronLogger{log: log}
}

// Info is called by cron for scheduling chatter; it goes to debug
func (l *CronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, toZapFields(keysAndValues...)...)
}

func (l *CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(toZapFields(keysAndValues...), zap.Error(err))...)
}

// Helper to convert interface fields to zap.Field
func toZapFields(fields ...interface{}) []zap.Field {
	zapFields := make([]zap.Field, 0, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		if i+1 < len(fields) {
			zapFields = append(zapFields, zap.Any(fmt.Sprint(fields[i]), fields[i+1]))
		}
	}
	return zapFields
}
