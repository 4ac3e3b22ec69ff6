package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a zap logger from the logging section. A non-empty
// levelOverride (the CLI flag) takes precedence over the configured level.
func NewLogger(conf LoggingConfig, levelOverride string) (*zap.Logger, error) {
	level := conf.Level
	if levelOverride != "" {
		level = levelOverride
	}
	zapLevel, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	var zapConfig zap.Config
	switch conf.Format {
	case "", "json":
		zapConfig = zap.NewProductionConfig()
	case "console":
		zapConfig = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("invalid log format: %s", conf.Format)
	}
	zapConfig.Level = zap.NewAtomicLevelAt(zapLevel)

	if conf.OutputFile != "" {
		if err := ensureWritable(conf.OutputFile); err != nil {
			return nil, err
		}
		zapConfig.OutputPaths = []string{conf.OutputFile}
		zapConfig.ErrorOutputPaths = []string{conf.OutputFile}
	}

	return zapConfig.Build()
}

func parseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s", level)
}

// ensureWritable creates the log directory and checks the file can be opened
// for append.
func ensureWritable(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory %s: %v", dir, err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %v", path, err)
	}
	return file.Close()
}
