package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		conf      LoggingConfig
		override  string
		expectErr bool
	}{
		{name: "Defaults", conf: LoggingConfig{}},
		{name: "Console debug", conf: LoggingConfig{Level: "debug", Format: "console"}},
		{name: "Warning alias", conf: LoggingConfig{Level: "warning"}},
		{name: "Override wins", conf: LoggingConfig{Level: "bogus"}, override: "error"},
		{name: "Bad level", conf: LoggingConfig{Level: "loud"}, expectErr: true},
		{name: "Bad format", conf: LoggingConfig{Format: "xml"}, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.conf, tt.override)
			if tt.expectErr {
				if err == nil {
					t.Errorf("NewLogger() expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewLogger() error = %v", err)
			}
			if logger == nil {
				t.Fatal("NewLogger() returned nil logger")
			}
		})
	}
}

func TestNewLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "prepo.log")
	logger, err := NewLogger(LoggingConfig{Level: "info", OutputFile: path}, "")
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	logger.Info("hello from the test")
	_ = logger.Sync()

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "hello from the test") {
		t.Errorf("log file does not contain the message: %s", content)
	}
}
