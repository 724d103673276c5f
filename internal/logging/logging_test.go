package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/seenimoa/annualreport/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		cfg       config.LoggingConfig
		wantLevel zapcore.Level
	}{
		{config.LoggingConfig{Level: "info", Format: "console"}, zapcore.InfoLevel},
		{config.LoggingConfig{Level: "debug", Format: "json"}, zapcore.DebugLevel},
		{config.LoggingConfig{Level: "warn", Format: ""}, zapcore.WarnLevel},
	}
	for _, tt := range tests {
		logger, err := New(tt.cfg)
		if err != nil {
			t.Fatalf("New(%+v) error: %v", tt.cfg, err)
		}
		if !logger.Core().Enabled(tt.wantLevel) {
			t.Errorf("New(%+v): level %s not enabled", tt.cfg, tt.wantLevel)
		}
		if tt.wantLevel > zapcore.DebugLevel && logger.Core().Enabled(zapcore.DebugLevel) {
			t.Errorf("New(%+v): debug should be disabled", tt.cfg)
		}
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	if _, err := New(config.LoggingConfig{Level: "loud", Format: "json"}); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := New(config.LoggingConfig{Level: "info", Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}
