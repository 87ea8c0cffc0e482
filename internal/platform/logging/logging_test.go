package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	testCases := []struct {
		name    string
		level   string
		env     string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug development", "debug", "development", zapcore.DebugLevel, false},
		{"warn production", "warn", "production", zapcore.WarnLevel, false},
		{"default production", "", "production", zapcore.InfoLevel, false},
		{"invalid", "loud", "", 0, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			log, err := New(tc.level, tc.env)
			if tc.wantErr {
				if err == nil {
					t.Fatal("New should return error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if !log.Core().Enabled(tc.want) {
				t.Errorf("level %v should be enabled", tc.want)
			}
			if tc.want > zapcore.DebugLevel && log.Core().Enabled(tc.want-1) {
				t.Errorf("level %v should be disabled", tc.want-1)
			}
		})
	}
}
