package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLevelFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input     string
		want      slog.Level
		expectErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"INFO", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := levelFromString(tt.input)
		if tt.expectErr {
			if err == nil || !strings.Contains(err.Error(), "invalid log level") {
				t.Fatalf("expected invalid level error for %q, got %v", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", tt.input, err)
		}
		if got != tt.want {
			t.Fatalf("level %q: expected %v, got %v", tt.input, tt.want, got)
		}
	}
}

func TestNewWritesJSONToRotatingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "workx.log")
	logger, closer, err := New(Config{Level: "debug", Format: "json", File: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}

	logger.Debug("reconcile finished", "new_files", 2)
	if err := closer.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"reconcile finished"`) || !strings.Contains(string(data), `"new_files":2`) {
		t.Fatalf("unexpected log output: %s", data)
	}
}

func TestNewRejectsInvalidLevel(t *testing.T) {
	t.Parallel()

	if _, _, err := New(Config{Level: "loud"}); err == nil {
		t.Fatalf("expected invalid level error")
	}
}
