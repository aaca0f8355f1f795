package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", DebugLevel},
		{"info", InfoLevel},
		{"warn", WarnLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"bogus", InfoLevel},
		{"", InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attache.log")
	log := New(&Config{Level: InfoLevel, Format: "json", Output: path})

	log.Info("hello", "key", "value")
	if err := log.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"hello"`) {
		t.Errorf("log file missing message: %s", data)
	}
}

func TestSetLevel(t *testing.T) {
	log := New(&Config{Level: InfoLevel, Format: "text", Output: os.DevNull})
	if log.GetLevel() != InfoLevel {
		t.Fatalf("expected info level, got %v", log.GetLevel())
	}
	log.SetLevel(DebugLevel)
	if log.GetLevel() != DebugLevel {
		t.Fatalf("expected debug level after SetLevel, got %v", log.GetLevel())
	}
}

func TestFromContextFallsBackToGlobal(t *testing.T) {
	if FromContext(nil) == nil {
		t.Fatal("FromContext(nil) returned nil")
	}
}
