package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWithWriter(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		logFunc func(Logger)
		want    []string
		notWant []string
	}{
		{
			name:    "text format default level",
			cfg:     Config{},
			logFunc: func(l Logger) { l.Info("hello", "key", "value") },
			want:    []string{"hello", "key=value"},
		},
		{
			name:    "debug suppressed at default level",
			cfg:     Config{},
			logFunc: func(l Logger) { l.Debug("hidden") },
			notWant: []string{"hidden"},
		},
		{
			name:    "debug visible when level lowered",
			cfg:     Config{Level: slog.LevelDebug},
			logFunc: func(l Logger) { l.Debug("visible") },
			want:    []string{"visible"},
		},
		{
			name:    "json format",
			cfg:     Config{JSON: true},
			logFunc: func(l Logger) { l.Info("structured", "n", 42) },
			want:    []string{`"msg":"structured"`, `"n":42`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithWriter(&buf, tt.cfg)
			tt.logFunc(logger)

			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q, got: %s", w, out)
				}
			}
			for _, nw := range tt.notWant {
				if strings.Contains(out, nw) {
					t.Errorf("output should not contain %q, got: %s", nw, out)
				}
			}
		})
	}
}

func TestNewWithWriterJSONIsValid(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{JSON: true})
	logger.Info("event", "a", 1)

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if m["msg"] != "event" {
		t.Errorf("msg = %v, want event", m["msg"])
	}
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	// Must not panic, output goes nowhere.
	logger.Info("discarded")
	logger.Error("also discarded")
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{})
	child := logger.With("component", "agent")
	child.Info("ready")

	if !strings.Contains(buf.String(), "component=agent") {
		t.Errorf("child logger missing inherited attribute: %s", buf.String())
	}
}
