package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l, closer, err := New(Options{Level: "warn", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer closer.Close()

	l.Info("dropped")
	l.Warn("resolver failed", "kind", "airline", "code", "LH")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1: %q", len(lines), buf.String())
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec["msg"] != "resolver failed" || rec["code"] != "LH" {
		t.Errorf("record = %v", rec)
	}
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	l, _, err := New(Options{Level: "debug"}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Debug("scan", "scanned", 3)

	if !strings.Contains(buf.String(), "msg=scan") || !strings.Contains(buf.String(), "scanned=3") {
		t.Errorf("text output = %q", buf.String())
	}
}

func TestNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gds.log")
	l, closer, err := New(Options{File: path}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("written to file")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file = %q", data)
	}
}

func TestNewInvalid(t *testing.T) {
	if _, _, err := New(Options{Format: "xml"}, nil); err == nil {
		t.Error("New should reject an unknown format")
	}
	if _, _, err := New(Options{Level: "loud"}, nil); err == nil {
		t.Error("New should reject an unknown level")
	}
}
