package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasError bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"invalid", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if test.hasError && err == nil {
				t.Error("expected error, got nil")
			}
			if !test.hasError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !test.hasError && level != test.expected {
				t.Errorf("expected %v, got %v", test.expected, level)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(json) = %v, %v", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatText {
		t.Errorf("ParseFormat(\"\") = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func TestJSONFormatWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{
		Level:     LevelDebug,
		Format:    FormatJSON,
		Writer:    &buf,
		Component: "draft",
	})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	logger.Info("draft saved", "keys", 3, "integrity_secret", "s3cr3t")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v", err)
	}
	if entry["msg"] != "draft saved" {
		t.Errorf("unexpected msg: %v", entry["msg"])
	}
	if entry["component"] != "draft" {
		t.Errorf("expected component draft, got %v", entry["component"])
	}
	if entry["integrity_secret"] != "[REDACTED]" {
		t.Errorf("secret not redacted in JSON: %v", entry["integrity_secret"])
	}
}

func TestRedaction(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{Level: LevelInfo, Writer: &buf})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	logger.Info("store opened", "integrity_secret", "hunter2hunter2", "backend", "sqlite")

	out := buf.String()
	if strings.Contains(out, "hunter2") {
		t.Errorf("secret leaked into log: %s", out)
	}
	if !strings.Contains(out, "[REDACTED]") || !strings.Contains(out, "backend=sqlite") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestWithSession(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{Level: LevelInfo, Writer: &buf})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	child, id := logger.WithSession("")
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("session id is not a uuid: %q", id)
	}
	child.Info("opened")
	if !strings.Contains(buf.String(), "session_id="+id) {
		t.Errorf("session id missing: %s", buf.String())
	}

	_, fixed := logger.WithSession("abc")
	if fixed != "abc" {
		t.Errorf("expected provided id to be kept, got %q", fixed)
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "formsync.log")
	logger, err := New(&Config{Level: LevelInfo, Output: "file", FilePath: path})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	logger.Info("to file")
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("log file missing entry: %s", data)
	}
}

func TestDiscard(t *testing.T) {
	l := OrDiscard(nil)
	if l == nil {
		t.Fatal("OrDiscard returned nil")
	}
	l.Error("dropped")
	if l.Enabled(context.Background(), LevelError) {
		t.Error("discard logger should not be enabled for errors")
	}
}
