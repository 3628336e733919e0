package core

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunLogWriterWritesMetadataAndEntries(t *testing.T) {
	dir := t.TempDir()
	w, err := NewRunLogWriter(dir, "run-1", "chat")
	if err != nil {
		t.Fatalf("NewRunLogWriter: %v", err)
	}
	if w.Path() != filepath.Join(dir, "run-1.jsonl") {
		t.Fatalf("unexpected path %q", w.Path())
	}

	w.Write(LevelWarn, "speech failed", map[string]interface{}{"error": errors.New("boom"), "provider": "openai"})
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// writes after close are dropped
	w.Write(LevelInfo, "late", nil)

	lines := readLines(t, w.Path())
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %v", len(lines), lines)
	}

	var meta RunMetadata
	if err := json.Unmarshal([]byte(lines[0]), &meta); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta.RunID != "run-1" || meta.Command != "chat" || meta.StartedAt == "" {
		t.Errorf("unexpected metadata %+v", meta)
	}

	var entry LogEntry
	if err := json.Unmarshal([]byte(lines[1]), &entry); err != nil {
		t.Fatalf("entry: %v", err)
	}
	if entry.Level != "WARN" || entry.Message != "speech failed" {
		t.Errorf("unexpected entry %+v", entry)
	}
	if entry.Attrs["error"] != "boom" {
		t.Errorf("expected error attr stringified, got %#v", entry.Attrs["error"])
	}
}

type captureWriter struct {
	levels []Level
	msgs   []string
}

func (c *captureWriter) Write(level Level, msg string, attrs map[string]interface{}) {
	c.levels = append(c.levels, level)
	c.msgs = append(c.msgs, msg)
}

func (c *captureWriter) Close() error { return nil }

func TestTeeLoggerMirrorsByLevel(t *testing.T) {
	var console bytes.Buffer
	base := NewDevelopmentLogger(&console, LevelWarn)
	capture := &captureWriter{}

	logger := NewTeeLogger(base, capture, LevelDebug).With(map[string]interface{}{"component": "test"})
	logger.Trace("dropped everywhere")
	logger.Debug("file only")
	logger.Error("both", "code", 7)

	if len(capture.msgs) != 2 || capture.msgs[0] != "file only" || capture.msgs[1] != "both" {
		t.Fatalf("unexpected mirrored messages %v", capture.msgs)
	}
	out := console.String()
	if strings.Contains(out, "file only") {
		t.Errorf("debug line reached the console: %q", out)
	}
	if !strings.Contains(out, "[ERROR] both") || !strings.Contains(out, "code=7") || !strings.Contains(out, "component=test") {
		t.Errorf("unexpected console output %q", out)
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan %s: %v", path, err)
	}
	return lines
}
