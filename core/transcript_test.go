package core

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileTranscriptWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "transcripts")
	w, err := NewFileTranscriptWriter(dir, "conv-1")
	if err != nil {
		t.Fatalf("NewFileTranscriptWriter: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "conv-1.active")); err != nil {
		t.Fatalf("expected active marker: %v", err)
	}

	if err := w.Append(TranscriptEntry{MessageID: "m1", Role: "assistant", Sender: "assistant", Text: "hi", Image: "image_1.png"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "conv-1.active")); !os.IsNotExist(err) {
		t.Errorf("expected active marker removed, stat err = %v", err)
	}
	if err := w.Append(TranscriptEntry{Text: "late"}); err == nil {
		t.Error("expected append after close to fail")
	}

	lines := readLines(t, w.Path())
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var meta ConversationMetadata
	if err := json.Unmarshal([]byte(lines[0]), &meta); err != nil || meta.ConversationID != "conv-1" {
		t.Fatalf("bad metadata %q: %v", lines[0], err)
	}
	var entry TranscriptEntry
	if err := json.Unmarshal([]byte(lines[1]), &entry); err != nil {
		t.Fatalf("entry: %v", err)
	}
	if entry.Timestamp == "" || entry.Text != "hi" || entry.Image != "image_1.png" {
		t.Errorf("unexpected entry %+v", entry)
	}
}

type failingTranscript struct{ appended int }

func (f *failingTranscript) Append(TranscriptEntry) error {
	f.appended++
	return errors.New("down")
}

func (f *failingTranscript) Close() error { return errors.New("close failed") }

func TestMultiTranscriptWriterFansOut(t *testing.T) {
	w, err := NewFileTranscriptWriter(t.TempDir(), "conv-2")
	if err != nil {
		t.Fatalf("NewFileTranscriptWriter: %v", err)
	}
	failing := &failingTranscript{}
	multi := MultiTranscriptWriter{w, failing}

	if err := multi.Append(TranscriptEntry{Text: "hello"}); err == nil {
		t.Error("expected the failing writer's error")
	}
	if failing.appended != 1 {
		t.Errorf("expected failing writer called once, got %d", failing.appended)
	}
	if err := multi.Close(); err == nil {
		t.Error("expected close error to propagate")
	}
	if got := len(readLines(t, w.Path())); got != 2 {
		t.Errorf("file writer should still record the entry, got %d lines", got)
	}
}
