package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RunMetadata is the first JSON line in each run log file.
type RunMetadata struct {
	RunID     string `json:"run_id"`
	Command   string `json:"command,omitempty"`
	StartedAt string `json:"started_at"`
}

// LogEntry is a single JSON log line written after the metadata line.
type LogEntry struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Message   string                 `json:"msg"`
	Attrs     map[string]interface{} `json:"attrs,omitempty"`
}

// LogWriter abstracts the destination for mirrored log entries.
type LogWriter interface {
	Write(level Level, msg string, attrs map[string]interface{})
	Close() error
}

// RunLogWriter writes structured log lines to a per-run .jsonl file.
type RunLogWriter struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// NewRunLogWriter creates logDir and <runID>.jsonl inside it, starting with
// a metadata line.
func NewRunLogWriter(logDir, runID, command string) (*RunLogWriter, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("run log: mkdir %q: %w", logDir, err)
	}

	path := filepath.Join(logDir, runID+".jsonl")
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("run log: create %q: %w", path, err)
	}

	meta := RunMetadata{
		RunID:     runID,
		Command:   command,
		StartedAt: time.Now().UTC().Format(time.RFC3339),
	}
	data, _ := json.Marshal(meta)
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		return nil, fmt.Errorf("run log: write metadata: %w", err)
	}

	return &RunLogWriter{file: f, path: path}, nil
}

// Path returns the log file location.
func (w *RunLogWriter) Path() string {
	return w.path
}

// Write appends a structured log line. Entries that can't be encoded are dropped.
func (w *RunLogWriter) Write(level Level, msg string, attrs map[string]interface{}) {
	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Message:   msg,
		Attrs:     stringifyErrors(attrs),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file != nil {
		w.file.Write(append(data, '\n'))
	}
}

func (w *RunLogWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// error values marshal to {} otherwise
func stringifyErrors(attrs map[string]interface{}) map[string]interface{} {
	if len(attrs) == 0 {
		return attrs
	}
	out := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		if err, ok := v.(error); ok {
			out[k] = err.Error()
			continue
		}
		out[k] = v
	}
	return out
}

// NewTeeLogger creates a Logger that prints through base and also mirrors
// every entry at or above minLevel to writer. Child loggers created via With()
// inherit this.
func NewTeeLogger(base *Logger, writer LogWriter, minLevel Level) *Logger {
	handler := func(level Level, msg string, attrs map[string]interface{}) {
		if base.handlerFunc != nil && level >= base.minLevel {
			base.handlerFunc(level, msg, attrs)
		}
		writer.Write(level, msg, attrs)
	}
	return NewLogger(handler, minLevel)
}
