package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ConversationMetadata is the first JSON line in each transcript file.
type ConversationMetadata struct {
	ConversationID string `json:"conversation_id"`
	StartedAt      string `json:"started_at"`
}

// TranscriptEntry is a single message line written after the metadata line.
type TranscriptEntry struct {
	Timestamp string `json:"ts"`
	MessageID string `json:"message_id"`
	Role      string `json:"role"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Image     string `json:"image,omitempty"`
	Audio     string `json:"audio,omitempty"`
}

// TranscriptWriter abstracts the destination for conversation transcripts.
// Implementations include FileTranscriptWriter and the Redis mirror.
type TranscriptWriter interface {
	Append(entry TranscriptEntry) error
	Close() error
}

// FileTranscriptWriter writes one .jsonl file per conversation.
type FileTranscriptWriter struct {
	mu             sync.Mutex
	file           *os.File
	dir            string
	conversationID string
}

// NewFileTranscriptWriter creates the transcript directory and file, writes
// the metadata line and creates an .active marker removed on Close.
func NewFileTranscriptWriter(dir, conversationID string) (*FileTranscriptWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("transcript: mkdir %q: %w", dir, err)
	}

	filePath := filepath.Join(dir, conversationID+".jsonl")
	f, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("transcript: create %q: %w", filePath, err)
	}

	meta := ConversationMetadata{
		ConversationID: conversationID,
		StartedAt:      time.Now().UTC().Format(time.RFC3339),
	}
	data, _ := json.Marshal(meta)
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		return nil, fmt.Errorf("transcript: write metadata: %w", err)
	}

	activePath := filepath.Join(dir, conversationID+".active")
	if af, err := os.Create(activePath); err == nil {
		af.Close()
	}

	return &FileTranscriptWriter{
		file:           f,
		dir:            dir,
		conversationID: conversationID,
	}, nil
}

// Path returns the transcript file location.
func (w *FileTranscriptWriter) Path() string {
	return filepath.Join(w.dir, w.conversationID+".jsonl")
}

func (w *FileTranscriptWriter) Append(entry TranscriptEntry) error {
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("transcript: marshal: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return errors.New("transcript: writer closed")
	}
	_, err = w.file.Write(append(data, '\n'))
	return err
}

// Close closes the file and removes the .active marker.
func (w *FileTranscriptWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var err error
	if w.file != nil {
		err = w.file.Close()
		w.file = nil
	}
	os.Remove(filepath.Join(w.dir, w.conversationID+".active"))
	return err
}

// MultiTranscriptWriter fans an entry out to every writer.
type MultiTranscriptWriter []TranscriptWriter

func (m MultiTranscriptWriter) Append(entry TranscriptEntry) error {
	var errs []error
	for _, w := range m {
		if err := w.Append(entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiTranscriptWriter) Close() error {
	var errs []error
	for _, w := range m {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
