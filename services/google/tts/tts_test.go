package tts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"multimodalchat/core"
)

func TestSplitText_RespectsLimit(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 8)

	chunks := SplitText(text, 100)

	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := len([]rune(c)); n > 100 {
			t.Errorf("chunk %d has %d runes", i, n)
		}
		if c != strings.TrimSpace(c) || c == "" {
			t.Errorf("chunk %d not trimmed: %q", i, c)
		}
	}
	if joined := strings.Join(chunks, " "); strings.Join(strings.Fields(joined), " ") != strings.Join(strings.Fields(text), " ") {
		t.Errorf("chunks lost words")
	}
}

func TestSplitText_PrefersPunctuation(t *testing.T) {
	chunks := SplitText("Hello there, general. This is fine", 20)

	if len(chunks) == 0 || chunks[0] != "Hello there," {
		t.Errorf("expected cut after comma, got %q", chunks)
	}
}

func TestSplitText_LongWord(t *testing.T) {
	chunks := SplitText(strings.Repeat("a", 250), 100)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
}

func TestSplitText_Empty(t *testing.T) {
	if chunks := SplitText("   \n  ", 100); len(chunks) != 0 {
		t.Errorf("expected no chunks, got %q", chunks)
	}
}

func TestGoogleTTS_Synthesize_ConcatenatesChunks(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		mu.Lock()
		seen = append(seen, q.Get("q"))
		mu.Unlock()
		if q.Get("tl") != "en" || q.Get("client") != "tw-ob" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("[" + q.Get("idx") + "]"))
	}))
	defer server.Close()

	svc := NewGoogleTTS(GoogleTTSConfig{BaseURL: server.URL}, core.NewNopLogger())
	if err := svc.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}

	text := strings.Repeat("word ", 50) // 250 chars -> 3 chunks
	clip, err := svc.Synthesize(context.Background(), text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if clip.Format != core.AudioFileMP3 {
		t.Errorf("expected mp3, got %s", clip.Format)
	}
	if string(clip.Data) != "[0][1][2]" {
		t.Errorf("expected concatenated chunk audio, got %q", clip.Data)
	}
	if len(seen) != 3 {
		t.Errorf("expected 3 requests, got %d", len(seen))
	}
}

func TestGoogleTTS_Synthesize_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	svc := NewGoogleTTS(GoogleTTSConfig{BaseURL: server.URL}, core.NewNopLogger())
	svc.Init(context.Background())

	if _, err := svc.Synthesize(context.Background(), "Hello world"); err == nil {
		t.Fatal("expected error on 429")
	}
}

func TestGoogleTTS_Synthesize_NotInitialized(t *testing.T) {
	svc := NewGoogleTTS(DefaultConfig(), core.NewNopLogger())

	if _, err := svc.Synthesize(context.Background(), "Hello"); err == nil {
		t.Fatal("expected error before Init")
	}
}
