package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"multimodalchat/core"
)

// maxChunkChars is the longest text the translate_tts endpoint accepts per request.
const maxChunkChars = 100

// GoogleTTSConfig holds configuration for the Google Translate speech endpoint.
// It needs no API key, which makes it the last-resort provider.
type GoogleTTSConfig struct {
	BaseURL  string `json:"base_url"`
	Language string `json:"language"`
	Slow     bool   `json:"slow"`
	Timeout  int    `json:"timeout_seconds"`
}

// DefaultConfig returns a GoogleTTSConfig with sensible defaults
func DefaultConfig() GoogleTTSConfig {
	return GoogleTTSConfig{
		BaseURL:  "https://translate.google.com/translate_tts",
		Language: "en",
		Timeout:  15,
	}
}

// GoogleTTS fetches mp3 audio from translate_tts, one request per chunk, and
// concatenates the frames.
type GoogleTTS struct {
	config GoogleTTSConfig
	logger *core.Logger
	client *http.Client

	mu            sync.RWMutex
	isInitialized bool
}

func NewGoogleTTS(config GoogleTTSConfig, logger *core.Logger) *GoogleTTS {
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Language == "" {
		config.Language = defaults.Language
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &GoogleTTS{
		config: config,
		logger: logger.With(map[string]any{"service": "google_tts"}),
	}
}

func (g *GoogleTTS) Name() string {
	return "google"
}

func (g *GoogleTTS) Init(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.isInitialized {
		return nil
	}
	g.client = &http.Client{Timeout: time.Duration(g.config.Timeout) * time.Second}
	g.isInitialized = true
	return nil
}

func (g *GoogleTTS) Cleanup() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.isInitialized = false
	return nil
}

// Synthesize splits text into endpoint-sized chunks and returns the joined mp3.
func (g *GoogleTTS) Synthesize(ctx context.Context, text string) (core.AudioClip, error) {
	g.mu.RLock()
	client := g.client
	initialized := g.isInitialized
	g.mu.RUnlock()

	if !initialized {
		return core.AudioClip{}, errors.New("service not initialized")
	}

	chunks := SplitText(text, maxChunkChars)
	if len(chunks) == 0 {
		return core.AudioClip{}, errors.New("text cannot be empty")
	}

	var out bytes.Buffer
	for i, chunk := range chunks {
		data, err := g.fetchChunk(ctx, client, chunk, i, len(chunks))
		if err != nil {
			return core.AudioClip{}, fmt.Errorf("google tts: chunk %d/%d: %w", i+1, len(chunks), err)
		}
		out.Write(data)
	}

	g.logger.Debug("speech synthesized", "chunks", len(chunks), "bytes", out.Len())
	return core.AudioClip{Data: out.Bytes(), Format: core.AudioFileMP3}, nil
}

func (g *GoogleTTS) fetchChunk(ctx context.Context, client *http.Client, chunk string, idx, total int) ([]byte, error) {
	speed := "1"
	if g.config.Slow {
		speed = "0.3"
	}
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", g.config.Language)
	q.Set("q", chunk)
	q.Set("ttsspeed", speed)
	q.Set("idx", strconv.Itoa(idx))
	q.Set("total", strconv.Itoa(total))
	q.Set("textlen", strconv.Itoa(len([]rune(chunk))))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.config.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Referer", "https://translate.google.com/")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// SplitText breaks text into pieces of at most max runes, preferring to cut
// after punctuation, then at whitespace, and only mid-word as a last resort.
// Whitespace-only pieces are dropped.
func SplitText(text string, max int) []string {
	text = strings.TrimSpace(text)
	if text == "" || max <= 0 {
		return nil
	}

	var chunks []string
	runes := []rune(text)
	for len(runes) > 0 {
		if len(runes) <= max {
			chunks = appendChunk(chunks, string(runes))
			break
		}

		cut := -1
		for i := max; i > 0; i-- {
			if isSentenceBreak(runes[i-1]) {
				cut = i
				break
			}
		}
		if cut == -1 {
			for i := max; i > 0; i-- {
				if unicode.IsSpace(runes[i]) {
					cut = i
					break
				}
			}
		}
		if cut <= 0 {
			cut = max
		}

		chunks = appendChunk(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	return chunks
}

func appendChunk(chunks []string, s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return chunks
	}
	return append(chunks, s)
}

func isSentenceBreak(r rune) bool {
	switch r {
	case '.', '!', '?', ',', ';', ':', '\n', '…', '。', '、':
		return true
	}
	return false
}
