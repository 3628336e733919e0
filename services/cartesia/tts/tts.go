package cartesia

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"multimodalchat/core"
	"multimodalchat/utils/audio"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	defaultCartesiaURL        = "wss://api.cartesia.ai/tts/websocket"
	defaultCartesiaModelID    = "sonic-2"
	defaultCartesiaVoiceID    = "a0e99841-438c-4a64-b679-ae501e7d6091" // Helpful Woman
	defaultCartesiaAPIVersion = "2024-11-13"
	defaultCartesiaLanguage   = "en"
	defaultCartesiaSampleRate = 24000
)

// CartesiaTTSConfig holds configuration for the Cartesia TTS service.
type CartesiaTTSConfig struct {
	APIKey     string `json:"api_key"`
	BaseURL    string `json:"base_url"`
	ModelID    string `json:"model_id"`
	VoiceID    string `json:"voice_id"`
	Language   string `json:"language"`
	APIVersion string `json:"api_version"`
	SampleRate int    `json:"sample_rate"`
}

// CartesiaTTS synthesizes one utterance per call over Cartesia's WebSocket API.
// Audio is requested as raw pcm_s16le and returned wrapped in a WAV container.
type CartesiaTTS struct {
	config CartesiaTTSConfig
	logger *core.Logger

	mu            sync.RWMutex
	isInitialized bool
}

// ── WebSocket protocol messages ───────────────────────────────────────────────

// cartesiaTTSRequest is sent once per utterance.
type cartesiaTTSRequest struct {
	ModelID    string            `json:"model_id"`
	Transcript string            `json:"transcript"`
	Voice      cartesiaVoice     `json:"voice"`
	OutputFmt  cartesiaOutputFmt `json:"output_format"`
	ContextID  string            `json:"context_id"`
	Continue   bool              `json:"continue"`
	Language   string            `json:"language,omitempty"`
}

type cartesiaVoice struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type cartesiaOutputFmt struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

// cartesiaResponse is a text (JSON) frame from Cartesia.
// For audio, Cartesia may either send binary frames (raw PCM) or
// JSON "chunk" frames with base64-encoded audio in the Data field.
type cartesiaResponse struct {
	Type       string `json:"type"`
	ContextID  string `json:"context_id"`
	StatusCode int    `json:"status_code"`
	Done       bool   `json:"done"`
	Error      string `json:"error,omitempty"`
	Data       string `json:"data,omitempty"`
}

// ── Constructor ───────────────────────────────────────────────────────────────

// NewCartesiaTTS creates a new Cartesia TTS service with sensible defaults.
func NewCartesiaTTS(config CartesiaTTSConfig, logger *core.Logger) *CartesiaTTS {
	if config.BaseURL == "" {
		config.BaseURL = defaultCartesiaURL
	}
	if config.ModelID == "" {
		config.ModelID = defaultCartesiaModelID
	}
	if config.VoiceID == "" {
		config.VoiceID = defaultCartesiaVoiceID
	}
	if config.APIVersion == "" {
		config.APIVersion = defaultCartesiaAPIVersion
	}
	if config.Language == "" {
		config.Language = defaultCartesiaLanguage
	}
	if config.SampleRate == 0 {
		config.SampleRate = defaultCartesiaSampleRate
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &CartesiaTTS{
		config: config,
		logger: logger.With(map[string]any{"service": "cartesia_tts"}),
	}
}

// ── IService ──────────────────────────────────────────────────────────────────

func (c *CartesiaTTS) Name() string {
	return "cartesia"
}

func (c *CartesiaTTS) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.config.APIKey == "" {
		return errors.New("cartesia: API key is required")
	}
	c.isInitialized = true
	return nil
}

func (c *CartesiaTTS) Cleanup() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isInitialized = false
	return nil
}

// ── Synthesis ─────────────────────────────────────────────────────────────────

// Synthesize sends the whole transcript under a fresh context_id and collects
// audio until Cartesia reports the context done.
func (c *CartesiaTTS) Synthesize(ctx context.Context, text string) (core.AudioClip, error) {
	c.mu.RLock()
	initialized := c.isInitialized
	c.mu.RUnlock()

	if !initialized {
		return core.AudioClip{}, errors.New("cartesia: service not initialized")
	}
	if strings.TrimSpace(text) == "" {
		return core.AudioClip{}, errors.New("cartesia: text cannot be empty")
	}

	conn, err := c.establishConnection(ctx)
	if err != nil {
		return core.AudioClip{}, err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	contextID := uuid.NewString()
	req := cartesiaTTSRequest{
		ModelID:    c.config.ModelID,
		Transcript: text,
		Voice:      cartesiaVoice{Mode: "id", ID: c.config.VoiceID},
		OutputFmt:  cartesiaOutputFmt{Container: "raw", Encoding: "pcm_s16le", SampleRate: c.config.SampleRate},
		ContextID:  contextID,
		Continue:   false,
		Language:   c.config.Language,
	}
	if err := c.sendJSON(conn, req); err != nil {
		return core.AudioClip{}, fmt.Errorf("cartesia: send request: %w", err)
	}

	pcm, err := c.collectAudio(ctx, conn, contextID)
	if err != nil {
		return core.AudioClip{}, err
	}

	wav, err := audio.PCMBytesToWavBytes(pcm, 1, c.config.SampleRate)
	if err != nil {
		return core.AudioClip{}, fmt.Errorf("cartesia: wrap wav: %w", err)
	}
	seconds, _ := audio.GetPCMDurationSeconds(pcm, 1, c.config.SampleRate)
	c.logger.Debug("speech synthesized", "bytes", len(wav), "seconds", seconds, "model", c.config.ModelID)
	return core.AudioClip{Data: wav, Format: core.AudioFileWAV}, nil
}

func (c *CartesiaTTS) collectAudio(ctx context.Context, conn *websocket.Conn, contextID string) ([]byte, error) {
	var out bytes.Buffer
	for {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("cartesia: read: %w", err)
		}

		if msgType == websocket.BinaryMessage {
			out.Write(msg)
			continue
		}

		var resp cartesiaResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			c.logger.Infof("Cartesia TTS: failed to parse text message: %v – raw: %s", err, string(msg))
			continue
		}
		if resp.ContextID != "" && resp.ContextID != contextID {
			continue
		}

		switch resp.Type {
		case "chunk":
			// Some API versions embed base64-encoded audio in the JSON "chunk" message.
			if resp.Data != "" {
				data, err := base64.StdEncoding.DecodeString(resp.Data)
				if err != nil {
					return nil, fmt.Errorf("cartesia: decode chunk: %w", err)
				}
				out.Write(data)
			}
		case "error":
			return nil, fmt.Errorf("cartesia: %s (status %d)", resp.Error, resp.StatusCode)
		case "done":
			return out.Bytes(), nil
		}
		if resp.Done {
			return out.Bytes(), nil
		}
	}
}

// ── Connection management ─────────────────────────────────────────────────────

func (c *CartesiaTTS) establishConnection(ctx context.Context) (*websocket.Conn, error) {
	const maxRetries = 3
	const baseDelay = 500 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := baseDelay * time.Duration(attempt)
			c.logger.Infof("Cartesia TTS: retrying connection (attempt %d/%d) in %v after error: %v",
				attempt+1, maxRetries, delay, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		conn, err := c.dialConnection(ctx)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("cartesia: failed to connect after %d attempts: %w", maxRetries, lastErr)
}

func (c *CartesiaTTS) dialConnection(ctx context.Context) (*websocket.Conn, error) {
	q := url.Values{}
	q.Set("api_key", c.config.APIKey)
	q.Set("cartesia_version", c.config.APIVersion)

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.DialContext(ctx, c.config.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (c *CartesiaTTS) sendJSON(conn *websocket.Conn, msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, data)
}
