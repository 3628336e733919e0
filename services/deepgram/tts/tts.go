package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"multimodalchat/core"
	"multimodalchat/utils/audio"

	"github.com/gorilla/websocket"
)

// maxCharsBeforeFlush is the character limit before an automatic flush is triggered.
// Deepgram returns DATA-0001 (1008) if too many characters are buffered between flushes.
const maxCharsBeforeFlush = 2000

// DepgramTTSConfig holds configuration for the Deepgram TTS service
type DepgramTTSConfig struct {
	APIKey     string `json:"api_key"`
	BaseURL    string `json:"base_url"`
	Model      string `json:"model"`
	Encoding   string `json:"encoding"` // linear16 or mulaw
	SampleRate int    `json:"sample_rate"`
}

// DefaultConfig returns a DepgramTTSConfig with sensible defaults
func DefaultConfig() DepgramTTSConfig {
	return DepgramTTSConfig{
		BaseURL:    "wss://api.deepgram.com/v1/speak",
		Model:      "aura-2-arcas-en",
		Encoding:   "linear16",
		SampleRate: 24000,
	}
}

// DepgramTTS synthesizes one utterance per call over Deepgram's speak WebSocket
// API and wraps the raw audio in a WAV container.
type DepgramTTS struct {
	config DepgramTTSConfig
	logger *core.Logger

	mu            sync.RWMutex
	isInitialized bool
}

// Message types for Deepgram TTS WebSocket protocol
type (
	// Client messages
	speakV1Text struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}

	speakV1Control struct {
		Type string `json:"type"` // Flush, Clear or Close
	}

	// Server messages
	speakV1Metadata struct {
		Type      string `json:"type"`
		RequestID string `json:"request_id"`
		ModelName string `json:"model_name"`
	}

	speakV1Flushed struct {
		Type       string  `json:"type"`
		SequenceID float64 `json:"sequence_id"`
	}

	speakV1Warning struct {
		Type        string `json:"type"`
		Description string `json:"description"`
		Code        string `json:"code"`
	}

	speakV1Error struct {
		Type        string `json:"type"`
		Description string `json:"description"`
		Code        string `json:"code"`
	}
)

// NewDepgramTTS creates a new Deepgram TTS service with the provided config.
// Use DefaultConfig() to get a config with sensible defaults and override only what you need.
func NewDepgramTTS(config DepgramTTSConfig, logger *core.Logger) *DepgramTTS {
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.Encoding == "" {
		config.Encoding = defaults.Encoding
	}
	if config.SampleRate == 0 {
		config.SampleRate = defaults.SampleRate
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &DepgramTTS{
		config: config,
		logger: logger.With(map[string]any{"service": "deepgram_tts"}),
	}
}

// encodingFromString converts a Deepgram API encoding name to core.AudioEncodingFormat
func encodingFromString(encoding string) (core.AudioEncodingFormat, error) {
	switch encoding {
	case "linear16":
		return core.PCM, nil
	case "mulaw":
		return core.ULAW, nil
	case "alaw":
		return core.ALAW, nil
	default:
		return core.PCM, fmt.Errorf("unsupported Deepgram encoding %q", encoding)
	}
}

func (d *DepgramTTS) Name() string {
	return "deepgram"
}

// Init validates the configuration
func (d *DepgramTTS) Init(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isInitialized {
		return nil
	}
	if d.config.APIKey == "" {
		return errors.New("Deepgram API key is required")
	}
	if _, err := encodingFromString(d.config.Encoding); err != nil {
		return err
	}

	d.isInitialized = true
	return nil
}

// Cleanup marks the service uninitialized. Connections are per call.
func (d *DepgramTTS) Cleanup() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.isInitialized = false
	return nil
}

// Synthesize sends the text followed by Flush, collects binary frames until
// Deepgram acknowledges every flush, and returns a WAV clip.
func (d *DepgramTTS) Synthesize(ctx context.Context, text string) (core.AudioClip, error) {
	d.mu.RLock()
	initialized := d.isInitialized
	d.mu.RUnlock()

	if !initialized {
		return core.AudioClip{}, errors.New("service not initialized")
	}
	if strings.TrimSpace(text) == "" {
		return core.AudioClip{}, errors.New("text cannot be empty")
	}

	conn, err := d.establishConnection(ctx)
	if err != nil {
		return core.AudioClip{}, fmt.Errorf("failed to establish WebSocket connection: %w", err)
	}
	defer closeConnection(conn)

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	flushes, err := d.sendText(conn, text)
	if err != nil {
		return core.AudioClip{}, err
	}

	raw, err := d.collectAudio(ctx, conn, flushes)
	if err != nil {
		return core.AudioClip{}, err
	}

	d.sendJSON(conn, speakV1Control{Type: "Close"})

	encoding, _ := encodingFromString(d.config.Encoding)
	pcm, err := audio.ToPCM(raw, encoding)
	if err != nil {
		return core.AudioClip{}, err
	}
	wav, err := audio.PCMBytesToWavBytes(pcm, 1, d.config.SampleRate)
	if err != nil {
		return core.AudioClip{}, fmt.Errorf("deepgram: wrap wav: %w", err)
	}

	seconds, _ := audio.GetPCMDurationSeconds(pcm, 1, d.config.SampleRate)
	d.logger.Debug("speech synthesized", "bytes", len(wav), "seconds", seconds, "model", d.config.Model)
	return core.AudioClip{Data: wav, Format: core.AudioFileWAV}, nil
}

// sendText splits text at maxCharsBeforeFlush, flushing after each piece so
// Deepgram's buffer never fills up. It returns the number of flushes sent.
func (d *DepgramTTS) sendText(conn *websocket.Conn, text string) (int, error) {
	const chunkSize = maxCharsBeforeFlush - 100 // leave headroom
	flushes := 0
	for len(text) > 0 {
		cut := len(text)
		if cut > chunkSize {
			cut = chunkSize
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
		}
		chunk := text[:cut]
		text = text[cut:]

		if err := d.sendJSON(conn, speakV1Text{Type: "Speak", Text: chunk}); err != nil {
			return flushes, fmt.Errorf("failed to send text: %w", err)
		}
		if err := d.sendJSON(conn, speakV1Control{Type: "Flush"}); err != nil {
			return flushes, fmt.Errorf("failed to send flush: %w", err)
		}
		flushes++
	}
	return flushes, nil
}

// collectAudio reads until Deepgram has answered every Flush with Flushed.
func (d *DepgramTTS) collectAudio(ctx context.Context, conn *websocket.Conn, flushes int) ([]byte, error) {
	var out bytes.Buffer
	flushed := 0
	for flushed < flushes {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("read error: %w", err)
		}

		switch messageType {
		case websocket.BinaryMessage:
			out.Write(message)
		case websocket.TextMessage:
			done, err := d.handleTextMessage(message)
			if err != nil {
				return nil, err
			}
			if done {
				flushed++
			}
		}
	}
	return out.Bytes(), nil
}

// handleTextMessage processes JSON messages from Deepgram. It reports true
// for a Flushed acknowledgement.
func (d *DepgramTTS) handleTextMessage(message []byte) (bool, error) {
	var base struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &base); err != nil {
		return false, fmt.Errorf("failed to parse message: %w", err)
	}

	switch base.Type {
	case "Metadata":
		var metadata speakV1Metadata
		if err := json.Unmarshal(message, &metadata); err == nil {
			d.logger.Debugf("TTS Metadata received: model=%s request=%s", metadata.ModelName, metadata.RequestID)
		}
	case "Flushed":
		var flushed speakV1Flushed
		if err := json.Unmarshal(message, &flushed); err == nil {
			d.logger.Debugf("TTS Flush complete, sequence_id: %v", flushed.SequenceID)
		}
		return true, nil
	case "Warning":
		var warning speakV1Warning
		if err := json.Unmarshal(message, &warning); err == nil {
			d.logger.Warnf("Deepgram TTS warning: %s (code: %s)", warning.Description, warning.Code)
		}
	case "Error":
		var errMsg speakV1Error
		if err := json.Unmarshal(message, &errMsg); err == nil {
			return false, fmt.Errorf("Deepgram error: %s (code: %s)", errMsg.Description, errMsg.Code)
		}
		return false, errors.New("Deepgram error")
	}
	return false, nil
}

// establishConnection creates a new WebSocket connection to Deepgram with retry logic
func (d *DepgramTTS) establishConnection(ctx context.Context) (*websocket.Conn, error) {
	const maxRetries = 3
	const baseDelay = 500 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := baseDelay * time.Duration(attempt)
			d.logger.Infof("Deepgram TTS: retrying connection (attempt %d/%d) in %v after error: %v",
				attempt+1, maxRetries, delay, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		conn, err := d.dialConnection(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		return conn, nil
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %w", maxRetries, lastErr)
}

// dialConnection performs a single WebSocket dial attempt to Deepgram
func (d *DepgramTTS) dialConnection(ctx context.Context) (*websocket.Conn, error) {
	q := url.Values{}
	q.Set("model", d.config.Model)
	q.Set("encoding", d.config.Encoding)
	q.Set("sample_rate", strconv.Itoa(d.config.SampleRate))

	// Deepgram requires "Token " prefix for API key
	headers := map[string][]string{
		"Authorization": {fmt.Sprintf("Token %s", d.config.APIKey)},
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.DialContext(ctx, d.config.BaseURL+"?"+q.Encode(), headers)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// sendJSON sends a JSON message over WebSocket
func (d *DepgramTTS) sendJSON(conn *websocket.Conn, msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func closeConnection(conn *websocket.Conn) {
	conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
}
