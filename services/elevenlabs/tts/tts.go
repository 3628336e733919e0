package elevenlabs

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

	"github.com/gorilla/websocket"
)

// ElevenLabsTTSConfig holds configuration for the ElevenLabs TTS service
type ElevenLabsTTSConfig struct {
	APIKey       string `json:"api_key"`
	BaseURL      string `json:"base_url"`
	VoiceID      string `json:"voice_id"`
	ModelID      string `json:"model_id"`
	OutputFormat string `json:"output_format"`

	// Voice settings
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// ElevenLabsTTS synthesizes one utterance per call over the stream-input WebSocket API
type ElevenLabsTTS struct {
	config ElevenLabsTTSConfig
	logger *core.Logger

	mu            sync.RWMutex
	isInitialized bool
}

// Client messages
type (
	// BOS (Beginning of Stream) - sent once on connect
	elBOSMessage struct {
		Text             string          `json:"text"`
		VoiceSettings    elVoiceSettings `json:"voice_settings"`
		GenerationConfig elGenConfig     `json:"generation_config"`
	}

	elVoiceSettings struct {
		Stability       float64 `json:"stability"`
		SimilarityBoost float64 `json:"similarity_boost"`
	}

	elGenConfig struct {
		ChunkLengthSchedule []int `json:"chunk_length_schedule"`
	}

	// Text chunk message. An empty Text is EOS.
	elTextMessage struct {
		Text string `json:"text"`
	}
)

// Server messages
type (
	// Audio response from ElevenLabs (base64-encoded audio)
	elAudioMessage struct {
		Audio   string `json:"audio"`
		IsFinal bool   `json:"isFinal"`
	}

	elErrorMessage struct {
		Error   string `json:"error"`
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
)

// NewElevenLabsTTS creates a new ElevenLabs TTS service with the provided config
func NewElevenLabsTTS(config ElevenLabsTTSConfig, logger *core.Logger) *ElevenLabsTTS {
	if config.BaseURL == "" {
		config.BaseURL = "wss://api.elevenlabs.io/v1/text-to-speech"
	}
	if config.VoiceID == "" {
		config.VoiceID = "21m00Tcm4TlvDq8ikWAM" // Default: Rachel
	}
	if config.ModelID == "" {
		config.ModelID = "eleven_turbo_v2_5"
	}
	if config.OutputFormat == "" {
		config.OutputFormat = "mp3_44100_128"
	}
	if config.Stability == 0 {
		config.Stability = 0.5
	}
	if config.SimilarityBoost == 0 {
		config.SimilarityBoost = 0.75
	}

	if logger == nil {
		logger = core.GetLogger()
	}
	return &ElevenLabsTTS{
		config: config,
		logger: logger.With(map[string]any{"service": "elevenlabs_tts"}),
	}
}

func (e *ElevenLabsTTS) Name() string {
	return "elevenlabs"
}

// Init validates the configuration
func (e *ElevenLabsTTS) Init(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.isInitialized {
		return nil
	}
	if e.config.APIKey == "" {
		return errors.New("ElevenLabs API key is required")
	}
	if !strings.HasPrefix(e.config.OutputFormat, "mp3_") {
		return fmt.Errorf("unsupported output format %q: only mp3_* formats can be stored", e.config.OutputFormat)
	}

	e.isInitialized = true
	return nil
}

// Cleanup marks the service uninitialized. Connections are per call.
func (e *ElevenLabsTTS) Cleanup() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.isInitialized = false
	return nil
}

// Synthesize opens a stream, sends BOS, the text and EOS, and collects audio
// frames until ElevenLabs reports isFinal or closes the socket.
func (e *ElevenLabsTTS) Synthesize(ctx context.Context, text string) (core.AudioClip, error) {
	e.mu.RLock()
	initialized := e.isInitialized
	e.mu.RUnlock()

	if !initialized {
		return core.AudioClip{}, errors.New("service not initialized")
	}
	if strings.TrimSpace(text) == "" {
		return core.AudioClip{}, errors.New("text cannot be empty")
	}

	conn, err := e.establishConnection(ctx)
	if err != nil {
		return core.AudioClip{}, fmt.Errorf("failed to establish WebSocket connection: %w", err)
	}
	defer closeConnection(conn)

	// Unblock ReadMessage when the caller gives up.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := e.sendBOS(conn); err != nil {
		return core.AudioClip{}, fmt.Errorf("failed to send BOS: %w", err)
	}
	// ElevenLabs expects each text chunk to end with a space.
	if err := e.sendJSON(conn, elTextMessage{Text: text + " "}); err != nil {
		return core.AudioClip{}, fmt.Errorf("failed to send text: %w", err)
	}
	if err := e.sendJSON(conn, elTextMessage{Text: ""}); err != nil {
		return core.AudioClip{}, fmt.Errorf("failed to send EOS: %w", err)
	}

	audio, err := e.collectAudio(ctx, conn)
	if err != nil {
		return core.AudioClip{}, err
	}
	e.logger.Debug("speech synthesized", "bytes", len(audio), "voice", e.config.VoiceID)
	return core.AudioClip{Data: audio, Format: core.AudioFileMP3}, nil
}

// collectAudio reads frames until the final message or a normal close.
func (e *ElevenLabsTTS) collectAudio(ctx context.Context, conn *websocket.Conn) ([]byte, error) {
	var out bytes.Buffer
	for {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) && out.Len() > 0 {
				return out.Bytes(), nil
			}
			return nil, fmt.Errorf("read error: %w", err)
		}

		switch messageType {
		case websocket.TextMessage:
			final, err := e.handleTextMessage(message, &out)
			if err != nil {
				return nil, err
			}
			if final {
				return out.Bytes(), nil
			}
		case websocket.BinaryMessage:
			out.Write(message)
		}
	}
}

// handleTextMessage appends decoded audio to out and reports whether the
// message was the final one.
func (e *ElevenLabsTTS) handleTextMessage(message []byte, out *bytes.Buffer) (bool, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(message, &raw); err != nil {
		e.logger.Debugf("ElevenLabs TTS: failed to parse message: %v", err)
		return false, nil
	}

	if errField, ok := raw["error"]; ok && string(errField) != "null" {
		var errMsg elErrorMessage
		if err := json.Unmarshal(message, &errMsg); err == nil && errMsg.Message != "" {
			return false, fmt.Errorf("ElevenLabs error: %s (code: %d)", errMsg.Message, errMsg.Code)
		}
		return false, fmt.Errorf("ElevenLabs error: %s", string(errField))
	}

	var audioMsg elAudioMessage
	if err := json.Unmarshal(message, &audioMsg); err != nil {
		e.logger.Debugf("ElevenLabs TTS: failed to parse audio message: %v", err)
		return false, nil
	}
	if audioMsg.Audio != "" {
		audioData, err := base64.StdEncoding.DecodeString(audioMsg.Audio)
		if err != nil {
			return false, fmt.Errorf("ElevenLabs TTS: failed to decode audio: %w", err)
		}
		out.Write(audioData)
	}
	return audioMsg.IsFinal, nil
}

// establishConnection dials with retry logic
func (e *ElevenLabsTTS) establishConnection(ctx context.Context) (*websocket.Conn, error) {
	const maxRetries = 3
	const baseDelay = 500 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := baseDelay * time.Duration(attempt)
			e.logger.Infof("ElevenLabs TTS: retrying connection (attempt %d/%d) in %v after error: %v",
				attempt+1, maxRetries, delay, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		conn, err := e.dialConnection(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		return conn, nil
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %w", maxRetries, lastErr)
}

// dialConnection performs a single WebSocket dial to ElevenLabs
func (e *ElevenLabsTTS) dialConnection(ctx context.Context) (*websocket.Conn, error) {
	q := url.Values{}
	q.Set("model_id", e.config.ModelID)
	q.Set("output_format", e.config.OutputFormat)
	endpoint := fmt.Sprintf("%s/%s/stream-input?%s", e.config.BaseURL, e.config.VoiceID, q.Encode())

	headers := map[string][]string{
		"xi-api-key": {e.config.APIKey},
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.DialContext(ctx, endpoint, headers)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (e *ElevenLabsTTS) sendBOS(conn *websocket.Conn) error {
	bos := elBOSMessage{
		Text: " ",
		VoiceSettings: elVoiceSettings{
			Stability:       e.config.Stability,
			SimilarityBoost: e.config.SimilarityBoost,
		},
		GenerationConfig: elGenConfig{
			ChunkLengthSchedule: []int{120, 160, 250, 290},
		},
	}
	return e.sendJSON(conn, bos)
}

// sendJSON marshals and sends a JSON message over WebSocket
func (e *ElevenLabsTTS) sendJSON(conn *websocket.Conn, msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// closeConnection sends a close frame and closes the socket
func closeConnection(conn *websocket.Conn) {
	conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
}
