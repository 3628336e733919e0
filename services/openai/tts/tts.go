package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"multimodalchat/core"

	"github.com/sashabaranov/go-openai"
)

// OpenAITTSConfig holds configuration for the OpenAI speech endpoint
type OpenAITTSConfig struct {
	APIKey  string  `json:"api_key"`
	BaseURL string  `json:"base_url,omitempty"`
	Model   string  `json:"model"`
	Voice   string  `json:"voice"`
	Speed   float64 `json:"speed,omitempty"`
}

// DefaultConfig returns an OpenAITTSConfig with the tts-1 / alloy defaults
func DefaultConfig() OpenAITTSConfig {
	return OpenAITTSConfig{
		Model: string(openai.TTSModel1),
		Voice: string(openai.VoiceAlloy),
	}
}

// OpenAITTS implements the TTS service interface using OpenAI's audio/speech endpoint
type OpenAITTS struct {
	config OpenAITTSConfig
	logger *core.Logger

	client        *openai.Client
	isInitialized bool
	mu            sync.RWMutex
}

// NewOpenAITTS creates a new OpenAI TTS service with the provided config
func NewOpenAITTS(config OpenAITTSConfig, logger *core.Logger) *OpenAITTS {
	defaults := DefaultConfig()
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.Voice == "" {
		config.Voice = defaults.Voice
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &OpenAITTS{
		config: config,
		logger: logger.With(map[string]any{"service": "openai_tts"}),
	}
}

func (o *OpenAITTS) Name() string {
	return "openai"
}

// Init creates the API client
func (o *OpenAITTS) Init(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.isInitialized {
		return nil
	}
	if o.config.APIKey == "" {
		return errors.New("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(o.config.APIKey)
	if o.config.BaseURL != "" {
		clientConfig.BaseURL = o.config.BaseURL
	}
	o.client = openai.NewClientWithConfig(clientConfig)
	o.isInitialized = true
	return nil
}

// Cleanup drops the client
func (o *OpenAITTS) Cleanup() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.client = nil
	o.isInitialized = false
	return nil
}

// Synthesize converts text into a complete mp3 clip
func (o *OpenAITTS) Synthesize(ctx context.Context, text string) (core.AudioClip, error) {
	o.mu.RLock()
	client := o.client
	initialized := o.isInitialized
	o.mu.RUnlock()

	if !initialized {
		return core.AudioClip{}, errors.New("service not initialized")
	}
	if text == "" {
		return core.AudioClip{}, errors.New("text cannot be empty")
	}

	resp, err := client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.config.Model),
		Input:          text,
		Voice:          openai.SpeechVoice(o.config.Voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          o.config.Speed,
	})
	if err != nil {
		return core.AudioClip{}, fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return core.AudioClip{}, fmt.Errorf("openai speech: read body: %w", err)
	}

	o.logger.Debug("speech synthesized", "bytes", len(data), "model", o.config.Model)
	return core.AudioClip{Data: data, Format: core.AudioFileMP3}, nil
}
