package image

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"multimodalchat/core"

	"github.com/sashabaranov/go-openai"
)

// Config holds the configuration for the OpenAI image service
type Config struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model"`
	Size    string `json:"size"`
	Quality string `json:"quality,omitempty"`
	Style   string `json:"style,omitempty"`
}

// DefaultConfig returns a Config for dall-e-3 at 1024x1024
func DefaultConfig() Config {
	return Config{
		Model: openai.CreateImageModelDallE3,
		Size:  openai.CreateImageSize1024x1024,
	}
}

// OpenAIImageService generates images with OpenAI's images endpoint
type OpenAIImageService struct {
	config Config
	logger *core.Logger

	client        *openai.Client
	isInitialized bool
	mu            sync.RWMutex
}

// NewOpenAIImageService creates a new instance of OpenAIImageService
func NewOpenAIImageService(config Config, logger *core.Logger) *OpenAIImageService {
	defaults := DefaultConfig()
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.Size == "" {
		config.Size = defaults.Size
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &OpenAIImageService{
		config: config,
		logger: logger.With(map[string]any{"service": "openai_image"}),
	}
}

// Init creates the API client
func (s *OpenAIImageService) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isInitialized {
		return nil
	}
	if s.config.APIKey == "" {
		return fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(s.config.APIKey)
	if s.config.BaseURL != "" {
		clientConfig.BaseURL = s.config.BaseURL
	}
	s.client = openai.NewClientWithConfig(clientConfig)
	s.isInitialized = true
	return nil
}

// Cleanup performs cleanup operations
func (s *OpenAIImageService) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = nil
	s.isInitialized = false
	return nil
}

// Generate requests one image for prompt, returned as base64 PNG
func (s *OpenAIImageService) Generate(ctx context.Context, prompt string) (core.GeneratedImage, error) {
	s.mu.RLock()
	client := s.client
	initialized := s.isInitialized
	s.mu.RUnlock()

	if !initialized {
		return core.GeneratedImage{}, errors.New("OpenAI image service not initialized")
	}
	if prompt == "" {
		return core.GeneratedImage{}, errors.New("prompt cannot be empty")
	}

	resp, err := client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          s.config.Model,
		N:              1,
		Size:           s.config.Size,
		Quality:        s.config.Quality,
		Style:          s.config.Style,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return core.GeneratedImage{}, fmt.Errorf("failed to create image: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return core.GeneratedImage{}, errors.New("image response contained no data")
	}

	s.logger.Info("image generated", "model", s.config.Model, "size", s.config.Size)
	return core.GeneratedImage{
		B64PNG:        resp.Data[0].B64JSON,
		RevisedPrompt: resp.Data[0].RevisedPrompt,
	}, nil
}
