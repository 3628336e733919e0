package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"multimodalchat/core"
)

type TTSService interface {
	core.IService
	Name() string
	Synthesize(ctx context.Context, text string) (core.AudioClip, error)
}

// SpeechHandler turns text into an audio file. The primary service is tried
// first on every call; backups are tried in order when it fails.
type SpeechHandler struct {
	*core.BaseHandler[TTSService]
	config TTSConfig
	logger *core.Logger
}

// NewSpeechHandler creates a handler around the primary service.
// Chain WithBackupService to register fallbacks.
func NewSpeechHandler(service TTSService, config TTSConfig, logger *core.Logger) *SpeechHandler {
	if logger == nil {
		logger = core.GetLogger()
	}
	logger = logger.With(map[string]any{"component": "speech"})
	return &SpeechHandler{
		BaseHandler: core.NewBaseHandler[TTSService](service, nil, logger),
		config:      config,
		logger:      logger,
	}
}

// WithBackupService registers a fallback service used when the ones before it fail.
// Returns the handler to allow chaining.
func (h *SpeechHandler) WithBackupService(service TTSService) *SpeechHandler {
	h.BackupServices = append(h.BackupServices, service)
	return h
}

// Initialize creates the audio directory and initializes every provider.
func (h *SpeechHandler) Initialize(ctx context.Context) error {
	if err := os.MkdirAll(h.config.AudioDir, 0755); err != nil {
		return fmt.Errorf("speech: mkdir %q: %w", h.config.AudioDir, err)
	}
	if err := h.BaseHandler.Initialize(ctx); err != nil {
		return fmt.Errorf("speech: %w", err)
	}
	names := make([]string, 0, len(h.Services()))
	for _, svc := range h.Services() {
		names = append(names, svc.Name())
	}
	h.logger.Info("speech providers ready", "providers", names)
	return nil
}

// AudioDir is where clips are written.
func (h *SpeechHandler) AudioDir() string {
	return h.config.AudioDir
}

// Synthesize writes <AudioDir>/<baseName>.<ext> using the first provider that
// returns non-empty audio and returns the file path. On total failure it
// logs every provider's error and returns "" with the joined error.
func (h *SpeechHandler) Synthesize(ctx context.Context, text, baseName string) (string, error) {
	if !h.Initialized() {
		return "", errors.New("speech: handler not initialized")
	}
	if h.config.Normalize {
		text = normalizeTextForTTS(text)
	}
	text = truncateAtWord(text, h.config.MaxTextLength)
	if text == "" {
		h.logger.Warn("nothing to synthesize after normalization", "file", baseName)
		return "", errors.New("speech: empty text")
	}

	var errs []error
	for _, svc := range h.Services() {
		clip, err := svc.Synthesize(ctx, text)
		if err == nil && clip.Empty() {
			err = errors.New("provider returned no audio")
		}
		if err != nil {
			h.logger.Warn("speech provider failed, trying next", "provider", svc.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", svc.Name(), err))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		path := filepath.Join(h.config.AudioDir, baseName+clip.Format.Extension())
		if err := os.WriteFile(path, clip.Data, 0644); err != nil {
			errs = append(errs, fmt.Errorf("write %q: %w", path, err))
			break
		}
		h.logger.Debug("speech saved", "provider", svc.Name(), "path", path, "bytes", len(clip.Data))
		return path, nil
	}

	err := fmt.Errorf("speech: all providers failed: %w", errors.Join(errs...))
	h.logger.Error("Error generating speech", "error", err)
	return "", err
}
