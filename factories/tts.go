package factories

import (
	"errors"

	"multimodalchat/core"
	ttshandler "multimodalchat/handlers/tts"
	cartesia "multimodalchat/services/cartesia/tts"
	deepgramtts "multimodalchat/services/deepgram/tts"
	elevenlabs "multimodalchat/services/elevenlabs/tts"
	googletts "multimodalchat/services/google/tts"
	openaitts "multimodalchat/services/openai/tts"
)

// TTSFactoryConfig holds provider-specific configs for TTS service construction.
// Set exactly one provider config; the rest should be left nil.
type TTSFactoryConfig struct {
	OpenAIConfig     *openaitts.OpenAITTSConfig      `json:"openai,omitempty"`
	ElevenLabsConfig *elevenlabs.ElevenLabsTTSConfig `json:"elevenlabs,omitempty"`
	DeepgramConfig   *deepgramtts.DepgramTTSConfig   `json:"deepgram,omitempty"`
	CartesiaConfig   *cartesia.CartesiaTTSConfig     `json:"cartesia,omitempty"`
	GoogleConfig     *googletts.GoogleTTSConfig      `json:"google,omitempty"`
}

// IsEmpty reports whether no provider is selected.
func (c TTSFactoryConfig) IsEmpty() bool {
	return c.OpenAIConfig == nil && c.ElevenLabsConfig == nil && c.DeepgramConfig == nil &&
		c.CartesiaConfig == nil && c.GoogleConfig == nil
}

// ProviderName returns the selected provider, or "" when none is set.
func (c TTSFactoryConfig) ProviderName() string {
	switch {
	case c.OpenAIConfig != nil:
		return "openai"
	case c.ElevenLabsConfig != nil:
		return "elevenlabs"
	case c.DeepgramConfig != nil:
		return "deepgram"
	case c.CartesiaConfig != nil:
		return "cartesia"
	case c.GoogleConfig != nil:
		return "google"
	}
	return ""
}

// missingKey reports whether the selected provider needs an API key it doesn't have.
func (c TTSFactoryConfig) missingKey() bool {
	switch {
	case c.OpenAIConfig != nil:
		return c.OpenAIConfig.APIKey == ""
	case c.ElevenLabsConfig != nil:
		return c.ElevenLabsConfig.APIKey == ""
	case c.DeepgramConfig != nil:
		return c.DeepgramConfig.APIKey == ""
	case c.CartesiaConfig != nil:
		return c.CartesiaConfig.APIKey == ""
	}
	return false
}

// BuildTTSService constructs a TTSService from the given factory config.
// Exactly one provider config must be non-nil.
func BuildTTSService(config TTSFactoryConfig, logger *core.Logger) (ttshandler.TTSService, error) {
	if config.OpenAIConfig != nil {
		return openaitts.NewOpenAITTS(*config.OpenAIConfig, logger), nil
	}
	if config.ElevenLabsConfig != nil {
		return elevenlabs.NewElevenLabsTTS(*config.ElevenLabsConfig, logger), nil
	}
	if config.DeepgramConfig != nil {
		return deepgramtts.NewDepgramTTS(*config.DeepgramConfig, logger), nil
	}
	if config.CartesiaConfig != nil {
		return cartesia.NewCartesiaTTS(*config.CartesiaConfig, logger), nil
	}
	if config.GoogleConfig != nil {
		return googletts.NewGoogleTTS(*config.GoogleConfig, logger), nil
	}
	return nil, errors.New("TTSFactoryConfig: no provider config specified")
}
