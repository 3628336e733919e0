package factories

import (
	"fmt"

	"multimodalchat/core"
	"multimodalchat/handlers/chat"
	ttshandler "multimodalchat/handlers/tts"
)

// SessionTTSConfig bundles speech handler config with primary and optional fallback service factory configs.
type SessionTTSConfig struct {
	// HandlerConfig controls handler-level behaviour (normalization, length cap).
	HandlerConfig ttshandler.TTSConfig `json:"handler"`
	// ServiceConfig selects and configures the primary TTS provider.
	// Set exactly one provider field inside TTSFactoryConfig.
	ServiceConfig TTSFactoryConfig `json:"service"`
	// FallbackServiceConfigs is an ordered list of fallback providers tried if the primary fails.
	FallbackServiceConfigs []TTSFactoryConfig `json:"fallbacks,omitempty"`
}

// DefaultSessionTTSConfig returns a SessionTTSConfig with sensible handler defaults.
// Providers are filled in by SettingsConfig when none are configured.
func DefaultSessionTTSConfig() SessionTTSConfig {
	return SessionTTSConfig{
		HandlerConfig: ttshandler.DefaultConfig(),
	}
}

// BuildHandler constructs a SpeechHandler with primary and fallback services wired up.
// Providers that need an API key and have none are skipped with a warning; the
// first remaining one becomes the primary.
func (c SessionTTSConfig) BuildHandler(logger *core.Logger) (*ttshandler.SpeechHandler, error) {
	if logger == nil {
		logger = core.GetLogger()
	}
	configs := append([]TTSFactoryConfig{c.ServiceConfig}, c.FallbackServiceConfigs...)

	var services []ttshandler.TTSService
	for i, cfg := range configs {
		if cfg.IsEmpty() {
			continue
		}
		if cfg.missingKey() {
			logger.Warn("skipping tts provider without API key", "provider", cfg.ProviderName(), "position", i)
			continue
		}
		svc, err := BuildTTSService(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("tts provider[%d]: %w", i, err)
		}
		services = append(services, svc)
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("tts: no usable provider configured")
	}

	handler := ttshandler.NewSpeechHandler(services[0], c.HandlerConfig, logger)
	for _, fb := range services[1:] {
		handler.WithBackupService(fb)
	}
	return handler, nil
}

// SessionAssistantConfig bundles the assistant agent config with primary and fallback LLMs.
type SessionAssistantConfig struct {
	// Agent controls the assistant's name, system message and tool rounds.
	Agent chat.AssistantConfig `json:"agent"`
	// ServiceConfig selects and configures the primary LLM provider.
	ServiceConfig LLMFactoryConfig `json:"service"`
	// FallbackServiceConfigs is an ordered list of fallback providers tried if the primary fails.
	FallbackServiceConfigs []LLMFactoryConfig `json:"fallbacks,omitempty"`
}

// DefaultSessionAssistantConfig returns a SessionAssistantConfig with the default agent.
func DefaultSessionAssistantConfig() SessionAssistantConfig {
	return SessionAssistantConfig{
		Agent: chat.DefaultAssistantConfig(),
	}
}

// BuildAgent constructs the AssistantAgent with its LLM services.
func (c SessionAssistantConfig) BuildAgent(logger *core.Logger) (*chat.AssistantAgent, error) {
	primary, err := BuildLLMService(c.ServiceConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("assistant primary service: %w", err)
	}
	agent := chat.NewAssistantAgent(primary, c.Agent, logger)
	for i, fbCfg := range c.FallbackServiceConfigs {
		fb, err := BuildLLMService(fbCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("assistant fallback[%d]: %w", i, err)
		}
		agent.WithBackupService(fb)
	}
	return agent, nil
}
