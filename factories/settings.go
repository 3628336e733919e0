package factories

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"multimodalchat/handlers/chat"
	"multimodalchat/handlers/render"
	"multimodalchat/server"
	googletts "multimodalchat/services/google/tts"
	openaiimage "multimodalchat/services/openai/image"
	openaillm "multimodalchat/services/openai/llm"
	openaitts "multimodalchat/services/openai/tts"
	redistranscript "multimodalchat/services/redis/transcript"

	"gopkg.in/yaml.v3"
)

// TranscriptConfig controls where conversations are recorded.
type TranscriptConfig struct {
	Enabled bool   `json:"enabled"`
	Dir     string `json:"dir"`
	// Redis, when set, mirrors every entry into a Redis list.
	Redis *redistranscript.RedisTranscriptConfig `json:"redis,omitempty"`
}

// SettingsConfig is the top-level config loaded from settings.json.
type SettingsConfig struct {
	Server      server.ServerConfig    `json:"server"`
	Assistant   SessionAssistantConfig `json:"assistant"`
	UserProxy   chat.UserProxyConfig   `json:"user_proxy"`
	Image       openaiimage.Config     `json:"image"`
	TTS         SessionTTSConfig       `json:"tts"`
	Transcript  TranscriptConfig       `json:"transcript"`
	OpenBrowser bool                   `json:"open_browser"`
}

// DefaultSettingsConfig returns a SettingsConfig pre-filled with provider defaults:
// OpenAI for chat and images, OpenAI speech with Google Translate as fallback.
func DefaultSettingsConfig() SettingsConfig {
	cfg := baseSettingsConfig()
	cfg.applyProviderDefaults()
	return cfg
}

func baseSettingsConfig() SettingsConfig {
	return SettingsConfig{
		Server:      server.DefaultConfig(),
		Assistant:   DefaultSessionAssistantConfig(),
		UserProxy:   chat.DefaultUserProxyConfig(),
		Image:       openaiimage.DefaultConfig(),
		TTS:         DefaultSessionTTSConfig(),
		Transcript:  TranscriptConfig{Enabled: true, Dir: "transcripts"},
		OpenBrowser: true,
	}
}

// applyProviderDefaults selects the default providers for sections the JSON
// left without any, and keeps the audio directory in one place.
func (c *SettingsConfig) applyProviderDefaults() {
	if c.Assistant.ServiceConfig.IsEmpty() {
		llmCfg := openaillm.DefaultConfig()
		c.Assistant.ServiceConfig.OpenAIConfig = &llmCfg
	}
	if c.TTS.ServiceConfig.IsEmpty() && len(c.TTS.FallbackServiceConfigs) == 0 {
		ttsCfg := openaitts.DefaultConfig()
		googleCfg := googletts.DefaultConfig()
		c.TTS.ServiceConfig.OpenAIConfig = &ttsCfg
		c.TTS.FallbackServiceConfigs = []TTSFactoryConfig{{GoogleConfig: &googleCfg}}
	}
	c.TTS.HandlerConfig.AudioDir = c.Server.AudioDir
}

// SettingsConfigFromJSON parses a JSON blob into a SettingsConfig, starting from
// the defaults so that any fields absent from the JSON retain them. Provider
// sections are only defaulted when the JSON names no provider at all.
func SettingsConfigFromJSON(data []byte) (SettingsConfig, error) {
	cfg := baseSettingsConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: %w", err)
	}
	cfg.applyProviderDefaults()
	return cfg, nil
}

// SettingsConfigFromYAML parses YAML using the same keys as the JSON form.
func SettingsConfigFromYAML(data []byte) (SettingsConfig, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: %w", err)
	}
	return SettingsConfigFromJSON(jsonData)
}

// SettingsConfigFromFile reads and parses a SettingsConfig from a JSON file,
// or YAML when the extension is .yaml or .yml.
func SettingsConfigFromFile(path string) (SettingsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultSettingsConfig(), fmt.Errorf("settings: read %q: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return SettingsConfigFromYAML(data)
	}
	return SettingsConfigFromJSON(data)
}

// RenderConfig derives the renderer settings from the server section. port
// is the one the file server actually bound, which differs from
// Server.Port when that is 0.
func (c SettingsConfig) RenderConfig(port int) render.RenderConfig {
	cfg := render.DefaultConfig()
	cfg.ImageDir = c.Server.ImageDir
	cfg.ViewerName = c.Server.ViewerName
	cfg.BaseURL = fmt.Sprintf("http://localhost:%d", port)
	cfg.OpenBrowser = c.OpenBrowser
	return cfg
}

// APIKeys holds API credentials for all supported service providers.
// Pass to SettingsConfig.InjectAPIKeys after loading from JSON so that
// secrets are never stored in config files.
type APIKeys struct {
	OpenAI     string // Used for OpenAI chat, image and speech.
	ElevenLabs string // Used for ElevenLabs TTS provider.
	Deepgram   string // Used for Deepgram TTS provider.
	Cartesia   string // Used for Cartesia TTS provider.
	Together   string // Used for Together AI LLM provider.
	Groq       string // Used for Groq LLM provider.
	DeepSeek   string // Used for DeepSeek LLM provider.
	OpenRouter string // Used for OpenRouter LLM provider.
	Fireworks  string // Used for Fireworks AI LLM provider.
	Cerebras   string // Used for Cerebras LLM provider.
	XAI        string // Used for xAI (Grok) LLM provider.
	Mistral    string // Used for Mistral AI LLM provider.
	Perplexity string // Used for Perplexity LLM provider.
}

// InjectAPIKeys applies API credentials to all configured service providers
// (primary and fallbacks). Keys already present in the JSON win.
func (c *SettingsConfig) InjectAPIKeys(keys APIKeys) {
	injectLLMKeys(&c.Assistant.ServiceConfig, keys)
	for i := range c.Assistant.FallbackServiceConfigs {
		injectLLMKeys(&c.Assistant.FallbackServiceConfigs[i], keys)
	}

	if c.Image.APIKey == "" {
		c.Image.APIKey = keys.OpenAI
	}

	injectTTSKeys(&c.TTS.ServiceConfig, keys)
	for i := range c.TTS.FallbackServiceConfigs {
		injectTTSKeys(&c.TTS.FallbackServiceConfigs[i], keys)
	}
}

// InjectRedis enables the transcript mirror when addr is set and the JSON
// didn't configure one.
func (c *SettingsConfig) InjectRedis(addr, password string, db int) {
	if addr == "" || c.Transcript.Redis != nil {
		return
	}
	redisCfg := redistranscript.DefaultConfig()
	redisCfg.Addr = addr
	redisCfg.Password = password
	redisCfg.DB = db
	c.Transcript.Redis = &redisCfg
}

// injectTTSKeys applies the relevant API key to a single TTSFactoryConfig.
func injectTTSKeys(cfg *TTSFactoryConfig, keys APIKeys) {
	if cfg.OpenAIConfig != nil && cfg.OpenAIConfig.APIKey == "" {
		cfg.OpenAIConfig.APIKey = keys.OpenAI
	}
	if cfg.ElevenLabsConfig != nil && cfg.ElevenLabsConfig.APIKey == "" {
		cfg.ElevenLabsConfig.APIKey = keys.ElevenLabs
	}
	if cfg.DeepgramConfig != nil && cfg.DeepgramConfig.APIKey == "" {
		cfg.DeepgramConfig.APIKey = keys.Deepgram
	}
	if cfg.CartesiaConfig != nil && cfg.CartesiaConfig.APIKey == "" {
		cfg.CartesiaConfig.APIKey = keys.Cartesia
	}
}
