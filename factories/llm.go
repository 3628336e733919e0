package factories

import (
	"errors"

	"multimodalchat/core"
	"multimodalchat/handlers/chat"
	openaiimage "multimodalchat/services/openai/image"
	openaillm "multimodalchat/services/openai/llm"
)

// LLMFactoryConfig selects the assistant's chat provider. Every provider
// speaks the OpenAI chat protocol, so each key maps to the same service
// pointed at a different base URL. Set exactly one.
type LLMFactoryConfig struct {
	OpenAIConfig     *openaillm.Config `json:"openai,omitempty"`
	TogetherConfig   *openaillm.Config `json:"together,omitempty"`
	GroqConfig       *openaillm.Config `json:"groq,omitempty"`
	DeepSeekConfig   *openaillm.Config `json:"deepseek,omitempty"`
	OpenRouterConfig *openaillm.Config `json:"openrouter,omitempty"`
	FireworksConfig  *openaillm.Config `json:"fireworks,omitempty"`
	CerebrasConfig   *openaillm.Config `json:"cerebras,omitempty"`
	XAIConfig        *openaillm.Config `json:"xai,omitempty"`
	MistralConfig    *openaillm.Config `json:"mistral,omitempty"`
	PerplexityConfig *openaillm.Config `json:"perplexity,omitempty"`
}

// llmProvider is what a provider name implies when the config leaves it out.
type llmProvider struct {
	baseURL string
	model   string
	apiKey  func(APIKeys) string
}

// llmProviders is keyed by the JSON name of each LLMFactoryConfig field.
// An empty baseURL keeps the go-openai default.
var llmProviders = map[string]llmProvider{
	"openai":     {apiKey: func(k APIKeys) string { return k.OpenAI }},
	"together":   {"https://api.together.xyz/v1", "meta-llama/Llama-3.3-70B-Instruct-Turbo", func(k APIKeys) string { return k.Together }},
	"groq":       {"https://api.groq.com/openai/v1", "llama-3.3-70b-versatile", func(k APIKeys) string { return k.Groq }},
	"deepseek":   {"https://api.deepseek.com/v1", "deepseek-chat", func(k APIKeys) string { return k.DeepSeek }},
	"openrouter": {"https://openrouter.ai/api/v1", "openai/gpt-4o", func(k APIKeys) string { return k.OpenRouter }},
	"fireworks":  {"https://api.fireworks.ai/inference/v1", "accounts/fireworks/models/llama-v3p3-70b-instruct", func(k APIKeys) string { return k.Fireworks }},
	"cerebras":   {"https://api.cerebras.ai/v1", "llama-3.3-70b", func(k APIKeys) string { return k.Cerebras }},
	"xai":        {"https://api.x.ai/v1", "grok-3", func(k APIKeys) string { return k.XAI }},
	"mistral":    {"https://api.mistral.ai/v1", "mistral-large-latest", func(k APIKeys) string { return k.Mistral }},
	"perplexity": {"https://api.perplexity.ai", "sonar-pro", func(k APIKeys) string { return k.Perplexity }},
}

type llmSlot struct {
	name   string
	config *openaillm.Config
}

// slots lists every provider field in selection order.
func (c *LLMFactoryConfig) slots() []llmSlot {
	return []llmSlot{
		{"openai", c.OpenAIConfig},
		{"together", c.TogetherConfig},
		{"groq", c.GroqConfig},
		{"deepseek", c.DeepSeekConfig},
		{"openrouter", c.OpenRouterConfig},
		{"fireworks", c.FireworksConfig},
		{"cerebras", c.CerebrasConfig},
		{"xai", c.XAIConfig},
		{"mistral", c.MistralConfig},
		{"perplexity", c.PerplexityConfig},
	}
}

// selected returns the first configured provider.
func (c LLMFactoryConfig) selected() (llmSlot, bool) {
	for _, s := range c.slots() {
		if s.config != nil {
			return s, true
		}
	}
	return llmSlot{}, false
}

// ProviderName returns the selected provider, or "" when none is set.
func (c LLMFactoryConfig) ProviderName() string {
	s, _ := c.selected()
	return s.name
}

// IsEmpty reports whether no provider is selected.
func (c LLMFactoryConfig) IsEmpty() bool {
	_, ok := c.selected()
	return !ok
}

// resolve copies the selected provider's config and fills in its base URL
// and model when unset.
func (c LLMFactoryConfig) resolve() (openaillm.Config, error) {
	s, ok := c.selected()
	if !ok {
		return openaillm.Config{}, errors.New("LLMFactoryConfig: no provider config specified")
	}
	cfg := *s.config
	p := llmProviders[s.name]
	if cfg.BaseURL == "" {
		cfg.BaseURL = p.baseURL
	}
	if cfg.Model == "" {
		cfg.Model = p.model
	}
	return cfg, nil
}

// BuildLLMService constructs an LLMService from the given factory config.
func BuildLLMService(config LLMFactoryConfig, logger *core.Logger) (chat.LLMService, error) {
	cfg, err := config.resolve()
	if err != nil {
		return nil, err
	}
	return openaillm.NewOpenAILLMService(cfg, logger), nil
}

// injectLLMKeys sets each configured provider's key from keys unless the
// JSON already carried one.
func injectLLMKeys(cfg *LLMFactoryConfig, keys APIKeys) {
	for _, s := range cfg.slots() {
		if s.config != nil && s.config.APIKey == "" {
			s.config.APIKey = llmProviders[s.name].apiKey(keys)
		}
	}
}

// BuildImageService constructs the image-generation service. Image generation
// is OpenAI only; the other providers here have no images endpoint.
func BuildImageService(config openaiimage.Config, logger *core.Logger) *openaiimage.OpenAIImageService {
	return openaiimage.NewOpenAIImageService(config, logger)
}
