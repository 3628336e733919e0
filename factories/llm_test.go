package factories

import (
	"testing"

	openaillm "multimodalchat/services/openai/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLLMFactoryConfig_ResolveAppliesProviderDefaults(t *testing.T) {
	tests := []struct {
		name      string
		config    LLMFactoryConfig
		provider  string
		wantURL   string
		wantModel string
	}{
		{
			name:      "openai keeps client default url",
			config:    LLMFactoryConfig{OpenAIConfig: &openaillm.Config{Model: "gpt-4"}},
			provider:  "openai",
			wantURL:   "",
			wantModel: "gpt-4",
		},
		{
			name:      "groq defaults",
			config:    LLMFactoryConfig{GroqConfig: &openaillm.Config{}},
			provider:  "groq",
			wantURL:   "https://api.groq.com/openai/v1",
			wantModel: "llama-3.3-70b-versatile",
		},
		{
			name:      "explicit values win",
			config:    LLMFactoryConfig{MistralConfig: &openaillm.Config{BaseURL: "http://proxy/v1", Model: "mistral-small"}},
			provider:  "mistral",
			wantURL:   "http://proxy/v1",
			wantModel: "mistral-small",
		},
		{
			name:      "first configured provider is selected",
			config:    LLMFactoryConfig{XAIConfig: &openaillm.Config{}, PerplexityConfig: &openaillm.Config{}},
			provider:  "xai",
			wantURL:   "https://api.x.ai/v1",
			wantModel: "grok-3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.provider, tt.config.ProviderName())
			cfg, err := tt.config.resolve()
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, cfg.BaseURL)
			assert.Equal(t, tt.wantModel, cfg.Model)
		})
	}
}

func TestLLMFactoryConfig_ResolveLeavesInputUntouched(t *testing.T) {
	groq := &openaillm.Config{}
	_, err := LLMFactoryConfig{GroqConfig: groq}.resolve()
	require.NoError(t, err)
	assert.Empty(t, groq.BaseURL)
	assert.Empty(t, groq.Model)
}

func TestLLMFactoryConfig_Empty(t *testing.T) {
	var cfg LLMFactoryConfig
	assert.True(t, cfg.IsEmpty())
	assert.Empty(t, cfg.ProviderName())

	_, err := BuildLLMService(cfg, nil)
	assert.Error(t, err)
}

func TestLLMProviders_CoverEveryField(t *testing.T) {
	var cfg LLMFactoryConfig
	for _, s := range cfg.slots() {
		p, ok := llmProviders[s.name]
		require.True(t, ok, "no table entry for %q", s.name)
		assert.NotNil(t, p.apiKey, "%q has no key source", s.name)
	}
	assert.Len(t, llmProviders, len(cfg.slots()))
}
