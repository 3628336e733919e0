package factories

import (
	"os"
	"path/filepath"
	"testing"

	"multimodalchat/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettingsConfig(t *testing.T) {
	cfg := DefaultSettingsConfig()

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "generated_images", cfg.Server.ImageDir)
	assert.Equal(t, "generated_audio", cfg.Server.AudioDir)

	openai := cfg.Assistant.ServiceConfig.OpenAIConfig
	require.NotNil(t, openai)
	assert.Equal(t, "gpt-4", openai.Model)
	assert.InDelta(t, 0.7, openai.Temperature, 1e-6)
	assert.Equal(t, "dall-e-3", cfg.Image.Model)

	assert.Equal(t, "openai", cfg.TTS.ServiceConfig.ProviderName())
	require.Len(t, cfg.TTS.FallbackServiceConfigs, 1)
	assert.Equal(t, "google", cfg.TTS.FallbackServiceConfigs[0].ProviderName())
	assert.Equal(t, cfg.Server.AudioDir, cfg.TTS.HandlerConfig.AudioDir, "speech handler must write where the server serves")

	assert.True(t, cfg.OpenBrowser)
	assert.True(t, cfg.Transcript.Enabled)
}

func TestSettingsConfig_RenderConfigUsesBoundPort(t *testing.T) {
	cfg := DefaultSettingsConfig()
	cfg.Server.Port = 0
	cfg.OpenBrowser = false

	rc := cfg.RenderConfig(41873)

	assert.Equal(t, "http://localhost:41873", rc.BaseURL)
	assert.Equal(t, "http://localhost:41873/generated_images/viewer.html", rc.ViewerURL())
	assert.Equal(t, cfg.Server.ImageDir, rc.ImageDir)
	assert.False(t, rc.OpenBrowser)
}

func TestSettingsConfigFromJSON_OverridesProviders(t *testing.T) {
	data := []byte(`{
		"server": {"port": 9000},
		"open_browser": false,
		"tts": {
			"service": {"elevenlabs": {"voice_id": "abc"}},
			"fallbacks": [{"deepgram": {}}, {"google": {"language": "de"}}]
		},
		"assistant": {"service": {"groq": {}}}
	}`)

	cfg, err := SettingsConfigFromJSON(data)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "generated_images", cfg.Server.ImageDir, "unset server fields keep their defaults")
	assert.False(t, cfg.OpenBrowser)

	assert.Equal(t, "elevenlabs", cfg.TTS.ServiceConfig.ProviderName())
	assert.Nil(t, cfg.TTS.ServiceConfig.OpenAIConfig, "the default primary must be replaced")
	require.Len(t, cfg.TTS.FallbackServiceConfigs, 2)
	assert.Equal(t, "de", cfg.TTS.FallbackServiceConfigs[1].GoogleConfig.Language)

	assert.Equal(t, "groq", cfg.Assistant.ServiceConfig.ProviderName())
	assert.Nil(t, cfg.Assistant.ServiceConfig.OpenAIConfig)
	assert.NotEmpty(t, cfg.Assistant.Agent.SystemMessage, "agent defaults should survive")
}

func TestSettingsConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"image": {"size": "1792x1024"}}`), 0644))

	cfg, err := SettingsConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1792x1024", cfg.Image.Size)
	assert.Equal(t, "dall-e-3", cfg.Image.Model)

	cfg, err = SettingsConfigFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
	assert.Equal(t, 8000, cfg.Server.Port, "expected defaults alongside the error")

	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0644))
	_, err = SettingsConfigFromFile(path)
	assert.Error(t, err)
}

func TestSettingsConfigFromFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9100
  allowed_origins: ["*"]
assistant:
  service:
    groq:
      temperature: 0.2
tts:
  service:
    deepgram:
      model: aura-asteria-en
open_browser: false
`), 0644))

	cfg, err := SettingsConfigFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.False(t, cfg.OpenBrowser)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)

	groq := cfg.Assistant.ServiceConfig.GroqConfig
	require.NotNil(t, groq)
	assert.Nil(t, cfg.Assistant.ServiceConfig.OpenAIConfig)
	assert.InDelta(t, 0.2, groq.Temperature, 1e-6)

	assert.NotNil(t, cfg.TTS.ServiceConfig.DeepgramConfig)
	assert.Empty(t, cfg.TTS.FallbackServiceConfigs)
	assert.Equal(t, "generated_images", cfg.Server.ImageDir, "fields absent from YAML keep their defaults")

	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0644))
	_, err = SettingsConfigFromFile(path)
	assert.Error(t, err)
}

func TestInjectAPIKeys(t *testing.T) {
	cfg, err := SettingsConfigFromJSON([]byte(`{
		"assistant": {"fallbacks": [{"groq": {}}, {"mistral": {"api_key": "mi-json"}}]},
		"tts": {"service": {"openai": {"api_key": "from-json"}}, "fallbacks": [{"elevenlabs": {}}, {"cartesia": {}}]}
	}`))
	require.NoError(t, err)

	cfg.InjectAPIKeys(APIKeys{OpenAI: "sk-env", ElevenLabs: "el-env", Cartesia: "ca-env", Groq: "gq-env", Mistral: "mi-env"})

	assert.Equal(t, "sk-env", cfg.Assistant.ServiceConfig.OpenAIConfig.APIKey)
	assert.Equal(t, "sk-env", cfg.Image.APIKey)
	assert.Equal(t, "gq-env", cfg.Assistant.FallbackServiceConfigs[0].GroqConfig.APIKey)
	assert.Equal(t, "mi-json", cfg.Assistant.FallbackServiceConfigs[1].MistralConfig.APIKey, "keys from JSON must win")
	assert.Equal(t, "from-json", cfg.TTS.ServiceConfig.OpenAIConfig.APIKey, "keys from JSON must win")
	assert.Equal(t, "el-env", cfg.TTS.FallbackServiceConfigs[0].ElevenLabsConfig.APIKey)
	assert.Equal(t, "ca-env", cfg.TTS.FallbackServiceConfigs[1].CartesiaConfig.APIKey)
}

func TestInjectRedis(t *testing.T) {
	cfg := DefaultSettingsConfig()

	cfg.InjectRedis("", "", 0)
	require.Nil(t, cfg.Transcript.Redis, "no addr should leave the mirror off")

	cfg.InjectRedis("redis:6379", "pw", 2)
	require.NotNil(t, cfg.Transcript.Redis)
	assert.Equal(t, "redis:6379", cfg.Transcript.Redis.Addr)
	assert.Equal(t, 2, cfg.Transcript.Redis.DB)
}

func TestSessionTTSConfig_BuildHandler_SkipsKeylessProviders(t *testing.T) {
	cfg := DefaultSettingsConfig()
	cfg.InjectAPIKeys(APIKeys{})

	handler, err := cfg.TTS.BuildHandler(core.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, "google", handler.Service.Name(), "expected google alone without an OpenAI key")
	assert.Empty(t, handler.BackupServices)

	cfg.InjectAPIKeys(APIKeys{OpenAI: "sk"})
	handler, err = cfg.TTS.BuildHandler(core.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, "openai", handler.Service.Name())
	require.Len(t, handler.BackupServices, 1)
	assert.Equal(t, "google", handler.BackupServices[0].Name())
}

func TestSessionTTSConfig_BuildHandler_NoProvider(t *testing.T) {
	cfg, err := SettingsConfigFromJSON([]byte(`{"tts": {"service": {"deepgram": {}}}}`))
	require.NoError(t, err)

	_, err = cfg.TTS.BuildHandler(core.NewNopLogger())
	assert.Error(t, err, "every provider lacks a key")
}

func TestSessionAssistantConfig_BuildAgent(t *testing.T) {
	cfg, err := SettingsConfigFromJSON([]byte(`{"assistant": {"fallbacks": [{"groq": {}}]}}`))
	require.NoError(t, err)
	cfg.InjectAPIKeys(APIKeys{OpenAI: "sk", Groq: "gq"})

	agent, err := cfg.Assistant.BuildAgent(core.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, "assistant", agent.Name())
	assert.Len(t, agent.BackupServices, 1)

	_, err = (SessionAssistantConfig{}).BuildAgent(core.NewNopLogger())
	assert.Error(t, err, "no provider configured")
}
