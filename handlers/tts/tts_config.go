package tts

type TTSConfig struct {
	AudioDir      string `json:"audio_dir"`       // Directory synthesized clips are written to.
	MaxTextLength int    `json:"max_text_length"` // Longer text is truncated at a word boundary before synthesis. 0 disables.
	Normalize     bool   `json:"normalize"`       // Strip markdown and emoji before synthesis.
}

// DefaultConfig returns a TTSConfig with sensible defaults.
func DefaultConfig() TTSConfig {
	return TTSConfig{
		AudioDir:      "generated_audio",
		MaxTextLength: 4096, // OpenAI's speech input limit
		Normalize:     true,
	}
}
