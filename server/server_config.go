package server

type ServerConfig struct {
	Host       string `json:"host"` // Empty binds every interface.
	Port       int    `json:"port"`
	ImageDir   string `json:"image_dir"`
	AudioDir   string `json:"audio_dir"`
	ViewerName string `json:"viewer_name"`
	// AllowedOrigins lets pages on other origins fetch the assets. "*" allows any.
	AllowedOrigins []string `json:"allowed_origins,omitempty"`
}

// DefaultConfig returns a ServerConfig with sensible defaults.
func DefaultConfig() ServerConfig {
	return ServerConfig{
		Port:       8000,
		ImageDir:   "generated_images",
		AudioDir:   "generated_audio",
		ViewerName: "viewer.html",
	}
}
