package render

import "fmt"

type RenderConfig struct {
	ImageDir    string `json:"image_dir"`    // Images and viewer.html are written here.
	ViewerName  string `json:"viewer_name"`  // File name of the viewer page inside ImageDir.
	BaseURL     string `json:"base_url"`     // Where the file server is reachable, e.g. http://localhost:8000.
	OpenBrowser bool   `json:"open_browser"` // Open the viewer after every render.
}

// DefaultConfig returns a RenderConfig with sensible defaults.
func DefaultConfig() RenderConfig {
	return RenderConfig{
		ImageDir:    "generated_images",
		ViewerName:  "viewer.html",
		BaseURL:     "http://localhost:8000",
		OpenBrowser: true,
	}
}

// ViewerURL is the address the browser is pointed at.
func (c RenderConfig) ViewerURL() string {
	return fmt.Sprintf("%s/generated_images/%s", c.BaseURL, c.ViewerName)
}
