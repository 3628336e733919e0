package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"multimodalchat/core"
	"multimodalchat/utils/browser"
)

const timestampLayout = "20060102-150405"

// Synthesizer writes speech for text to a file named after baseName.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, baseName string) (string, error)
}

// ViewerPage describes the files written by one Render call. Paths are
// absolute or relative to the working directory; names are what the page links.
type ViewerPage struct {
	Path      string
	URL       string
	ImagePath string
	AudioPath string
	Timestamp string
}

// Renderer saves the assets for an assistant message and rewrites the viewer
// page so it shows them.
type Renderer struct {
	config RenderConfig
	speech Synthesizer
	opener browser.Opener
	logger *core.Logger

	mu  sync.Mutex
	now func() time.Time
}

// NewRenderer creates a renderer. A nil opener disables browser opening.
func NewRenderer(config RenderConfig, speech Synthesizer, opener browser.Opener, logger *core.Logger) *Renderer {
	if logger == nil {
		logger = core.GetLogger()
	}
	if opener == nil {
		opener = browser.Nop
	}
	return &Renderer{
		config: config,
		speech: speech,
		opener: opener,
		logger: logger.With(map[string]any{"component": "render"}),
		now:    time.Now,
	}
}

// Initialize creates the image directory.
func (r *Renderer) Initialize() error {
	if err := os.MkdirAll(r.config.ImageDir, 0755); err != nil {
		return fmt.Errorf("render: mkdir %q: %w", r.config.ImageDir, err)
	}
	return nil
}

// ViewerURL is the page address opened after each render.
func (r *Renderer) ViewerURL() string {
	return r.config.ViewerURL()
}

// Render writes the speech clip, the image (when imageB64 is set) and then
// viewer.html. Speech failure leaves the audio block out of the page. An
// image that fails to decode or write is returned as an error and no page is
// written.
func (r *Renderer) Render(ctx context.Context, text, imageB64 string) (*ViewerPage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := r.now().Format(timestampLayout)
	page := &ViewerPage{
		Path:      filepath.Join(r.config.ImageDir, r.config.ViewerName),
		URL:       r.config.ViewerURL(),
		Timestamp: ts,
	}
	data := viewerData{Text: text}

	if r.speech != nil {
		audioPath, err := r.speech.Synthesize(ctx, text, "response_"+ts)
		if err != nil {
			r.logger.Warn("rendering without audio", "error", err)
		} else if audioPath != "" {
			page.AudioPath = audioPath
			data.Audio = filepath.Base(audioPath)
			data.AudioType = core.AudioFileFormatFromExtension(filepath.Ext(audioPath)).MimeType()
		}
	}

	if imageB64 != "" {
		imgData, err := decodeImage(imageB64)
		if err != nil {
			return nil, fmt.Errorf("render: decode image: %w", err)
		}
		name := "image_" + ts + ".png"
		imagePath := filepath.Join(r.config.ImageDir, name)
		if err := os.WriteFile(imagePath, imgData, 0644); err != nil {
			return nil, fmt.Errorf("render: write image: %w", err)
		}
		page.ImagePath = imagePath
		data.Image = name
	}

	var buf bytes.Buffer
	if err := viewerTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render: execute template: %w", err)
	}
	// write to a temp file and rename so the server never serves half a page
	tmp := page.Path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return nil, fmt.Errorf("render: write viewer: %w", err)
	}
	if err := os.Rename(tmp, page.Path); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("render: write viewer: %w", err)
	}

	r.logger.Info("viewer updated", "image", data.Image, "audio", data.Audio)

	if r.config.OpenBrowser {
		if err := r.opener.Open(page.URL); err != nil {
			r.logger.Warn("could not open browser", "url", page.URL, "error", err)
		}
	}
	return page, nil
}

// decodeImage accepts raw standard base64 or a data: URL.
func decodeImage(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 {
			return nil, fmt.Errorf("malformed data URL")
		}
		s = s[i+1:]
	}
	return base64.StdEncoding.DecodeString(s)
}
