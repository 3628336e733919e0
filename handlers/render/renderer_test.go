package render

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"multimodalchat/core"
	"multimodalchat/utils/browser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSpeech struct {
	dir   string
	ext   string
	err   error
	calls []string
}

func (f *fakeSpeech) Synthesize(ctx context.Context, text, baseName string) (string, error) {
	f.calls = append(f.calls, baseName)
	if f.err != nil {
		return "", f.err
	}
	path := filepath.Join(f.dir, baseName+f.ext)
	return path, os.WriteFile(path, []byte("audio"), 0644)
}

func newRenderer(t *testing.T, speech Synthesizer, opener browser.Opener) (*Renderer, RenderConfig) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ImageDir = filepath.Join(t.TempDir(), "generated_images")
	r := NewRenderer(cfg, speech, opener, core.NewNopLogger())
	require.NoError(t, r.Initialize())
	r.now = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC) }
	return r, cfg
}

func readViewer(t *testing.T, cfg RenderConfig) string {
	t.Helper()
	html, err := os.ReadFile(filepath.Join(cfg.ImageDir, cfg.ViewerName))
	require.NoError(t, err)
	return string(html)
}

func TestRender_ImageBytesRoundTrip(t *testing.T) {
	speech := &fakeSpeech{dir: t.TempDir(), ext: ".mp3"}
	r, _ := newRenderer(t, speech, nil)
	raw := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0xff, 0x10}

	page, err := r.Render(context.Background(), "Here you go", base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)

	assert.Equal(t, "image_20240309-140507.png", filepath.Base(page.ImagePath))
	got, err := os.ReadFile(page.ImagePath)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestRender_DataURLPrefix(t *testing.T) {
	r, _ := newRenderer(t, nil, nil)
	raw := []byte("png-bytes")

	page, err := r.Render(context.Background(), "img", "data:image/png;base64,"+base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)

	got, err := os.ReadFile(page.ImagePath)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestRender_ViewerReferencesLatestAssets(t *testing.T) {
	speech := &fakeSpeech{dir: t.TempDir(), ext: ".mp3"}
	r, cfg := newRenderer(t, speech, nil)

	_, err := r.Render(context.Background(), "first", base64.StdEncoding.EncodeToString([]byte("first")))
	require.NoError(t, err)
	r.now = func() time.Time { return time.Date(2024, 3, 9, 14, 6, 0, 0, time.UTC) }
	page, err := r.Render(context.Background(), "second", base64.StdEncoding.EncodeToString([]byte("second")))
	require.NoError(t, err)

	html := readViewer(t, cfg)
	assert.Contains(t, html, `src="/generated_images/image_20240309-140600.png"`)
	assert.Contains(t, html, `src="/generated_audio/response_20240309-140600.mp3" type="audio/mpeg"`)
	assert.NotContains(t, html, "140507", "viewer still references previous assets")
	assert.Equal(t, "http://localhost:8000/generated_images/viewer.html", page.URL)
}

func TestRender_WavAudioMimeType(t *testing.T) {
	speech := &fakeSpeech{dir: t.TempDir(), ext: ".wav"}
	r, cfg := newRenderer(t, speech, nil)

	_, err := r.Render(context.Background(), "hi", "")
	require.NoError(t, err)

	assert.Contains(t, readViewer(t, cfg), `type="audio/wav"`)
}

func TestRender_AudioOmittedWhenSpeechFails(t *testing.T) {
	speech := &fakeSpeech{err: errors.New("all providers failed")}
	r, cfg := newRenderer(t, speech, nil)

	page, err := r.Render(context.Background(), "Hello world", "")
	require.NoError(t, err, "speech failure must not fail the render")

	assert.Empty(t, page.AudioPath)
	html := readViewer(t, cfg)
	assert.NotContains(t, html, "<audio")
	assert.Contains(t, html, "Hello world")
	assert.Equal(t, []string{"response_20240309-140507"}, speech.calls)
}

func TestRender_InvalidImageReturnsError(t *testing.T) {
	r, cfg := newRenderer(t, nil, nil)

	_, err := r.Render(context.Background(), "x", "!!not base64!!")
	require.Error(t, err)

	_, err = os.Stat(filepath.Join(cfg.ImageDir, "viewer.html"))
	assert.True(t, os.IsNotExist(err), "viewer should not be written on decode failure")
}

func TestRender_EscapesMessageText(t *testing.T) {
	r, cfg := newRenderer(t, nil, nil)

	_, err := r.Render(context.Background(), "<script>alert(1)</script>", "")
	require.NoError(t, err)

	assert.NotContains(t, readViewer(t, cfg), "<script>")
}

func TestRender_OpensBrowser(t *testing.T) {
	var opened []string
	opener := browser.OpenerFunc(func(url string) error {
		opened = append(opened, url)
		return errors.New("no display")
	})
	r, _ := newRenderer(t, nil, opener)

	_, err := r.Render(context.Background(), "hi", "")
	require.NoError(t, err, "opener errors must not fail the render")
	assert.Equal(t, []string{r.ViewerURL()}, opened)

	r.config.OpenBrowser = false
	_, err = r.Render(context.Background(), "again", "")
	require.NoError(t, err)
	assert.Len(t, opened, 1, "browser opened while disabled")
}
