package chat

import (
	"context"
	"path/filepath"

	"multimodalchat/handlers/render"
)

// Renderer shows a message in the browser viewer.
type Renderer interface {
	Render(ctx context.Context, text, imageB64 string) (*render.ViewerPage, error)
}

// RenderHook returns a SendHook that renders every message the assistant sends
// and records the written file names on the message.
func RenderHook(renderer Renderer) SendHook {
	return func(ctx context.Context, msg *Message, recipient Agent) error {
		page, err := renderer.Render(ctx, msg.Content, msg.ImageB64)
		if err != nil {
			return err
		}
		if page.ImagePath != "" {
			msg.ImageFile = filepath.Base(page.ImagePath)
		}
		if page.AudioPath != "" {
			msg.AudioFile = filepath.Base(page.AudioPath)
		}
		return nil
	}
}
