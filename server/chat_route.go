package server

import (
	"context"
	"errors"
	"net/http"

	"multimodalchat/handlers/chat"

	"github.com/gin-gonic/gin"
)

// ChatResponder runs one assistant turn.
type ChatResponder interface {
	Respond(ctx context.Context, text string) (chat.Message, error)
}

type chatRequest struct {
	Message string `json:"message" binding:"required"`
}

// chatResponse mirrors the web client's contract: asset URLs are null when
// the reply has no image or no audio.
type chatResponse struct {
	Text     string  `json:"text"`
	ImageURL *string `json:"imageUrl"`
	AudioURL *string `json:"audioUrl"`
}

// WithChat enables POST /api/chat. Call it before Start.
// Returns the server to allow chaining.
func (s *FileServer) WithChat(responder ChatResponder) *FileServer {
	s.router.POST("/api/chat", s.handleChat(responder))
	return s
}

func (s *FileServer) handleChat(responder ChatResponder) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req chatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
			return
		}

		reply, err := responder.Respond(c.Request.Context(), req.Message)
		if err != nil {
			if errors.Is(err, chat.ErrEmptyMessage) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
				return
			}
			s.logger.Error("chat turn failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		resp := chatResponse{Text: reply.Content}
		if reply.ImageFile != "" {
			u := "/generated_images/" + reply.ImageFile
			resp.ImageURL = &u
		}
		if reply.AudioFile != "" {
			u := "/generated_audio/" + reply.AudioFile
			resp.AudioURL = &u
		}
		c.JSON(http.StatusOK, resp)
	}
}
