package chat

import (
	"context"

	"multimodalchat/core"

	"github.com/google/uuid"
)

var banner = []string{
	"",
	"=== MultiModal Chatbot ===",
	"Features:",
	"1. Chat with text responses",
	"2. Generate images",
	"3. Text-to-speech for all responses",
	"",
	"All content will be:",
	"- Saved locally in respective folders",
	"- Displayed in your web browser",
	"- Include audio playback controls",
	"",
	"Starting chat...",
	"",
}

// Conversation drives the turn loop between the human and the assistant.
type Conversation struct {
	ID         string
	user       *UserProxyAgent
	assistant  *AssistantAgent
	transcript core.TranscriptWriter
	logger     *core.Logger
}

// NewConversation pairs a user proxy with an assistant. transcript may be nil.
func NewConversation(user *UserProxyAgent, assistant *AssistantAgent, transcript core.TranscriptWriter, logger *core.Logger) *Conversation {
	if logger == nil {
		logger = core.GetLogger()
	}
	id := uuid.NewString()
	return &Conversation{
		ID:         id,
		user:       user,
		assistant:  assistant,
		transcript: transcript,
		logger:     logger.With(map[string]any{"component": "conversation", "conversation_id": id}),
	}
}

// WithTranscript records every exchanged message to w.
// Returns the conversation to allow chaining.
func (c *Conversation) WithTranscript(w core.TranscriptWriter) *Conversation {
	c.transcript = w
	return c
}

// Initiate prints the banner, sends initialMessage from the user proxy and
// alternates turns until the human stops or ctx is cancelled. A failed LLM
// turn is answered with an apology and the loop goes on.
func (c *Conversation) Initiate(ctx context.Context, initialMessage string) error {
	for _, line := range banner {
		c.user.Println(line)
	}

	text := initialMessage
	turns := 0
	for {
		msg := NewMessage(c.user.Name(), text)
		if err := c.user.Send(ctx, msg, c.assistant); err != nil {
			return err
		}
		c.record(core.LLMMessageRoleUser, msg)

		reply, err := c.assistant.GenerateReply(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("assistant failed to reply", "error", err)
			reply = NewMessage(c.assistant.Name(), apologyMessage)
		}
		if err := c.assistant.Send(ctx, &reply, c.user, false); err != nil {
			return err
		}
		c.record(core.LLMMessageRoleAssistant, reply)
		turns++

		var ok bool
		text, ok = c.user.GetHumanInput(ctx)
		if !ok {
			c.logger.Info("conversation ended", "turns", turns)
			return nil
		}
	}
}

func (c *Conversation) record(role core.LLMMessageRole, msg Message) {
	recordMessage(c.transcript, c.logger, role, msg)
}

func recordMessage(w core.TranscriptWriter, logger *core.Logger, role core.LLMMessageRole, msg Message) {
	if w == nil {
		return
	}
	err := w.Append(core.TranscriptEntry{
		MessageID: msg.ID,
		Role:      string(role),
		Sender:    msg.Sender,
		Text:      msg.Content,
		Image:     msg.ImageFile,
		Audio:     msg.AudioFile,
	})
	if err != nil {
		logger.Warn("transcript append failed", "error", err, "message_id", msg.ID)
	}
}
