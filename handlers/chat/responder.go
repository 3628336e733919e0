package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"multimodalchat/core"

	"github.com/google/uuid"
)

// ErrEmptyMessage is returned by Respond for blank input.
var ErrEmptyMessage = errors.New("message is empty")

// remoteUser is the sender of turns that arrive from outside the terminal.
// Replies are returned to the caller, so delivery is a no-op.
type remoteUser struct {
	name string
}

func (u remoteUser) Name() string { return u.name }

func (u remoteUser) Receive(ctx context.Context, msg Message, sender Agent) error { return nil }

// Responder runs one assistant turn per call. It backs the HTTP chat endpoint.
// Turns are serialized so each reply answers the message that asked for it.
type Responder struct {
	ID         string
	assistant  *AssistantAgent
	user       remoteUser
	transcript core.TranscriptWriter
	logger     *core.Logger

	mu sync.Mutex
}

func NewResponder(assistant *AssistantAgent, userName string, logger *core.Logger) *Responder {
	if logger == nil {
		logger = core.GetLogger()
	}
	if userName == "" {
		userName = DefaultUserProxyConfig().Name
	}
	id := uuid.NewString()
	return &Responder{
		ID:        id,
		assistant: assistant,
		user:      remoteUser{name: userName},
		logger:    logger.With(map[string]any{"component": "responder", "conversation_id": id}),
	}
}

// WithTranscript records every turn to w.
// Returns the responder to allow chaining.
func (r *Responder) WithTranscript(w core.TranscriptWriter) *Responder {
	r.transcript = w
	return r
}

// Respond hands text to the assistant and returns its rendered reply, with
// ImageFile and AudioFile set by the send hooks.
func (r *Responder) Respond(ctx context.Context, text string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	msg := NewMessage(r.user.Name(), text)
	if err := r.assistant.Receive(ctx, msg, r.user); err != nil {
		return Message{}, err
	}
	recordMessage(r.transcript, r.logger, core.LLMMessageRoleUser, msg)

	reply, err := r.assistant.GenerateReply(ctx)
	if err != nil {
		return Message{}, err
	}
	if err := r.assistant.Send(ctx, &reply, r.user, false); err != nil {
		return Message{}, err
	}
	recordMessage(r.transcript, r.logger, core.LLMMessageRoleAssistant, reply)
	return reply, nil
}
