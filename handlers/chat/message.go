package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Message is one turn exchanged between agents.
type Message struct {
	ID        string
	Sender    string
	Content   string
	ImageB64  string // set when the assistant generated an image for this reply
	CreatedAt time.Time

	// Filled in by send hooks once the assets are on disk.
	ImageFile string
	AudioFile string
}

func NewMessage(sender, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Sender:    sender,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// Agent is anything that can take part in a conversation.
type Agent interface {
	Name() string
	Receive(ctx context.Context, msg Message, sender Agent) error
}

// SendHook runs after an agent delivered a non-silent text message.
// Hooks may annotate msg with the files they produced.
type SendHook func(ctx context.Context, msg *Message, recipient Agent) error
