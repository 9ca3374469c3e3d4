// Package chat persists conversations and runs the assistant pipeline:
// store the user message, retrieve grounding chunks from the knowledge
// corpus, assemble the system prompt and relay the exchange to the
// completion client. The user message is persisted before the upstream
// call, so a failed completion never loses what the user wrote.
package chat

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	// HistoryWindow is how many stored messages are replayed to the model
	// as conversation history.
	HistoryWindow = 20

	// MaxMessageLen bounds a single user message.
	MaxMessageLen = 16000

	// MaxTitleLen bounds a conversation title, in runes.
	MaxTitleLen = 120

	// RetrieveTopK is how many knowledge chunks ground a reply.
	RetrieveTopK = 5

	// RetrieveMinSimilarity drops retrieved chunks that are barely related
	// to the message.
	RetrieveMinSimilarity = 0.35
)

var (
	// ErrNotFound is returned when a conversation does not exist or belongs
	// to another user. The two cases are deliberately indistinguishable.
	ErrNotFound = errors.New("conversation not found")

	// ErrEmptyMessage is returned when the message is blank.
	ErrEmptyMessage = errors.New("message must not be empty")

	// ErrMessageTooLong is returned when the message exceeds MaxMessageLen.
	ErrMessageTooLong = errors.New("message too long")

	// ErrInvalidTitle is returned for blank or oversized titles.
	ErrInvalidTitle = errors.New("invalid conversation title")
)

// Conversation is one chat thread. UpdatedAt advances whenever a message
// is added, which is also the list order.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message is one turn in a conversation.
type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversationId"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}
