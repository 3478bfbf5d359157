// Package conversation defines chat threads and their persistence shapes.
package conversation

import (
	"time"

	"github.com/seralis/chatpilot/internal/domain/message"
)

// Conversation represents a chat thread.
type Conversation struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	BotID     string    `json:"bot_id,omitempty"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateRequest is the request body for creating a new conversation.
type CreateRequest struct {
	Title     string `json:"title"`
	BotID     string `json:"bot_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// SendMessageRequest is the request body for sending a message. Regenerate
// re-runs the last user prompt instead of submitting a new one.
type SendMessageRequest struct {
	Content    string `json:"content"`
	Regenerate bool   `json:"regenerate,omitempty"`
}

// Record is a persisted message snapshot: the user prompt or the final
// assembled assistant turn, including its content parts.
type Record struct {
	ID             string                `json:"id"`
	ConversationID string                `json:"conversation_id"`
	Role           string                `json:"role"`
	Status         message.Status        `json:"status"`
	Thinking       string                `json:"thinking,omitempty"`
	ContentParts   []message.ContentPart `json:"content_parts"`
	FullText       string                `json:"full_text,omitempty"`
	UserInput      string                `json:"user_input,omitempty"`
	// EventLog is the serialized AG-UI event array for this turn. Legacy
	// rows hold Python-literal text and go through the history parser.
	EventLog  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TurnLog records the outcome of one streaming run, for audit and token
// accounting.
type TurnLog struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	UserInput      string    `json:"user_input"`
	FinalContent   string    `json:"final_content"`
	EventCount     int       `json:"event_count"`
	TokensIn       int       `json:"tokens_in"`
	TokensOut      int       `json:"tokens_out"`
	Status         string    `json:"status"` // "completed", "failed", "cancelled"
	Error          string    `json:"error,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}
