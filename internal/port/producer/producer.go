// Package producer defines the AG-UI event producer port: anything that can
// turn a user prompt into an ordered stream of events for one turn.
package producer

import (
	"context"

	"github.com/seralis/chatpilot/internal/agui"
)

// Request identifies one turn to stream.
type Request struct {
	ConversationID string
	// MessageID is the id of the assistant message the events belong to.
	MessageID string
	SessionID string
	// Model overrides the configured default model when set.
	Model     string
	UserInput string
}

// Producer streams the events of one assistant turn. The returned channel is
// closed when the stream ends, whatever the reason; cancelling ctx must stop
// the producer promptly, it may not keep emitting into the void.
type Producer interface {
	Stream(ctx context.Context, req Request) (<-chan agui.Event, error)
}
