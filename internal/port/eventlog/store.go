// Package eventlog defines the append-only AG-UI event log port.
package eventlog

import (
	"context"

	"github.com/seralis/chatpilot/internal/agui"
)

// Store persists the ordered AG-UI events of each assistant turn.
type Store interface {
	// Append writes one event with the given sequence number for a message.
	Append(ctx context.Context, messageID string, seq int, ev agui.Event) error
	// Load returns all events of a message ordered by sequence ascending.
	Load(ctx context.Context, messageID string) ([]agui.Event, error)
}
