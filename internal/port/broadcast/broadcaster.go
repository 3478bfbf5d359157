// Package broadcast defines the port for broadcasting real-time events to connected clients.
package broadcast

import "context"

// Broadcaster sends real-time events to connected clients.
type Broadcaster interface {
	// BroadcastEvent sends a typed event to interested clients. Implementations
	// may route payloads that carry a conversation key to a subset of clients.
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
