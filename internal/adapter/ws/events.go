package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/seralis/chatpilot/internal/agui"
)

// Event type constants for WebSocket messages.
const (
	// EventAGUI wraps one AG-UI protocol event of an in-flight turn.
	EventAGUI = "chat.agui"
	// EventTurnStatus is broadcast when a turn starts or ends.
	EventTurnStatus = "chat.turn_status"
)

// TurnStatusEvent is broadcast on turn lifecycle changes.
type TurnStatusEvent struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Status         string `json:"status"` // "started", "completed", "failed", "cancelled"
}

func (e TurnStatusEvent) conversationKey() string { return e.ConversationID }

// AGUIEnvelope carries an AG-UI event plus its conversation routing key.
type AGUIEnvelope struct {
	ConversationID string     `json:"conversation_id"`
	Event          agui.Event `json:"event"`
}

func (e AGUIEnvelope) conversationKey() string { return e.ConversationID }

// conversationKeyed is implemented by payloads that belong to one
// conversation. Connections scoped with ?conversation= only receive keyed
// payloads matching their conversation.
type conversationKeyed interface {
	conversationKey() string
}

// BroadcastEvent marshals a typed event and broadcasts it. Payloads carrying a
// conversation key are routed only to connections subscribed to that
// conversation (or to no particular one); everything else goes to all.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	var key string
	if k, ok := payload.(conversationKeyed); ok {
		key = k.conversationKey()
	}

	h.broadcast(ctx, key, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
