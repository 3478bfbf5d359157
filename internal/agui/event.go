// Package agui defines the AG-UI (Agent-User Interaction) protocol event types.
// These follow the CopilotKit AG-UI specification for agent <-> frontend streaming.
package agui

import (
	"encoding/json"
	"fmt"
)

// Kind identifies the type of an AG-UI event.
type Kind string

// AG-UI event kind constants.
const (
	KindRunStarted         Kind = "RUN_STARTED"
	KindRunFinished        Kind = "RUN_FINISHED"
	KindRunError           Kind = "RUN_ERROR"
	KindThinkingStart      Kind = "THINKING_START"
	KindThinkingContent    Kind = "THINKING_CONTENT"
	KindThinkingEnd        Kind = "THINKING_END"
	KindToolCallStart      Kind = "TOOL_CALL_START"
	KindToolCallArgs       Kind = "TOOL_CALL_ARGS"
	KindToolCallEnd        Kind = "TOOL_CALL_END"
	KindToolCallResult     Kind = "TOOL_CALL_RESULT"
	KindTextMessageStart   Kind = "TEXT_MESSAGE_START"
	KindTextMessageContent Kind = "TEXT_MESSAGE_CONTENT"
	KindTextMessageEnd     Kind = "TEXT_MESSAGE_END"
	KindCustom             Kind = "CUSTOM"
)

// Legacy aliases seen on the wire from older producers.
const (
	aliasToolCall   = "TOOL_CALL"
	aliasToolResult = "TOOL_RESULT"
)

// CustomRenderComponent is the CUSTOM event name used to inject structured
// UI (forms, information cards, selection-button groups) inline with the
// text/tool flow.
const CustomRenderComponent = "render_component"

// Event is a single decoded AG-UI protocol event. Exactly one producer emits
// the events of a run, in order; consumers must not reorder or buffer them.
type Event struct {
	Kind      Kind   `json:"type"`
	Timestamp int64  `json:"timestamp,omitempty"` // unix millis
	MessageID string `json:"messageId,omitempty"`

	// TEXT_MESSAGE_START
	Role string `json:"role,omitempty"`

	// THINKING_CONTENT / TOOL_CALL_ARGS / TEXT_MESSAGE_CONTENT
	Delta string `json:"delta,omitempty"`

	// TOOL_CALL_* events
	ToolCallID   string `json:"toolCallId,omitempty"`
	ToolCallName string `json:"toolCallName,omitempty"`

	// TOOL_CALL_RESULT
	Content string `json:"content,omitempty"`

	// CUSTOM
	Name  string          `json:"name,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`

	// RUN_ERROR
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// ComponentValue is the payload of a CUSTOM render_component event.
type ComponentValue struct {
	Component string         `json:"component"`
	Props     map[string]any `json:"props,omitempty"`
}

// ComponentValue decodes the event's value as a render_component payload.
func (e *Event) ComponentValue() (ComponentValue, error) {
	var v ComponentValue
	if len(e.Value) == 0 {
		return v, fmt.Errorf("custom event %q: empty value", e.Name)
	}
	if err := json.Unmarshal(e.Value, &v); err != nil {
		return v, fmt.Errorf("custom event %q: %w", e.Name, err)
	}
	return v, nil
}

// wireEvent mirrors Event but keeps the raw type string and the alternate
// field spellings some producers use.
type wireEvent struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	MessageID string          `json:"messageId"`
	Role      string          `json:"role"`
	Delta     string          `json:"delta"`
	Msg       string          `json:"msg"` // alternate spelling of delta
	ToolID    string          `json:"toolCallId"`
	ToolName  string          `json:"toolCallName"`
	Content   string          `json:"content"`
	Result    string          `json:"result"` // alternate spelling of content
	Name      string          `json:"name"`
	Value     json.RawMessage `json:"value"`
	Message   string          `json:"message"`
	Code      string          `json:"code"`
}

// Decode parses a single JSON-encoded AG-UI event. Unknown event types are an
// error: the dispatch set is closed, and silently ignoring an unhandled kind
// would corrupt the assembled message state downstream.
func Decode(data []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return Event{}, fmt.Errorf("decode agui event: %w", err)
	}
	return fromWire(w)
}

func fromWire(w wireEvent) (Event, error) {
	kind, err := normalizeKind(w.Type)
	if err != nil {
		return Event{}, err
	}

	ev := Event{
		Kind:         kind,
		Timestamp:    w.Timestamp,
		MessageID:    w.MessageID,
		Role:         w.Role,
		Delta:        w.Delta,
		ToolCallID:   w.ToolID,
		ToolCallName: w.ToolName,
		Content:      w.Content,
		Name:         w.Name,
		Value:        w.Value,
		Message:      w.Message,
		Code:         w.Code,
	}
	if ev.Delta == "" && w.Msg != "" {
		ev.Delta = w.Msg
	}
	if ev.Content == "" && w.Result != "" {
		ev.Content = w.Result
	}
	return ev, nil
}

// normalizeKind maps a wire type string to a Kind, folding legacy aliases.
func normalizeKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindRunStarted, KindRunFinished, KindRunError,
		KindThinkingStart, KindThinkingContent, KindThinkingEnd,
		KindToolCallStart, KindToolCallArgs, KindToolCallEnd, KindToolCallResult,
		KindTextMessageStart, KindTextMessageContent, KindTextMessageEnd,
		KindCustom:
		return Kind(s), nil
	}
	switch s {
	case aliasToolCall:
		return KindToolCallStart, nil
	case aliasToolResult:
		return KindToolCallResult, nil
	case "":
		return "", fmt.Errorf("agui event missing type")
	}
	return "", fmt.Errorf("unknown agui event type %q", s)
}
