// Package message defines the conversation message model assembled from
// AG-UI event streams.
package message

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a message.
type Status string

// Message status constants.
const (
	StatusLocal    Status = "local"    // user-authored, never streamed
	StatusLoading  Status = "loading"  // turn started, waiting for content
	StatusThinking Status = "thinking" // reasoning stream in progress
	StatusSuccess  Status = "success"  // content arriving
	StatusEnded    Status = "ended"    // run finished or aborted
	StatusHistory  Status = "history"  // reconstructed from a persisted log
)

// PartType discriminates the ContentPart union.
type PartType string

// Content part type constants.
const (
	PartText      PartType = "text"
	PartToolCall  PartType = "tool_call"
	PartComponent PartType = "component"
)

// ToolCallStatus is the execution state of a tool call.
type ToolCallStatus string

// Tool call status constants.
const (
	ToolExecuting ToolCallStatus = "executing"
	ToolCompleted ToolCallStatus = "completed"
	ToolFailed    ToolCallStatus = "fail"
)

// ToolCall is one tool invocation within an assistant turn. Args is built by
// concatenating argument deltas in arrival order. Once Status reaches
// completed, Result is set and immutable.
type ToolCall struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Args   string         `json:"args"`
	Result string         `json:"result,omitempty"`
	Status ToolCallStatus `json:"status"`
}

// Component is structured UI injected inline by a CUSTOM render_component event.
type Component struct {
	Name  string         `json:"name"`
	Props map[string]any `json:"props,omitempty"`
}

// ContentPart is one ordered fragment of a message body. Exactly one of the
// pointer fields is set, according to Type. Part order equals the order in
// which the corresponding event boundaries arrived; renderers must not group
// parts by type.
type ContentPart struct {
	Type PartType `json:"type"`

	// PartText
	Content      string `json:"content,omitempty"`
	SegmentIndex int    `json:"segmentIndex,omitempty"`

	// PartToolCall
	ToolCall *ToolCall `json:"toolCall,omitempty"`

	// PartComponent
	Component *Component `json:"component,omitempty"`
}

// Message is one conversation turn. An assistant message is mutated in place
// by the event reducer for the duration of one streaming run and becomes
// immutable once Status reaches ended or history.
type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversationId,omitempty"`
	Role           string        `json:"role"` // "user" or "assistant"
	Status         Status        `json:"status"`
	Thinking       string        `json:"thinking,omitempty"`
	ContentParts   []ContentPart `json:"contentParts"`
	// ToolCalls is the legacy flat representation kept alongside the
	// tool_call content parts for the non-parts rendering path.
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`
	// UserInput is the prompt that produced this assistant message, kept
	// for regeneration.
	UserInput string    `json:"userInput,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTextPart creates a text content part for the given segment.
func NewTextPart(content string, segmentIndex int) ContentPart {
	return ContentPart{Type: PartText, Content: content, SegmentIndex: segmentIndex}
}

// NewToolCallPart creates a tool_call content part wrapping tc.
func NewToolCallPart(tc *ToolCall) ContentPart {
	return ContentPart{Type: PartToolCall, ToolCall: tc}
}

// NewComponentPart creates a component content part.
func NewComponentPart(name string, props map[string]any) ContentPart {
	return ContentPart{Type: PartComponent, Component: &Component{Name: name, Props: props}}
}

// FindToolCall returns the tool call with the given id from the flat list,
// or nil when absent.
func (m *Message) FindToolCall(id string) *ToolCall {
	for i := range m.ToolCalls {
		if m.ToolCalls[i].ID == id {
			return &m.ToolCalls[i]
		}
	}
	return nil
}

// FindToolCallPart returns the tool_call content part with the given id,
// or nil when absent.
func (m *Message) FindToolCallPart(id string) *ContentPart {
	for i := range m.ContentParts {
		p := &m.ContentParts[i]
		if p.Type == PartToolCall && p.ToolCall != nil && p.ToolCall.ID == id {
			return p
		}
	}
	return nil
}

// FindTextPart returns the text content part with the given segment index,
// or nil when absent.
func (m *Message) FindTextPart(segmentIndex int) *ContentPart {
	for i := range m.ContentParts {
		p := &m.ContentParts[i]
		if p.Type == PartText && p.SegmentIndex == segmentIndex {
			return p
		}
	}
	return nil
}

// TextContent concatenates all text parts in order.
func (m *Message) TextContent() string {
	var out string
	for _, p := range m.ContentParts {
		if p.Type == PartText {
			out += p.Content
		}
	}
	return out
}

// Final reports whether the message may no longer be mutated.
func (m *Message) Final() bool {
	return m.Status == StatusEnded || m.Status == StatusHistory
}

// Validate checks structural invariants.
func (m *Message) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("message id is required")
	}
	switch m.Status {
	case StatusLocal, StatusLoading, StatusThinking, StatusSuccess, StatusEnded, StatusHistory:
	default:
		return fmt.Errorf("invalid message status %q", m.Status)
	}
	for _, p := range m.ContentParts {
		switch p.Type {
		case PartText:
		case PartToolCall:
			if p.ToolCall == nil {
				return fmt.Errorf("tool_call part without tool call")
			}
		case PartComponent:
			if p.Component == nil {
				return fmt.Errorf("component part without component")
			}
		default:
			return fmt.Errorf("invalid content part type %q", p.Type)
		}
	}
	return nil
}
