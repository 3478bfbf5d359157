package message

import (
	"strings"
	"testing"
)

func TestFindHelpers(t *testing.T) {
	tc := &ToolCall{ID: "call_1", Name: "search", Status: ToolCompleted, Result: `{"hits":3}`}
	m := &Message{
		ID:     "m1",
		Role:   "assistant",
		Status: StatusEnded,
		ContentParts: []ContentPart{
			NewToolCallPart(tc),
			NewTextPart("Hello", 1),
			NewTextPart("World", 2),
		},
		ToolCalls: []ToolCall{*tc},
	}

	if got := m.FindToolCall("call_1"); got == nil || got.Name != "search" {
		t.Errorf("FindToolCall(call_1) = %+v", got)
	}
	if got := m.FindToolCall("call_2"); got != nil {
		t.Errorf("FindToolCall(call_2) = %+v, want nil", got)
	}

	if got := m.FindToolCallPart("call_1"); got == nil || got.ToolCall != tc {
		t.Errorf("FindToolCallPart(call_1) = %+v", got)
	}
	if got := m.FindToolCallPart("call_2"); got != nil {
		t.Errorf("FindToolCallPart(call_2) = %+v, want nil", got)
	}

	if got := m.FindTextPart(2); got == nil || got.Content != "World" {
		t.Errorf("FindTextPart(2) = %+v", got)
	}
	if got := m.FindTextPart(9); got != nil {
		t.Errorf("FindTextPart(9) = %+v, want nil", got)
	}
}

func TestFindToolCallReturnsMutableElement(t *testing.T) {
	m := &Message{ToolCalls: []ToolCall{{ID: "call_1", Status: ToolExecuting}}}

	tc := m.FindToolCall("call_1")
	tc.Args += `{"q":"x"}`

	if m.ToolCalls[0].Args != `{"q":"x"}` {
		t.Error("FindToolCall must return a pointer into the slice, not a copy")
	}
}

func TestTextContent(t *testing.T) {
	m := &Message{
		ContentParts: []ContentPart{
			NewTextPart("Hello", 1),
			NewToolCallPart(&ToolCall{ID: "c", Status: ToolCompleted}),
			NewTextPart("World", 2),
		},
	}
	if got := m.TextContent(); got != "HelloWorld" {
		t.Errorf("TextContent() = %q, want %q", got, "HelloWorld")
	}

	empty := &Message{}
	if got := empty.TextContent(); got != "" {
		t.Errorf("TextContent() on empty message = %q", got)
	}
}

func TestFinal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusLocal, false},
		{StatusLoading, false},
		{StatusThinking, false},
		{StatusSuccess, false},
		{StatusEnded, true},
		{StatusHistory, true},
	}
	for _, tt := range tests {
		m := &Message{Status: tt.status}
		if got := m.Final(); got != tt.want {
			t.Errorf("Final() with status %s = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		msg     Message
		wantErr string
	}{
		{
			name: "valid message",
			msg: Message{ID: "m1", Status: StatusEnded, ContentParts: []ContentPart{
				NewTextPart("hi", 1),
				NewToolCallPart(&ToolCall{ID: "c1"}),
				NewComponentPart("chart", map[string]any{"series": 1}),
			}},
		},
		{
			name:    "missing id",
			msg:     Message{Status: StatusLocal},
			wantErr: "message id is required",
		},
		{
			name:    "bad status",
			msg:     Message{ID: "m1", Status: "weird"},
			wantErr: "invalid message status",
		},
		{
			name:    "tool_call part without payload",
			msg:     Message{ID: "m1", Status: StatusEnded, ContentParts: []ContentPart{{Type: PartToolCall}}},
			wantErr: "tool_call part without tool call",
		},
		{
			name:    "component part without payload",
			msg:     Message{ID: "m1", Status: StatusEnded, ContentParts: []ContentPart{{Type: PartComponent}}},
			wantErr: "component part without component",
		},
		{
			name:    "unknown part type",
			msg:     Message{ID: "m1", Status: StatusEnded, ContentParts: []ContentPart{{Type: "video"}}},
			wantErr: "invalid content part type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
