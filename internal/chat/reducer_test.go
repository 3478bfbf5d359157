package chat

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/seralis/chatpilot/internal/agui"
	"github.com/seralis/chatpilot/internal/domain/message"
)

func testCtx() TurnContext {
	return NewTurnContext("msg-1", nil)
}

func TestReduceFullTurn(t *testing.T) {
	events := []agui.Event{
		{Kind: agui.KindRunStarted},
		{Kind: agui.KindThinkingStart},
		{Kind: agui.KindThinkingContent, Delta: "Analyzing"},
		{Kind: agui.KindThinkingEnd},
		{Kind: agui.KindToolCallStart, ToolCallID: "t1", ToolCallName: "Ping"},
		{Kind: agui.KindToolCallArgs, ToolCallID: "t1", Delta: "{}"},
		{Kind: agui.KindToolCallEnd, ToolCallID: "t1"},
		{Kind: agui.KindToolCallResult, ToolCallID: "t1", Content: "pong"},
		{Kind: agui.KindTextMessageStart, Role: "assistant"},
		{Kind: agui.KindTextMessageContent, Delta: "Done"},
		{Kind: agui.KindTextMessageEnd},
		{Kind: agui.KindRunFinished},
	}

	ctx := testCtx()
	st := Reduce(ctx, NewTurnState(ctx, "ping the server"), events)

	if st.Message.Status != message.StatusEnded {
		t.Errorf("expected status ended, got %q", st.Message.Status)
	}
	if st.Message.Thinking != "Analyzing" {
		t.Errorf("expected thinking %q, got %q", "Analyzing", st.Message.Thinking)
	}
	if len(st.Message.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(st.Message.ToolCalls))
	}
	tc := st.Message.ToolCalls[0]
	if tc.ID != "t1" || tc.Args != "{}" || tc.Result != "pong" || tc.Status != message.ToolCompleted {
		t.Errorf("unexpected tool call %+v", tc)
	}
	if len(st.Message.ContentParts) != 2 {
		t.Fatalf("expected 2 content parts, got %d", len(st.Message.ContentParts))
	}
	if st.Message.ContentParts[0].Type != message.PartToolCall {
		t.Errorf("expected first part tool_call, got %q", st.Message.ContentParts[0].Type)
	}
	if got := st.Message.ContentParts[1]; got.Type != message.PartText || got.Content != "Done" {
		t.Errorf("expected text part %q, got %+v", "Done", got)
	}
	if err := st.Message.Validate(); err != nil {
		t.Errorf("final message invalid: %v", err)
	}
}

func TestContentPartOrdering(t *testing.T) {
	component, _ := json.Marshal(map[string]any{"component": "card", "props": map[string]any{"id": "c1"}})
	events := []agui.Event{
		{Kind: agui.KindTextMessageStart},
		{Kind: agui.KindTextMessageContent, Delta: "intro"},
		{Kind: agui.KindToolCallStart, ToolCallID: "t1", ToolCallName: "lookup"},
		{Kind: agui.KindCustom, Name: agui.CustomRenderComponent, Value: component},
		{Kind: agui.KindTextMessageStart},
		{Kind: agui.KindTextMessageContent, Delta: "outro"},
		{Kind: agui.KindRunFinished},
	}

	ctx := testCtx()
	st := Reduce(ctx, NewTurnState(ctx, ""), events)

	wantTypes := []message.PartType{
		message.PartText, message.PartToolCall, message.PartComponent, message.PartText,
	}
	if len(st.Message.ContentParts) != len(wantTypes) {
		t.Fatalf("expected %d parts, got %d", len(wantTypes), len(st.Message.ContentParts))
	}
	for i, want := range wantTypes {
		if st.Message.ContentParts[i].Type != want {
			t.Errorf("part %d: expected %q, got %q", i, want, st.Message.ContentParts[i].Type)
		}
	}
}

func TestToolCallArgsAccumulate(t *testing.T) {
	events := []agui.Event{
		{Kind: agui.KindToolCallStart, ToolCallID: "t1", ToolCallName: "calc"},
		{Kind: agui.KindToolCallArgs, ToolCallID: "t1", Delta: "ab"},
		{Kind: agui.KindToolCallArgs, ToolCallID: "t1", Delta: "cd"},
		{Kind: agui.KindToolCallResult, ToolCallID: "t1", Content: "42"},
	}

	ctx := testCtx()
	st := Reduce(ctx, NewTurnState(ctx, ""), events)

	tc := st.Message.FindToolCall("t1")
	if tc == nil {
		t.Fatal("tool call not found")
	}
	if tc.Args != "abcd" {
		t.Errorf("expected args %q, got %q", "abcd", tc.Args)
	}
	if tc.Status != message.ToolCompleted || tc.Result != "42" {
		t.Errorf("unexpected tool call state %+v", tc)
	}

	// A second result must not overwrite the first.
	st2, err := st.Apply(ctx, agui.Event{Kind: agui.KindToolCallResult, ToolCallID: "t1", Content: "other"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := st2.Message.FindToolCall("t1").Result; got != "42" {
		t.Errorf("result mutated after completion: %q", got)
	}
}

func TestDuplicateToolCallStartFirstWins(t *testing.T) {
	ctx := testCtx()
	st := Reduce(ctx, NewTurnState(ctx, ""), []agui.Event{
		{Kind: agui.KindToolCallStart, ToolCallID: "t1", ToolCallName: "first"},
		{Kind: agui.KindToolCallStart, ToolCallID: "t1", ToolCallName: "second"},
	})
	if len(st.Message.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(st.Message.ToolCalls))
	}
	if st.Message.ToolCalls[0].Name != "first" {
		t.Errorf("expected first start to win, got %q", st.Message.ToolCalls[0].Name)
	}
}

func TestToolCallArgsUnknownID(t *testing.T) {
	ctx := testCtx()
	st := NewTurnState(ctx, "")
	if _, err := st.Apply(ctx, agui.Event{Kind: agui.KindToolCallArgs, ToolCallID: "ghost", Delta: "x"}); err == nil {
		t.Error("expected error for args targeting unknown tool call")
	}
}

func TestFailPendingToolCalls(t *testing.T) {
	ctx := testCtx()
	st := Reduce(ctx, NewTurnState(ctx, ""), []agui.Event{
		{Kind: agui.KindToolCallStart, ToolCallID: "t1", ToolCallName: "Ping"},
		{Kind: agui.KindToolCallResult, ToolCallID: "t1", Content: "pong"},
		{Kind: agui.KindToolCallStart, ToolCallID: "t2", ToolCallName: "Slow"},
	})

	failed := st.FailPendingToolCalls()

	if tc := failed.Message.FindToolCall("t2"); tc == nil || tc.Status != message.ToolFailed {
		t.Errorf("abandoned tool call t2 = %+v, want status %s", tc, message.ToolFailed)
	}
	if p := failed.Message.FindToolCallPart("t2"); p == nil || p.ToolCall.Status != message.ToolFailed {
		t.Errorf("abandoned tool call part t2 = %+v, want status %s", p, message.ToolFailed)
	}
	// A completed call keeps its result and status.
	if tc := failed.Message.FindToolCall("t1"); tc == nil || tc.Status != message.ToolCompleted || tc.Result != "pong" {
		t.Errorf("completed tool call t1 = %+v, want untouched", tc)
	}
	// The prior state value stays intact.
	if tc := st.Message.FindToolCall("t2"); tc == nil || tc.Status != message.ToolExecuting {
		t.Errorf("prior state tool call t2 = %+v, want still executing", tc)
	}
}

func TestSegmentFlush(t *testing.T) {
	events := []agui.Event{
		{Kind: agui.KindTextMessageStart},
		{Kind: agui.KindTextMessageContent, Delta: "Hello"},
		{Kind: agui.KindTextMessageStart},
		{Kind: agui.KindTextMessageContent, Delta: "World"},
	}

	ctx := testCtx()
	st := Reduce(ctx, NewTurnState(ctx, ""), events)

	if len(st.Message.ContentParts) != 2 {
		t.Fatalf("expected 2 text parts, got %d", len(st.Message.ContentParts))
	}
	first := st.Message.FindTextPart(1)
	second := st.Message.FindTextPart(2)
	if first == nil || first.Content != "Hello" {
		t.Errorf("segment 1: expected %q, got %+v", "Hello", first)
	}
	if second == nil || second.Content != "World" {
		t.Errorf("segment 2: expected %q, got %+v", "World", second)
	}
	if st.FullText != "HelloWorld" {
		t.Errorf("expected full text %q, got %q", "HelloWorld", st.FullText)
	}
}

func TestImplicitFirstSegment(t *testing.T) {
	ctx := testCtx()
	st := Reduce(ctx, NewTurnState(ctx, ""), []agui.Event{
		{Kind: agui.KindTextMessageContent, Delta: "no start event"},
	})
	p := st.Message.FindTextPart(1)
	if p == nil || p.Content != "no start event" {
		t.Errorf("expected implicit segment 1, got %+v", p)
	}
}

func TestFinishPrecedence(t *testing.T) {
	ctx := testCtx()
	st := Reduce(ctx, NewTurnState(ctx, ""), []agui.Event{
		{Kind: agui.KindThinkingStart},
		{Kind: agui.KindRunFinished},
	})
	if st.Message.Status != message.StatusEnded || !st.Finished {
		t.Fatalf("expected finished state, got %+v", st)
	}

	// A straggling event from the same turn must not resurrect the message.
	st2, err := st.Apply(ctx, agui.Event{Kind: agui.KindThinkingContent, Delta: "late"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if st2.Message.Status != message.StatusEnded {
		t.Errorf("straggler overrode ended status: %q", st2.Message.Status)
	}
	if st2.Message.Thinking != "" {
		t.Errorf("straggler mutated thinking: %q", st2.Message.Thinking)
	}
}

func TestRendererAppliedToWholeSegment(t *testing.T) {
	ctx := NewTurnContext("msg-1", strings.ToUpper)
	st := Reduce(ctx, NewTurnState(ctx, ""), []agui.Event{
		{Kind: agui.KindTextMessageStart},
		{Kind: agui.KindTextMessageContent, Delta: "ab"},
		{Kind: agui.KindTextMessageContent, Delta: "cd"},
	})
	p := st.Message.FindTextPart(1)
	if p == nil || p.Content != "ABCD" {
		t.Errorf("expected whole segment re-rendered, got %+v", p)
	}
	if st.FullText != "abcd" {
		t.Errorf("full text must stay raw, got %q", st.FullText)
	}
}

func TestCustomRenderComponent(t *testing.T) {
	value, _ := json.Marshal(map[string]any{"component": "form", "props": map[string]any{"field": "name"}})
	ctx := testCtx()
	st := Reduce(ctx, NewTurnState(ctx, ""), []agui.Event{
		{Kind: agui.KindCustom, Name: agui.CustomRenderComponent, Value: value},
		{Kind: agui.KindCustom, Name: "progress_beacon", Value: value},
	})
	if len(st.Message.ContentParts) != 1 {
		t.Fatalf("expected only render_component to add a part, got %d", len(st.Message.ContentParts))
	}
	comp := st.Message.ContentParts[0].Component
	if comp == nil || comp.Name != "form" {
		t.Errorf("unexpected component %+v", comp)
	}
}

func TestUnknownKindErrors(t *testing.T) {
	ctx := testCtx()
	st := NewTurnState(ctx, "")
	if _, err := st.Apply(ctx, agui.Event{Kind: "SOMETHING_NEW"}); err == nil {
		t.Error("expected error for unhandled event kind")
	}
}

func TestRunErrorReplacesContent(t *testing.T) {
	ctx := testCtx()
	st := Reduce(ctx, NewTurnState(ctx, ""), []agui.Event{
		{Kind: agui.KindTextMessageStart},
		{Kind: agui.KindTextMessageContent, Delta: "partial answer"},
		{Kind: agui.KindRunError, Message: "Error code: 503"},
	})
	if !st.Finished || st.Err == nil {
		t.Fatalf("expected failed final state, got %+v", st)
	}
	if len(st.Message.ContentParts) != 1 {
		t.Fatalf("expected single fallback part, got %d", len(st.Message.ContentParts))
	}
	if !strings.Contains(st.Message.ContentParts[0].Content, "503") {
		t.Errorf("fallback text missing status hint: %q", st.Message.ContentParts[0].Content)
	}
}

func TestApplyDoesNotMutatePriorState(t *testing.T) {
	ctx := testCtx()
	st := Reduce(ctx, NewTurnState(ctx, ""), []agui.Event{
		{Kind: agui.KindToolCallStart, ToolCallID: "t1", ToolCallName: "calc"},
		{Kind: agui.KindToolCallArgs, ToolCallID: "t1", Delta: "ab"},
	})
	before := st.Message.FindToolCall("t1").Args

	if _, err := st.Apply(ctx, agui.Event{Kind: agui.KindToolCallArgs, ToolCallID: "t1", Delta: "cd"}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := st.Message.FindToolCall("t1").Args; got != before {
		t.Errorf("prior state mutated: %q -> %q", before, got)
	}
}

func TestNormalizeProviderError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"bad gateway", errors.New("Error code: 502 - upstream died"), "502"},
		{"overloaded", errors.New("Error code: 503"), "503"},
		{"gateway timeout", errors.New("Error code: 504"), "504"},
		{"bad key", errors.New("Error code: 401 - invalid key"), "401"},
		{"rate limited", errors.New("Error code: 429"), "429"},
		{"connection", errors.New("Connection refused"), "Could not reach"},
		{"generic", errors.New("boom"), "The assistant run failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeProviderError(tt.err)
			if !strings.Contains(got, tt.want) {
				t.Errorf("NormalizeProviderError(%v) = %q, want substring %q", tt.err, got, tt.want)
			}
		})
	}
}
