// Package chat implements the AG-UI event reducer: a pure fold that turns an
// ordered event sequence for one assistant turn into incremental updates of a
// single message. The live streaming path and the offline history replay both
// go through Apply, so the two can never drift apart.
package chat

import (
	"fmt"
	"time"

	"github.com/seralis/chatpilot/internal/agui"
	"github.com/seralis/chatpilot/internal/domain/message"
)

// Renderer converts a markdown segment into its display form. The reducer
// re-renders the entire current segment on every content delta, not just the
// delta, so renderers that depend on whole-block structure stay correct.
type Renderer func(markdown string) string

// IdentityRenderer returns the markdown unchanged.
func IdentityRenderer(markdown string) string { return markdown }

// TurnContext carries the collaborators a turn needs. It is passed explicitly
// to every Apply call; the reducer holds no ambient state.
type TurnContext struct {
	MessageID string
	Render    Renderer
	Now       func() time.Time
}

// NewTurnContext returns a TurnContext with sensible defaults filled in.
func NewTurnContext(messageID string, render Renderer) TurnContext {
	if render == nil {
		render = IdentityRenderer
	}
	return TurnContext{MessageID: messageID, Render: render, Now: time.Now}
}

// TurnState is the accumulated state of one assistant turn. Values are
// treated as immutable: Apply returns a new state and never mutates its
// input, so a late-arriving goroutine holding an old state cannot clobber a
// newer one.
type TurnState struct {
	Message message.Message

	// SegmentIndex numbers text segments in the order TEXT_MESSAGE_START
	// boundaries occur, starting at 1.
	SegmentIndex int
	// SegmentText is the raw markdown accumulated for the open segment.
	SegmentText string
	// FullText is the concatenation of every text delta of the turn,
	// across all segments, kept for the copy action.
	FullText string

	Finished bool
	// Err holds the producer failure that aborted the turn, if any.
	Err error
}

// NewTurnState creates the state for an assistant turn that is about to
// stream, with the message in loading status.
func NewTurnState(ctx TurnContext, userInput string) TurnState {
	return TurnState{
		Message: message.Message{
			ID:        ctx.MessageID,
			Role:      "assistant",
			Status:    message.StatusLoading,
			UserInput: userInput,
			Timestamp: ctx.Now(),
		},
	}
}

// Apply folds one event into the state. It returns an error only for events
// that are structurally unusable (unknown kind, tool args for a tool that
// never started); callers decide whether that aborts the turn.
func (s TurnState) Apply(ctx TurnContext, ev agui.Event) (TurnState, error) {
	if s.Finished {
		// ended is terminal; stragglers from the same turn must not
		// resurrect the message (finish flush precedence).
		return s, nil
	}

	switch ev.Kind {
	case agui.KindRunStarted:
		// Confirms the run begun; content is untouched.
		return s, nil

	case agui.KindThinkingStart:
		s.Message.Status = message.StatusThinking
		return s, nil

	case agui.KindThinkingContent:
		s.Message.Thinking += ev.Delta
		s.Message.Status = message.StatusThinking
		return s, nil

	case agui.KindThinkingEnd:
		s.Message.Status = message.StatusLoading
		return s, nil

	case agui.KindToolCallStart:
		return s.applyToolCallStart(ev)

	case agui.KindToolCallArgs:
		return s.applyToolCallArgs(ev)

	case agui.KindToolCallEnd:
		// Marker that the args stream closed; nothing to record.
		return s, nil

	case agui.KindToolCallResult:
		return s.applyToolCallResult(ev)

	case agui.KindTextMessageStart:
		s.SegmentIndex++
		s.SegmentText = ""
		return s, nil

	case agui.KindTextMessageContent:
		return s.applyTextContent(ctx, ev)

	case agui.KindTextMessageEnd:
		// The segment stays open for further appends but is renderable.
		return s, nil

	case agui.KindCustom:
		return s.applyCustom(ev)

	case agui.KindRunFinished:
		s.Message.Status = message.StatusEnded
		s.Finished = true
		return s, nil

	case agui.KindRunError:
		return s.Fail(ctx, fmt.Errorf("%s", ev.Message)), nil
	}

	return s, fmt.Errorf("unhandled agui event kind %q", ev.Kind)
}

// Fail aborts the turn: status becomes ended and the message content is
// replaced with a single fallback error segment.
func (s TurnState) Fail(ctx TurnContext, err error) TurnState {
	text := NormalizeProviderError(err)
	s.Message.Status = message.StatusEnded
	s.Message.ContentParts = []message.ContentPart{
		message.NewTextPart(ctx.Render(text), 1),
	}
	s.Message.ToolCalls = nil
	s.SegmentIndex = 1
	s.SegmentText = text
	s.FullText = text
	s.Finished = true
	s.Err = err
	return s
}

// FailPendingToolCalls marks every tool call still executing as failed.
// Used when a turn is aborted mid-stream: the streamed content is kept, but
// a call whose result will never arrive must not stay "executing" forever.
func (s TurnState) FailPendingToolCalls() TurnState {
	s.Message.ToolCalls = append([]message.ToolCall(nil), s.Message.ToolCalls...)
	for i := range s.Message.ToolCalls {
		if s.Message.ToolCalls[i].Status == message.ToolExecuting {
			s.Message.ToolCalls[i].Status = message.ToolFailed
		}
	}
	s.Message.ContentParts = clonedParts(s.Message.ContentParts)
	for i := range s.Message.ContentParts {
		p := &s.Message.ContentParts[i]
		if p.Type == message.PartToolCall && p.ToolCall != nil && p.ToolCall.Status == message.ToolExecuting {
			tc := *p.ToolCall
			tc.Status = message.ToolFailed
			p.ToolCall = &tc
		}
	}
	return s
}

func (s TurnState) applyToolCallStart(ev agui.Event) (TurnState, error) {
	if ev.ToolCallID == "" {
		return s, fmt.Errorf("tool call start without toolCallId")
	}
	if s.Message.FindToolCall(ev.ToolCallID) != nil {
		// Duplicate start for the same id; first one wins.
		return s, nil
	}
	tc := message.ToolCall{
		ID:     ev.ToolCallID,
		Name:   ev.ToolCallName,
		Status: message.ToolExecuting,
	}
	s.Message.ToolCalls = appendToolCall(s.Message.ToolCalls, tc)
	part := tc
	s.Message.ContentParts = appendPart(s.Message.ContentParts, message.NewToolCallPart(&part))
	s.Message.Status = message.StatusSuccess
	return s, nil
}

func (s TurnState) applyToolCallArgs(ev agui.Event) (TurnState, error) {
	s = s.cloneToolState(ev.ToolCallID)
	tc := s.Message.FindToolCall(ev.ToolCallID)
	if tc == nil {
		return s, fmt.Errorf("tool call args for unknown id %q", ev.ToolCallID)
	}
	tc.Args += ev.Delta
	if p := s.Message.FindToolCallPart(ev.ToolCallID); p != nil {
		p.ToolCall.Args += ev.Delta
	}
	return s, nil
}

func (s TurnState) applyToolCallResult(ev agui.Event) (TurnState, error) {
	s = s.cloneToolState(ev.ToolCallID)
	tc := s.Message.FindToolCall(ev.ToolCallID)
	if tc == nil {
		return s, fmt.Errorf("tool call result for unknown id %q", ev.ToolCallID)
	}
	if tc.Status == message.ToolCompleted {
		// Result is immutable once set.
		return s, nil
	}
	tc.Result = ev.Content
	tc.Status = message.ToolCompleted
	if p := s.Message.FindToolCallPart(ev.ToolCallID); p != nil && p.ToolCall.Status != message.ToolCompleted {
		p.ToolCall.Result = ev.Content
		p.ToolCall.Status = message.ToolCompleted
	}
	return s, nil
}

func (s TurnState) applyTextContent(ctx TurnContext, ev agui.Event) (TurnState, error) {
	if s.SegmentIndex == 0 {
		// Content before any explicit TEXT_MESSAGE_START opens segment 1.
		s.SegmentIndex = 1
		s.SegmentText = ""
	}
	s.SegmentText += ev.Delta
	s.FullText += ev.Delta
	rendered := ctx.Render(s.SegmentText)

	s.Message.ContentParts = clonedParts(s.Message.ContentParts)
	if p := s.Message.FindTextPart(s.SegmentIndex); p != nil {
		p.Content = rendered
	} else {
		s.Message.ContentParts = append(s.Message.ContentParts, message.NewTextPart(rendered, s.SegmentIndex))
	}
	s.Message.Status = message.StatusSuccess
	return s, nil
}

func (s TurnState) applyCustom(ev agui.Event) (TurnState, error) {
	if ev.Name != agui.CustomRenderComponent {
		// Other custom events (progress beacons etc.) carry no message
		// content.
		return s, nil
	}
	v, err := ev.ComponentValue()
	if err != nil {
		return s, err
	}
	s.Message.ContentParts = appendPart(s.Message.ContentParts, message.NewComponentPart(v.Component, v.Props))
	s.Message.Status = message.StatusSuccess
	return s, nil
}

// Reduce folds a complete event sequence into a final state. An event error
// aborts the fold and fails the turn.
func Reduce(ctx TurnContext, initial TurnState, events []agui.Event) TurnState {
	st := initial
	for _, ev := range events {
		next, err := st.Apply(ctx, ev)
		if err != nil {
			return st.Fail(ctx, err)
		}
		st = next
	}
	return st
}

// cloneToolState deep-copies the slices that tool call updates touch, so the
// caller's previous TurnState value stays intact.
func (s TurnState) cloneToolState(id string) TurnState {
	s.Message.ToolCalls = append([]message.ToolCall(nil), s.Message.ToolCalls...)
	s.Message.ContentParts = clonedParts(s.Message.ContentParts)
	for i := range s.Message.ContentParts {
		p := &s.Message.ContentParts[i]
		if p.Type == message.PartToolCall && p.ToolCall != nil && p.ToolCall.ID == id {
			tc := *p.ToolCall
			p.ToolCall = &tc
		}
	}
	return s
}

func clonedParts(parts []message.ContentPart) []message.ContentPart {
	return append([]message.ContentPart(nil), parts...)
}

func appendPart(parts []message.ContentPart, p message.ContentPart) []message.ContentPart {
	return append(clonedParts(parts), p)
}

func appendToolCall(calls []message.ToolCall, tc message.ToolCall) []message.ToolCall {
	return append(append([]message.ToolCall(nil), calls...), tc)
}
