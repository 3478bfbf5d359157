// Package simulate provides a local AG-UI event producer that paces scripted
// events with artificial delays, for demos and tests that need a live-looking
// stream without an upstream model service.
package simulate

import (
	"context"
	"fmt"
	"time"

	"github.com/seralis/chatpilot/internal/agui"
	"github.com/seralis/chatpilot/internal/port/producer"
)

// Simulator implements producer.Producer by replaying a script.
type Simulator struct {
	delay  time.Duration
	script func(req producer.Request) []agui.Event
	now    func() time.Time // for testing
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithDelay sets the pause between emitted events. Zero disables pacing.
func WithDelay(d time.Duration) Option {
	return func(s *Simulator) { s.delay = d }
}

// WithScript replaces the default demo script.
func WithScript(fn func(req producer.Request) []agui.Event) Option {
	return func(s *Simulator) { s.script = fn }
}

// New creates a Simulator with a 40ms inter-event delay and the default
// demo script.
func New(opts ...Option) *Simulator {
	s := &Simulator{
		delay:  40 * time.Millisecond,
		script: DemoScript,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stream emits the scripted events in order, pausing between them. The
// channel closes when the script is exhausted or ctx is cancelled.
func (s *Simulator) Stream(ctx context.Context, req producer.Request) (<-chan agui.Event, error) {
	events := s.script(req)
	out := make(chan agui.Event)

	go func() {
		defer close(out)
		for _, ev := range events {
			if s.delay > 0 {
				select {
				case <-time.After(s.delay):
				case <-ctx.Done():
					return
				}
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// DemoScript builds a plausible full turn: a thinking phase, one tool call,
// and a two-segment text answer.
func DemoScript(req producer.Request) []agui.Event {
	ts := func() int64 { return time.Now().UnixMilli() }
	callID := "call_" + req.MessageID
	return []agui.Event{
		{Kind: agui.KindRunStarted, MessageID: req.MessageID, Timestamp: ts()},
		{Kind: agui.KindThinkingStart, MessageID: req.MessageID, Timestamp: ts()},
		{Kind: agui.KindThinkingContent, MessageID: req.MessageID, Delta: "Looking at the request", Timestamp: ts()},
		{Kind: agui.KindThinkingContent, MessageID: req.MessageID, Delta: " and picking a tool.", Timestamp: ts()},
		{Kind: agui.KindThinkingEnd, MessageID: req.MessageID, Timestamp: ts()},
		{Kind: agui.KindToolCallStart, MessageID: req.MessageID, ToolCallID: callID, ToolCallName: "search", Timestamp: ts()},
		{Kind: agui.KindToolCallArgs, MessageID: req.MessageID, ToolCallID: callID, Delta: fmt.Sprintf(`{"query":%q}`, req.UserInput), Timestamp: ts()},
		{Kind: agui.KindToolCallEnd, MessageID: req.MessageID, ToolCallID: callID, Timestamp: ts()},
		{Kind: agui.KindToolCallResult, MessageID: req.MessageID, ToolCallID: callID, Content: `{"hits":3}`, Timestamp: ts()},
		{Kind: agui.KindTextMessageStart, MessageID: req.MessageID, Role: "assistant", Timestamp: ts()},
		{Kind: agui.KindTextMessageContent, MessageID: req.MessageID, Delta: "Here is what I found. ", Timestamp: ts()},
		{Kind: agui.KindTextMessageContent, MessageID: req.MessageID, Delta: "Three results matched your question.", Timestamp: ts()},
		{Kind: agui.KindTextMessageEnd, MessageID: req.MessageID, Timestamp: ts()},
		{Kind: agui.KindRunFinished, MessageID: req.MessageID, Timestamp: ts()},
	}
}
