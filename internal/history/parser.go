package history

import (
	"encoding/json"
	"log/slog"

	"github.com/seralis/chatpilot/internal/agui"
	"github.com/seralis/chatpilot/internal/chat"
	"github.com/seralis/chatpilot/internal/domain/message"
)

// Result is the reconstructed shape of one assistant turn, for read-only
// display and for the copy action.
type Result struct {
	Thinking     string                `json:"thinking,omitempty"`
	ContentParts []message.ContentPart `json:"contentParts"`
	FullText     string                `json:"fullTextContent"`
}

// Parser replays persisted event logs through the same fold as the live
// reducer, minus the live side effects.
type Parser struct {
	render chat.Renderer
	log    *slog.Logger
}

// NewParser creates a Parser. A nil renderer leaves markdown unrendered; a
// nil logger falls back to slog.Default.
func NewParser(render chat.Renderer, log *slog.Logger) *Parser {
	if render == nil {
		render = chat.IdentityRenderer
	}
	if log == nil {
		log = slog.Default()
	}
	return &Parser{render: render, log: log}
}

// Parse reconstructs a turn from its serialized event log. It is pure and
// idempotent: the same input always yields the same structured output. It
// never returns an error; on any parse failure the whole raw string becomes a
// single opaque text content part.
func (p *Parser) Parse(raw string) Result {
	events, err := p.decode(raw)
	if err != nil {
		p.log.Warn("history log unparsable, falling back to raw text", "error", err, "len", len(raw))
		return fallback(raw)
	}

	ctx := chat.NewTurnContext("", p.render)
	st := chat.TurnState{Message: message.Message{Status: message.StatusHistory}}
	for _, ev := range events {
		next, applyErr := st.Apply(ctx, ev)
		if applyErr != nil {
			p.log.Warn("history log replay failed, falling back to raw text", "error", applyErr)
			return fallback(raw)
		}
		st = next
	}

	return Result{
		Thinking:     st.Message.Thinking,
		ContentParts: st.Message.ContentParts,
		FullText:     st.FullText,
	}
}

// decode normalizes the raw log and unmarshals it into ordered events.
func (p *Parser) decode(raw string) ([]agui.Event, error) {
	normalized := Normalize(raw)

	var rows []json.RawMessage
	if err := json.Unmarshal([]byte(normalized), &rows); err != nil {
		return nil, err
	}

	events := make([]agui.Event, 0, len(rows))
	for _, row := range rows {
		ev, err := agui.Decode(row)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func fallback(raw string) Result {
	return Result{
		ContentParts: []message.ContentPart{message.NewTextPart(raw, 1)},
		FullText:     raw,
	}
}
