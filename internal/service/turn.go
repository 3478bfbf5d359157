// Package service contains the application services orchestrating turns,
// history and ancillary features.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/seralis/chatpilot/internal/adapter/otel"
	"github.com/seralis/chatpilot/internal/adapter/ws"
	"github.com/seralis/chatpilot/internal/agui"
	"github.com/seralis/chatpilot/internal/chat"
	"github.com/seralis/chatpilot/internal/domain"
	"github.com/seralis/chatpilot/internal/domain/conversation"
	"github.com/seralis/chatpilot/internal/domain/message"
	"github.com/seralis/chatpilot/internal/port/broadcast"
	"github.com/seralis/chatpilot/internal/port/database"
	"github.com/seralis/chatpilot/internal/port/eventlog"
	"github.com/seralis/chatpilot/internal/port/messagequeue"
	"github.com/seralis/chatpilot/internal/port/producer"
)

// SubjectTurnEvents is the NATS subject pattern for turn lifecycle events;
// the conversation id is appended.
const SubjectTurnEvents = "chat.turns."

// TurnService runs streaming assistant turns: it consumes the producer's
// event sequence, folds it through the chat reducer, persists the event log,
// and fans events out to connected clients.
type TurnService struct {
	db       database.Store
	events   eventlog.Store
	hub      broadcast.Broadcaster
	queue    messagequeue.Publisher
	producer producer.Producer
	render   chat.Renderer
	metrics  *otel.Metrics
	log      *slog.Logger

	turnTimeout time.Duration

	mu sync.Mutex
	// active maps conversation id to the in-flight turn's handle. Starting
	// a new turn cancels the previous one: the old producer stops mutating
	// state deterministically instead of racing the new turn.
	active map[string]*activeTurn

	// subscribers receive a copy of every event of a turn, keyed by
	// message id, for the SSE endpoint.
	subMu sync.Mutex
	subs  map[string][]chan agui.Event
}

// TurnDeps bundles the collaborators of a TurnService.
type TurnDeps struct {
	DB       database.Store
	Events   eventlog.Store
	Hub      broadcast.Broadcaster
	Queue    messagequeue.Publisher
	Producer producer.Producer
	Render   chat.Renderer
	Metrics  *otel.Metrics
	Log      *slog.Logger
}

// NewTurnService creates a TurnService.
func NewTurnService(deps TurnDeps, turnTimeout time.Duration) *TurnService {
	if deps.Render == nil {
		deps.Render = chat.IdentityRenderer
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if turnTimeout <= 0 {
		turnTimeout = 5 * time.Minute
	}
	return &TurnService{
		db:          deps.DB,
		events:      deps.Events,
		hub:         deps.Hub,
		queue:       deps.Queue,
		producer:    deps.Producer,
		render:      deps.Render,
		metrics:     deps.Metrics,
		log:         deps.Log,
		turnTimeout: turnTimeout,
		active:      make(map[string]*activeTurn),
		subs:        make(map[string][]chan agui.Event),
	}
}

// SendMessage stores the user message, creates the assistant placeholder and
// starts the streaming turn. It returns the placeholder immediately; events
// flow via WebSocket, SSE and the event log.
func (s *TurnService) SendMessage(ctx context.Context, conversationID string, req conversation.SendMessageRequest) (*conversation.Record, error) {
	conv, err := s.db.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	input := req.Content
	if req.Regenerate {
		input, err = s.lastUserInput(ctx, conversationID)
		if err != nil {
			return nil, err
		}
	}
	if input == "" {
		return nil, fmt.Errorf("%w: content is required", domain.ErrValidation)
	}

	if !req.Regenerate {
		userRec := &conversation.Record{
			ConversationID: conversationID,
			Role:           "user",
			Status:         message.StatusLocal,
			FullText:       input,
			ContentParts:   []message.ContentPart{message.NewTextPart(input, 1)},
		}
		if _, err = s.db.CreateRecord(ctx, userRec); err != nil {
			return nil, fmt.Errorf("store user message: %w", err)
		}
	}

	placeholder := &conversation.Record{
		ConversationID: conversationID,
		Role:           "assistant",
		Status:         message.StatusLoading,
		UserInput:      input,
	}
	placeholder, err = s.db.CreateRecord(ctx, placeholder)
	if err != nil {
		return nil, fmt.Errorf("store assistant placeholder: %w", err)
	}

	s.startTurn(conv, placeholder, input)
	return placeholder, nil
}

// Stop cancels the in-flight turn of a conversation, if any.
func (s *TurnService) Stop(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	turn, ok := s.active[conversationID]
	if ok {
		turn.cancel()
		delete(s.active, conversationID)
	}
	return ok
}

// Subscribe returns a channel receiving the events of the given message's
// turn as they are applied, plus an unsubscribe func. The channel is closed
// when the turn ends.
func (s *TurnService) Subscribe(messageID string) (<-chan agui.Event, func()) {
	ch := make(chan agui.Event, 64)
	s.subMu.Lock()
	s.subs[messageID] = append(s.subs[messageID], ch)
	s.subMu.Unlock()

	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		chans := s.subs[messageID]
		for i, c := range chans {
			if c == ch {
				s.subs[messageID] = append(chans[:i], chans[i+1:]...)
				break
			}
		}
	}
}

// activeTurn identifies one in-flight turn. The pointer doubles as the
// identity token for the active-slot bookkeeping: a superseded turn's late
// cleanup must not clear the slot its successor now owns.
type activeTurn struct {
	cancel context.CancelFunc
}

func (s *TurnService) startTurn(conv *conversation.Conversation, rec *conversation.Record, input string) {
	// The turn outlives the HTTP request that started it.
	ctx, cancel := context.WithTimeout(context.Background(), s.turnTimeout)
	handle := &activeTurn{cancel: cancel}

	s.mu.Lock()
	if prev, ok := s.active[conv.ID]; ok {
		prev.cancel()
	}
	s.active[conv.ID] = handle
	s.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			s.mu.Lock()
			// Clear the slot only if this turn still owns it.
			if s.active[conv.ID] == handle {
				delete(s.active, conv.ID)
			}
			s.mu.Unlock()
		}()
		s.runTurn(ctx, conv, rec, input)
	}()
}

func (s *TurnService) runTurn(ctx context.Context, conv *conversation.Conversation, rec *conversation.Record, input string) {
	started := time.Now()
	ctx, span := otel.StartTurnSpan(ctx, conv.ID, rec.ID)
	defer span.End()
	if s.metrics != nil {
		s.metrics.TurnsStarted.Add(ctx, 1)
	}
	s.broadcastStatus(ctx, conv.ID, rec.ID, "started")

	tctx := chat.TurnContext{MessageID: rec.ID, Render: s.render, Now: time.Now}
	st := chat.NewTurnState(tctx, input)

	events, err := s.producer.Stream(ctx, producer.Request{
		ConversationID: conv.ID,
		MessageID:      rec.ID,
		SessionID:      conv.SessionID,
		UserInput:      input,
	})
	if err != nil {
		st = st.Fail(tctx, err)
		s.finishTurn(conv, rec, st, nil, started)
		return
	}

	var applied []agui.Event
	seq := 0
	for ev := range events {
		next, applyErr := st.Apply(tctx, ev)
		if applyErr != nil {
			s.log.Error("event apply failed", "message_id", rec.ID, "kind", ev.Kind, "error", applyErr)
			st = st.Fail(tctx, applyErr)
			break
		}
		st = next
		applied = append(applied, ev)
		seq++

		if logErr := s.events.Append(ctx, rec.ID, seq, ev); logErr != nil {
			s.log.Error("event log append failed", "message_id", rec.ID, "error", logErr)
		}
		s.fanOut(ctx, conv.ID, rec.ID, ev)

		if s.metrics != nil {
			s.metrics.EventsApplied.Add(ctx, 1)
			if ev.Kind == agui.KindToolCallStart {
				s.metrics.ToolCalls.Add(ctx, 1)
			}
		}
		if st.Finished {
			break
		}
	}

	if !st.Finished {
		if ctx.Err() != nil {
			// Cancelled turn: keep what streamed, mark ended. Tool calls
			// whose results never arrived are failed, not left executing.
			st = st.FailPendingToolCalls()
			st.Message.Status = message.StatusEnded
			st.Finished = true
			st.Err = ctx.Err()
		} else {
			st = st.Fail(tctx, errors.New("stream ended unexpectedly"))
		}
	}

	s.finishTurn(conv, rec, st, applied, started)
}

// finishTurn persists the final message snapshot and turn log. It runs on a
// fresh context so a cancelled turn still flushes its terminal state: the
// ended status must win over any straggling update.
func (s *TurnService) finishTurn(conv *conversation.Conversation, rec *conversation.Record, st chat.TurnState, applied []agui.Event, started time.Time) {
	ctx, cancelFlush := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelFlush()

	rec.Status = st.Message.Status
	rec.Thinking = st.Message.Thinking
	rec.ContentParts = st.Message.ContentParts
	rec.FullText = st.FullText
	rec.EventLog = encodeEventLog(applied)
	if err := s.db.UpdateRecord(ctx, rec); err != nil {
		s.log.Error("final record update failed", "message_id", rec.ID, "error", err)
	}
	if err := s.db.TouchConversation(ctx, conv.ID); err != nil {
		s.log.Warn("touch conversation failed", "conversation_id", conv.ID, "error", err)
	}

	status := "completed"
	switch {
	case errors.Is(st.Err, context.Canceled), errors.Is(st.Err, context.DeadlineExceeded):
		status = "cancelled"
	case st.Err != nil:
		status = "failed"
	}

	turnLog := &conversation.TurnLog{
		ConversationID: conv.ID,
		MessageID:      rec.ID,
		UserInput:      rec.UserInput,
		FinalContent:   st.FullText,
		EventCount:     len(applied),
		Status:         status,
		StartedAt:      started,
		FinishedAt:     time.Now(),
	}
	if st.Err != nil {
		turnLog.Error = st.Err.Error()
	}
	if err := s.db.CreateTurnLog(ctx, turnLog); err != nil {
		s.log.Error("turn log write failed", "message_id", rec.ID, "error", err)
	}

	if s.metrics != nil {
		switch status {
		case "failed":
			s.metrics.TurnsFailed.Add(ctx, 1)
		case "completed":
			s.metrics.TurnsCompleted.Add(ctx, 1)
		}
		s.metrics.TurnDuration.Record(ctx, time.Since(started).Seconds())
	}

	s.broadcastStatus(ctx, conv.ID, rec.ID, status)
	s.closeSubscribers(rec.ID)
	s.log.Info("turn finished",
		"conversation_id", conv.ID, "message_id", rec.ID,
		"status", status, "events", len(applied),
		"duration", time.Since(started))
}

func (s *TurnService) fanOut(ctx context.Context, conversationID, messageID string, ev agui.Event) {
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, ws.EventAGUI, ws.AGUIEnvelope{ConversationID: conversationID, Event: ev})
	}

	s.subMu.Lock()
	chans := append([]chan agui.Event(nil), s.subs[messageID]...)
	s.subMu.Unlock()
	for _, ch := range chans {
		select {
		case ch <- ev:
		default:
			// Slow SSE consumers miss events rather than stall the turn.
		}
	}
}

func (s *TurnService) closeSubscribers(messageID string) {
	s.subMu.Lock()
	chans := s.subs[messageID]
	delete(s.subs, messageID)
	s.subMu.Unlock()
	for _, ch := range chans {
		close(ch)
	}
}

func (s *TurnService) broadcastStatus(ctx context.Context, conversationID, messageID, status string) {
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, ws.EventTurnStatus, ws.TurnStatusEvent{
			ConversationID: conversationID,
			MessageID:      messageID,
			Status:         status,
		})
	}
	if s.queue != nil {
		data, err := json.Marshal(ws.TurnStatusEvent{ConversationID: conversationID, MessageID: messageID, Status: status})
		if err != nil {
			return
		}
		if err := s.queue.Publish(ctx, SubjectTurnEvents+conversationID, data); err != nil {
			s.log.Warn("turn status publish failed", "conversation_id", conversationID, "error", err)
		}
	}
}

func (s *TurnService) lastUserInput(ctx context.Context, conversationID string) (string, error) {
	records, err := s.db.ListRecords(ctx, conversationID)
	if err != nil {
		return "", fmt.Errorf("list records: %w", err)
	}
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Role == "assistant" && records[i].UserInput != "" {
			return records[i].UserInput, nil
		}
		if records[i].Role == "user" && records[i].FullText != "" {
			return records[i].FullText, nil
		}
	}
	return "", fmt.Errorf("%w: nothing to regenerate", domain.ErrValidation)
}

func encodeEventLog(events []agui.Event) string {
	if len(events) == 0 {
		return ""
	}
	data, err := json.Marshal(events)
	if err != nil {
		return ""
	}
	return string(data)
}
