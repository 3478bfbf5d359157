package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/seralis/chatpilot/internal/chat"
	"github.com/seralis/chatpilot/internal/domain/conversation"
	"github.com/seralis/chatpilot/internal/domain/message"
	"github.com/seralis/chatpilot/internal/history"
	"github.com/seralis/chatpilot/internal/port/database"
)

// HistoryService loads conversation transcripts, reconstructing assistant
// messages from their event logs when the stored snapshot is incomplete.
// Legacy logs in Python-literal form go through the history parser; newer
// logs are plain JSON event arrays replayed through the same reducer.
type HistoryService struct {
	db     database.Store
	parser *history.Parser
	log    *slog.Logger
}

// NewHistoryService creates a HistoryService.
func NewHistoryService(db database.Store, render chat.Renderer, log *slog.Logger) *HistoryService {
	if render == nil {
		render = chat.IdentityRenderer
	}
	if log == nil {
		log = slog.Default()
	}
	return &HistoryService{
		db:     db,
		parser: history.NewParser(render, log),
		log:    log,
	}
}

// ListMessages returns the records of a conversation in chronological order,
// with assistant records hydrated from their event logs where needed.
func (s *HistoryService) ListMessages(ctx context.Context, conversationID string) ([]conversation.Record, error) {
	records, err := s.db.ListRecords(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	for i := range records {
		s.hydrate(&records[i])
	}
	return records, nil
}

// Transcript returns the full plain text of one assistant message, for the
// copy action.
func (s *HistoryService) Transcript(ctx context.Context, messageID string) (string, error) {
	rec, err := s.db.GetRecord(ctx, messageID)
	if err != nil {
		return "", fmt.Errorf("get record: %w", err)
	}
	s.hydrate(rec)
	return rec.FullText, nil
}

// hydrate fills in content parts and full text from the event log when the
// stored snapshot lacks them. It never fails: an unparseable log degrades to
// the raw text fallback inside the parser.
func (s *HistoryService) hydrate(rec *conversation.Record) {
	if rec.Role != "assistant" || rec.EventLog == "" {
		return
	}
	if len(rec.ContentParts) > 0 && rec.FullText != "" {
		return
	}

	// Normalization is a no-op on strict JSON, so modern logs and legacy
	// Python-literal logs share one path.
	res := s.parser.Parse(rec.EventLog)

	if len(rec.ContentParts) == 0 {
		rec.ContentParts = res.ContentParts
	}
	if rec.FullText == "" {
		rec.FullText = res.FullText
	}
	if rec.Thinking == "" {
		rec.Thinking = res.Thinking
	}
	if rec.Status == "" {
		rec.Status = message.StatusHistory
	}
}

