package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seralis/chatpilot/internal/domain"
	"github.com/seralis/chatpilot/internal/domain/conversation"
	"github.com/seralis/chatpilot/internal/domain/message"
)

// Store implements the database port using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateConversation(ctx context.Context, c *conversation.Conversation) (*conversation.Conversation, error) {
	var created conversation.Conversation
	err := s.pool.QueryRow(ctx,
		`INSERT INTO conversations (session_id, bot_id, title)
		 VALUES ($1, $2, $3)
		 RETURNING id, session_id, bot_id, title, created_at, updated_at`,
		c.SessionID, c.BotID, c.Title,
	).Scan(&created.ID, &created.SessionID, &created.BotID, &created.Title, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return &created, nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (*conversation.Conversation, error) {
	var c conversation.Conversation
	err := s.pool.QueryRow(ctx,
		`SELECT id, session_id, bot_id, title, created_at, updated_at
		 FROM conversations WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.SessionID, &c.BotID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get conversation %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}
	return &c, nil
}

func (s *Store) ListConversations(ctx context.Context) ([]conversation.Conversation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, bot_id, title, created_at, updated_at
		 FROM conversations ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var result []conversation.Conversation
	for rows.Next() {
		var c conversation.Conversation
		if err := rows.Scan(&c.ID, &c.SessionID, &c.BotID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete conversation %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// TouchConversation bumps updated_at so recently active threads sort first.
func (s *Store) TouchConversation(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `UPDATE conversations SET updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch conversation %s: %w", id, err)
	}
	return nil
}

const recordColumns = `id, conversation_id, role, status, thinking, content_parts, full_text, user_input, event_log, created_at, updated_at`

func scanRecord(scanner interface{ Scan(dest ...any) error }, rec *conversation.Record) error {
	var parts []byte
	if err := scanner.Scan(
		&rec.ID, &rec.ConversationID, &rec.Role, &rec.Status, &rec.Thinking,
		&parts, &rec.FullText, &rec.UserInput, &rec.EventLog, &rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		return err
	}
	if len(parts) > 0 {
		if err := json.Unmarshal(parts, &rec.ContentParts); err != nil {
			return fmt.Errorf("decode content parts: %w", err)
		}
	}
	return nil
}

func (s *Store) CreateRecord(ctx context.Context, rec *conversation.Record) (*conversation.Record, error) {
	parts, err := encodeParts(rec.ContentParts)
	if err != nil {
		return nil, err
	}
	created := *rec
	err = s.pool.QueryRow(ctx,
		`INSERT INTO conversation_records (conversation_id, role, status, thinking, content_parts, full_text, user_input, event_log)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		rec.ConversationID, rec.Role, rec.Status, rec.Thinking, parts, rec.FullText, rec.UserInput, rec.EventLog,
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}
	return &created, nil
}

func (s *Store) UpdateRecord(ctx context.Context, rec *conversation.Record) error {
	parts, err := encodeParts(rec.ContentParts)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversation_records
		 SET status = $2, thinking = $3, content_parts = $4, full_text = $5, event_log = $6, updated_at = now()
		 WHERE id = $1`,
		rec.ID, rec.Status, rec.Thinking, parts, rec.FullText, rec.EventLog)
	if err != nil {
		return fmt.Errorf("update record %s: %w", rec.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update record %s: %w", rec.ID, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) GetRecord(ctx context.Context, id string) (*conversation.Record, error) {
	var rec conversation.Record
	err := scanRecord(s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM conversation_records WHERE id = $1`, recordColumns), id), &rec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get record %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}
	return &rec, nil
}

func (s *Store) ListRecords(ctx context.Context, conversationID string) ([]conversation.Record, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM conversation_records WHERE conversation_id = $1 ORDER BY created_at ASC`, recordColumns),
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var result []conversation.Record
	for rows.Next() {
		var rec conversation.Record
		if err := scanRecord(rows, &rec); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (s *Store) CreateTurnLog(ctx context.Context, l *conversation.TurnLog) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO turn_logs (conversation_id, message_id, user_input, final_content, event_count, tokens_in, tokens_out, status, error, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		l.ConversationID, l.MessageID, l.UserInput, l.FinalContent, l.EventCount,
		l.TokensIn, l.TokensOut, l.Status, l.Error, l.StartedAt, l.FinishedAt)
	if err != nil {
		return fmt.Errorf("create turn log: %w", err)
	}
	return nil
}

func encodeParts(parts []message.ContentPart) ([]byte, error) {
	if parts == nil {
		parts = []message.ContentPart{}
	}
	data, err := json.Marshal(parts)
	if err != nil {
		return nil, fmt.Errorf("encode content parts: %w", err)
	}
	return data, nil
}
