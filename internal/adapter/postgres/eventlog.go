package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seralis/chatpilot/internal/agui"
)

// EventLog implements the eventlog port using PostgreSQL (append-only).
type EventLog struct {
	pool *pgxpool.Pool
}

// NewEventLog creates an EventLog backed by the given connection pool.
func NewEventLog(pool *pgxpool.Pool) *EventLog {
	return &EventLog{pool: pool}
}

// Append inserts one AG-UI event for a message. The (message_id, seq) unique
// constraint rejects duplicate sequence numbers from a retried turn.
func (s *EventLog) Append(ctx context.Context, messageID string, seq int, ev agui.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO agui_events (message_id, seq, event_type, payload)
		 VALUES ($1, $2, $3, $4)`,
		messageID, seq, string(ev.Kind), payload)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// Load returns all events of a message ordered by sequence ascending.
func (s *EventLog) Load(ctx context.Context, messageID string) ([]agui.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM agui_events WHERE message_id = $1 ORDER BY seq ASC`,
		messageID)
	if err != nil {
		return nil, fmt.Errorf("load events for message %s: %w", messageID, err)
	}
	defer rows.Close()

	var events []agui.Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev, err := agui.Decode(payload)
		if err != nil {
			return nil, fmt.Errorf("decode stored event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
