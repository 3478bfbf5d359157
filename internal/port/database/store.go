// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/seralis/chatpilot/internal/domain/conversation"
)

// Store is the port interface for database operations.
type Store interface {
	// Conversations
	CreateConversation(ctx context.Context, c *conversation.Conversation) (*conversation.Conversation, error)
	GetConversation(ctx context.Context, id string) (*conversation.Conversation, error)
	ListConversations(ctx context.Context) ([]conversation.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	TouchConversation(ctx context.Context, id string) error

	// Message records
	CreateRecord(ctx context.Context, rec *conversation.Record) (*conversation.Record, error)
	UpdateRecord(ctx context.Context, rec *conversation.Record) error
	GetRecord(ctx context.Context, id string) (*conversation.Record, error)
	ListRecords(ctx context.Context, conversationID string) ([]conversation.Record, error)

	// Turn logs
	CreateTurnLog(ctx context.Context, l *conversation.TurnLog) error
}
