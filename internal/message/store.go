// Package message persists the append-only conversation history.
//
// Messages are tagged with the identity that was resolved at the start of
// the turn, or none for anonymous callers. Ordering is creation-time total
// order per identity.
package message

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Message roles. Only user and assistant turns are persisted.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one persisted conversation turn.
type Message struct {
	ID        uuid.UUID
	UserID    *uuid.UUID // nil for anonymous turns
	Role      string
	Content   string
	CreatedAt time.Time
}

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store manages message persistence backed by PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     querier
	logger *slog.Logger
}

// NewStore creates a message Store.
func NewStore(db querier, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}, nil
}

// Append records one message. Each append is individually atomic; the
// design requires no cross-record transactions.
func (s *Store) Append(ctx context.Context, userID *uuid.UUID, role, content string) error {
	if role != RoleUser && role != RoleAssistant {
		return fmt.Errorf("invalid role %q", role)
	}

	if _, err := s.db.Exec(ctx,
		`INSERT INTO messages (user_id, role, content) VALUES ($1, $2, $3)`,
		userID, role, content); err != nil {
		return fmt.Errorf("appending message: %w", err)
	}

	s.logger.Debug("appended message", "role", role, "anonymous", userID == nil)
	return nil
}

// Recent returns the last limit messages for the identity in creation order
// (oldest first). Anonymous callers have no replayable history.
func (s *Store) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]Message, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, role, content, created_at
		 FROM (
		     SELECT id, user_id, role, content, created_at
		     FROM messages
		     WHERE user_id = $1
		     ORDER BY created_at DESC
		     LIMIT $2
		 ) recent
		 ORDER BY created_at ASC`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	return messages, nil
}
