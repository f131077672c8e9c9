// Package memory persists per-identity facts under normalized keys.
//
// A given (identity, key) pair holds exactly one value; writes are
// last-write-wins upserts.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors, checked with errors.Is.
var (
	// ErrNotFound indicates no fact is stored under the key.
	ErrNotFound = errors.New("memory not found")
)

// Fact is one stored (identity, key, value) record.
type Fact struct {
	UserID    uuid.UUID
	Key       string
	Value     string
	UpdatedAt time.Time
}

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store manages memory-fact persistence backed by PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines. Concurrent
// upserts to different keys for the same identity are independent; the
// keyed ON CONFLICT upsert makes same-key writes last-write-wins.
type Store struct {
	db     querier
	logger *slog.Logger
}

// NewStore creates a memory Store.
func NewStore(db querier, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}, nil
}

// Upsert stores value under the normalized form of key, replacing any
// previous value. It returns the normalized key actually stored.
func (s *Store) Upsert(ctx context.Context, userID uuid.UUID, key, value string) (string, error) {
	normalized := NormalizeKey(key)
	if normalized == "" {
		return "", fmt.Errorf("key %q normalizes to empty", key)
	}

	if _, err := s.db.Exec(ctx,
		`INSERT INTO memories (user_id, key, value, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (user_id, key)
		 DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		userID, normalized, value); err != nil {
		return "", fmt.Errorf("upserting memory: %w", err)
	}

	s.logger.Debug("saved memory", "key", normalized)
	return normalized, nil
}

// Get returns the value stored under the normalized form of key, or
// ErrNotFound.
func (s *Store) Get(ctx context.Context, userID uuid.UUID, key string) (string, error) {
	normalized := NormalizeKey(key)

	var value string
	err := s.db.QueryRow(ctx,
		`SELECT value FROM memories WHERE user_id = $1 AND key = $2`,
		userID, normalized).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("getting memory %q: %w", normalized, err)
	}
	return value, nil
}

// All returns every fact for the identity, most recently updated first.
// Used by the dynamic-context builder.
func (s *Store) All(ctx context.Context, userID uuid.UUID) ([]Fact, error) {
	rows, err := s.db.Query(ctx,
		`SELECT user_id, key, value, updated_at
		 FROM memories
		 WHERE user_id = $1
		 ORDER BY updated_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("querying memories: %w", err)
	}
	defer rows.Close()

	var facts []Fact
	for rows.Next() {
		var f Fact
		if err := rows.Scan(&f.UserID, &f.Key, &f.Value, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning memory: %w", err)
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating memories: %w", err)
	}

	return facts, nil
}
