package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/claralabs/clara/internal/identity"
)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store manages session persistence backed by PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     querier
	logger *slog.Logger
}

// NewStore creates a session Store.
func NewStore(db querier, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}, nil
}

// Create issues a new session for the given identity with the fixed TTL.
// The token is a fresh random UUID.
func (s *Store) Create(ctx context.Context, userID uuid.UUID) (Session, error) {
	sess := Session{Token: uuid.New(), UserID: userID}

	row := s.db.QueryRow(ctx,
		`INSERT INTO sessions (token, user_id, expires_at)
		 VALUES ($1, $2, now() + make_interval(secs => $3))
		 RETURNING expires_at`,
		sess.Token, userID, TTL.Seconds())
	if err := row.Scan(&sess.ExpiresAt); err != nil {
		return Session{}, fmt.Errorf("creating session: %w", err)
	}

	s.logger.Debug("created session", "user_id", userID)
	return sess, nil
}

// Resolve maps a transport token to its owning identity.
// Expired or unknown tokens yield ErrNotFound.
func (s *Store) Resolve(ctx context.Context, token uuid.UUID) (*identity.Identity, error) {
	row := s.db.QueryRow(ctx,
		`SELECT u.id, u.name, u.code, u.created_at
		 FROM sessions s
		 JOIN users u ON u.id = s.user_id
		 WHERE s.token = $1 AND s.expires_at > now()`,
		token)

	var ident identity.Identity
	err := row.Scan(&ident.ID, &ident.Name, &ident.Code, &ident.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolving session: %w", err)
	}
	return &ident, nil
}

// Delete removes the session for the given token. Deleting a token with no
// live session is not an error; the result reports whether a row was removed.
func (s *Store) Delete(ctx context.Context, token uuid.UUID) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	if err != nil {
		return false, fmt.Errorf("deleting session: %w", err)
	}

	deleted := tag.RowsAffected() > 0
	if deleted {
		s.logger.Debug("deleted session")
	}
	return deleted, nil
}

// DeleteExpired removes all expired sessions. Intended for periodic cleanup.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
