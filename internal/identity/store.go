package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const identityCols = `id, name, code, created_at`

// Store manages identity persistence backed by PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     querier
	logger *slog.Logger
}

// NewStore creates an identity Store.
func NewStore(db querier, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}, nil
}

// Register creates an identity for the given display name and secret code.
//
// Registration is idempotent by case-insensitive name: if an identity with
// the same name already exists it is returned unchanged with existing=true,
// never a duplicate-create error. The ON CONFLICT clause closes the race
// between concurrent registrations of the same name.
func (s *Store) Register(ctx context.Context, name, code string) (Identity, bool, error) {
	if name == "" {
		return Identity{}, false, fmt.Errorf("name is required")
	}
	if code == "" {
		return Identity{}, false, fmt.Errorf("code is required")
	}

	existing, err := s.findByName(ctx, name)
	if err == nil {
		s.logger.Debug("registration matched existing identity", "id", existing.ID)
		return existing, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Identity{}, false, err
	}

	row := s.db.QueryRow(ctx,
		`INSERT INTO users (name, code)
		 VALUES ($1, $2)
		 ON CONFLICT (lower(name)) DO NOTHING
		 RETURNING `+identityCols, name, code)

	id, err := scanIdentity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost the race: someone registered the name between our lookup
		// and the insert. Return the winner.
		winner, findErr := s.findByName(ctx, name)
		if findErr != nil {
			return Identity{}, false, fmt.Errorf("resolving concurrent registration: %w", findErr)
		}
		return winner, true, nil
	}
	if err != nil {
		return Identity{}, false, fmt.Errorf("creating identity: %w", err)
	}

	s.logger.Debug("registered identity", "id", id.ID)
	return id, false, nil
}

// Authenticate looks up an identity by case-insensitive name and exact code.
// On mismatch it returns ErrNotFound without distinguishing which field was
// wrong.
func (s *Store) Authenticate(ctx context.Context, name, code string) (*Identity, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+identityCols+` FROM users WHERE lower(name) = lower($1) AND code = $2`,
		name, code)

	id, err := scanIdentity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("authenticating identity: %w", err)
	}
	return &id, nil
}

// GetByID retrieves an identity by primary key.
func (s *Store) GetByID(ctx context.Context, id string) (*Identity, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+identityCols+` FROM users WHERE id = $1`, id)

	ident, err := scanIdentity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting identity %s: %w", id, err)
	}
	return &ident, nil
}

// findByName looks up an identity by case-insensitive display name.
func (s *Store) findByName(ctx context.Context, name string) (Identity, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+identityCols+` FROM users WHERE lower(name) = lower($1)`, name)

	id, err := scanIdentity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Identity{}, ErrNotFound
	}
	if err != nil {
		return Identity{}, fmt.Errorf("finding identity by name: %w", err)
	}
	return id, nil
}

func scanIdentity(row pgx.Row) (Identity, error) {
	var id Identity
	err := row.Scan(&id.ID, &id.Name, &id.Code, &id.CreatedAt)
	return id, err
}
