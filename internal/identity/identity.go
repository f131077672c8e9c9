// Package identity manages registered user records.
//
// An identity is keyed by display name (unique, case-insensitive) plus a
// secret code. Identities are immutable once created.
package identity

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors, checked with errors.Is.
var (
	// ErrNotFound indicates no identity matched the lookup. For
	// authentication this covers both a wrong name and a wrong code:
	// callers must not reveal which field failed.
	ErrNotFound = errors.New("identity not found")
)

// Identity is a registered user record.
type Identity struct {
	ID        uuid.UUID
	Name      string
	Code      string
	CreatedAt time.Time
}
