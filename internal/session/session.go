// Package session manages the binding between opaque transport tokens and
// identities.
//
// A session is created only as a side effect of a successful
// authentication or registration tool call and deleted on logout. A token
// resolves to at most one live session; an expired session resolves to no
// identity.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TTL is the fixed expiry horizon for new sessions. It matches the
// transport cookie max age.
const TTL = 30 * 24 * time.Hour

// Sentinel errors for session operations, checked with errors.Is.
var (
	// ErrNotFound indicates the token has no live session: it was never
	// issued, was deleted on logout, or has expired. Callers treat this
	// as "no identity", never as a fatal error.
	ErrNotFound = errors.New("session not found")
)

// Session binds a transport token to an identity for a bounded time.
type Session struct {
	Token     uuid.UUID
	UserID    uuid.UUID
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry horizon.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
