package tools

import (
	"sync"

	"github.com/google/uuid"

	"github.com/claralabs/clara/internal/identity"
	"github.com/claralabs/clara/internal/session"
)

// Turn carries the mutable authentication state of one request turn.
// Tool calls within a turn run concurrently, so every mutation goes
// through the mutex. The guard in IssueSession keeps session creation
// idempotent per turn: only the first successful auth-family tool call
// issues a session, later ones are redundant.
type Turn struct {
	mu sync.Mutex

	caller   *identity.Identity
	token    *uuid.UUID
	issued   bool
	justAuth *identity.Identity

	setCookie   func(token uuid.UUID)
	clearCookie func()
}

// NewTurn binds the resolved caller and inbound session token to the
// transport-level cookie callbacks for this request.
func NewTurn(caller *identity.Identity, token *uuid.UUID, setCookie func(uuid.UUID), clearCookie func()) *Turn {
	return &Turn{
		caller:      caller,
		token:       token,
		setCookie:   setCookie,
		clearCookie: clearCookie,
	}
}

// Caller returns the identity resolved at the start of the turn, or nil.
func (t *Turn) Caller() *identity.Identity {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.caller
}

// Token returns the inbound session token, if any.
func (t *Turn) Token() (uuid.UUID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.token == nil {
		return uuid.UUID{}, false
	}
	return *t.token, true
}

// IssueSession creates a session for id via create and sets the transport
// cookie. At most one session is issued per turn; redundant calls return
// nil without invoking create.
func (t *Turn) IssueSession(id identity.Identity, create func() (session.Session, error)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.issued {
		return nil
	}

	sess, err := create()
	if err != nil {
		return err
	}

	t.issued = true
	t.justAuth = &id
	t.token = &sess.Token
	if t.setCookie != nil {
		t.setCookie(sess.Token)
	}
	return nil
}

// EndSession forgets the inbound token and clears the transport cookie.
func (t *Turn) EndSession() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.token = nil
	if t.clearCookie != nil {
		t.clearCookie()
	}
}

// JustAuthenticated returns the identity bound by a successful
// auth-family tool call this turn, or nil. The orchestrator uses it to
// recompose the instruction text before the second completion call.
func (t *Turn) JustAuthenticated() *identity.Identity {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.justAuth
}
