package tools

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claralabs/clara/internal/identity"
	"github.com/claralabs/clara/internal/session"
)

func TestTurnIssueSessionOnce(t *testing.T) {
	id := identity.Identity{ID: uuid.New(), Name: "Ana", Code: "1234"}
	token := uuid.New()

	var cookies []uuid.UUID
	turn := NewTurn(nil, nil, func(tok uuid.UUID) { cookies = append(cookies, tok) }, nil)

	creates := 0
	create := func() (session.Session, error) {
		creates++
		return session.Session{Token: token, UserID: id.ID}, nil
	}

	require.NoError(t, turn.IssueSession(id, create))
	require.NoError(t, turn.IssueSession(id, create))

	assert.Equal(t, 1, creates)
	assert.Equal(t, []uuid.UUID{token}, cookies)

	got, ok := turn.Token()
	require.True(t, ok)
	assert.Equal(t, token, got)
}

func TestTurnIssueSessionConcurrent(t *testing.T) {
	id := identity.Identity{ID: uuid.New(), Name: "Ana", Code: "1234"}
	turn := NewTurn(nil, nil, nil, nil)

	var mu sync.Mutex
	creates := 0
	create := func() (session.Session, error) {
		mu.Lock()
		creates++
		mu.Unlock()
		return session.Session{Token: uuid.New(), UserID: id.ID}, nil
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = turn.IssueSession(id, create)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, creates)
}

func TestTurnIssueSessionCreateFailureLeavesGuardOpen(t *testing.T) {
	id := identity.Identity{ID: uuid.New(), Name: "Ana", Code: "1234"}
	turn := NewTurn(nil, nil, nil, nil)

	err := turn.IssueSession(id, func() (session.Session, error) {
		return session.Session{}, errors.New("db down")
	})
	require.Error(t, err)
	assert.Nil(t, turn.JustAuthenticated())

	token := uuid.New()
	require.NoError(t, turn.IssueSession(id, func() (session.Session, error) {
		return session.Session{Token: token, UserID: id.ID}, nil
	}))

	got, ok := turn.Token()
	require.True(t, ok)
	assert.Equal(t, token, got)
}

func TestTurnEndSession(t *testing.T) {
	token := uuid.New()
	cleared := false
	turn := NewTurn(nil, &token, nil, func() { cleared = true })

	turn.EndSession()

	assert.True(t, cleared)
	_, ok := turn.Token()
	assert.False(t, ok)
}

func TestTurnCaller(t *testing.T) {
	id := &identity.Identity{ID: uuid.New(), Name: "Ana", Code: "1234"}

	assert.Equal(t, id, NewTurn(id, nil, nil, nil).Caller())
	assert.Nil(t, NewTurn(nil, nil, nil, nil).Caller())
}
