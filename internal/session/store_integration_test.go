//go:build integration

package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claralabs/clara/internal/identity"
	"github.com/claralabs/clara/internal/log"
	"github.com/claralabs/clara/internal/session"
	"github.com/claralabs/clara/internal/testutil"
)

func setupStores(t *testing.T) (*identity.Store, *session.Store, *testutil.TestDB, func()) {
	t.Helper()
	db, cleanup := testutil.SetupTestDB(t)

	identities, err := identity.NewStore(db.Pool, log.NewNop())
	require.NoError(t, err)
	sessions, err := session.NewStore(db.Pool, log.NewNop())
	require.NoError(t, err)

	return identities, sessions, db, cleanup
}

func TestCreateAndResolve(t *testing.T) {
	identities, sessions, _, cleanup := setupStores(t)
	defer cleanup()
	ctx := context.Background()

	id, _, err := identities.Register(ctx, "Ana", "1234")
	require.NoError(t, err)

	sess, err := sessions.Create(ctx, id.ID)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, sess.Token)
	assert.WithinDuration(t, time.Now().Add(session.TTL), sess.ExpiresAt, time.Minute)

	got, err := sessions.Resolve(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, id.ID, got.ID)
	assert.Equal(t, "Ana", got.Name)
}

func TestResolveUnknownToken(t *testing.T) {
	_, sessions, _, cleanup := setupStores(t)
	defer cleanup()

	_, err := sessions.Resolve(context.Background(), uuid.New())
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestResolveExpiredSession(t *testing.T) {
	identities, sessions, db, cleanup := setupStores(t)
	defer cleanup()
	ctx := context.Background()

	id, _, err := identities.Register(ctx, "Ana", "1234")
	require.NoError(t, err)

	sess, err := sessions.Create(ctx, id.ID)
	require.NoError(t, err)

	_, err = db.Pool.Exec(ctx,
		`UPDATE sessions SET expires_at = now() - interval '1 hour' WHERE token = $1`,
		sess.Token)
	require.NoError(t, err)

	_, err = sessions.Resolve(ctx, sess.Token)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestDelete(t *testing.T) {
	identities, sessions, _, cleanup := setupStores(t)
	defer cleanup()
	ctx := context.Background()

	id, _, err := identities.Register(ctx, "Ana", "1234")
	require.NoError(t, err)

	sess, err := sessions.Create(ctx, id.ID)
	require.NoError(t, err)

	deleted, err := sessions.Delete(ctx, sess.Token)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = sessions.Delete(ctx, sess.Token)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = sessions.Resolve(ctx, sess.Token)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestDeleteExpired(t *testing.T) {
	identities, sessions, db, cleanup := setupStores(t)
	defer cleanup()
	ctx := context.Background()

	id, _, err := identities.Register(ctx, "Ana", "1234")
	require.NoError(t, err)

	live, err := sessions.Create(ctx, id.ID)
	require.NoError(t, err)
	stale, err := sessions.Create(ctx, id.ID)
	require.NoError(t, err)

	_, err = db.Pool.Exec(ctx,
		`UPDATE sessions SET expires_at = now() - interval '1 hour' WHERE token = $1`,
		stale.Token)
	require.NoError(t, err)

	n, err := sessions.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = sessions.Resolve(ctx, live.Token)
	assert.NoError(t, err)
}
