package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petedillo/ollama-chat-api/internal/adapter/storetest"
	"github.com/petedillo/ollama-chat-api/internal/domain"
)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.SessionStore {
		return openTestStore(t, filepath.Join(t.TempDir(), "chat.db"))
	})
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "chat.db")
	now := time.Now()

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.CreateSession(ctx, domain.Session{ID: "s1", Title: "Kept", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, store.AddMessage(ctx, domain.Message{ID: "m1", SessionID: "s1", Role: domain.RoleUser, Content: "hello", CreatedAt: now}))
	require.NoError(t, store.Close())

	reopened := openTestStore(t, path)
	session, err := reopened.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Kept", session.Title)

	msgs, err := reopened.Messages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.True(t, msgs[0].CreatedAt.Equal(now))
}

func TestStoreRejectsUnknownRole(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, ":memory:")
	now := time.Now()
	require.NoError(t, store.CreateSession(ctx, domain.Session{ID: "s1", Title: "t", CreatedAt: now, UpdatedAt: now}))

	err := store.AddMessage(ctx, domain.Message{ID: "m1", SessionID: "s1", Role: "tool", Content: "x", CreatedAt: now})
	assert.Error(t, err)
}
