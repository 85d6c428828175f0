// Package storetest holds the behavior every domain.SessionStore must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petedillo/ollama-chat-api/internal/domain"
)

// Run exercises a store built by newStore. Each subtest gets a fresh store.
func Run(t *testing.T, newStore func(t *testing.T) domain.SessionStore) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("create and get", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.CreateSession(ctx, domain.Session{ID: "s1", Title: domain.DefaultTitle, CreatedAt: base, UpdatedAt: base}))

		got, err := store.GetSession(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "s1", got.ID)
		assert.Equal(t, domain.DefaultTitle, got.Title)
		assert.True(t, got.CreatedAt.Equal(base))
	})

	t.Run("missing session", func(t *testing.T) {
		store := newStore(t)

		_, err := store.GetSession(ctx, "nope")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
		assert.ErrorIs(t, store.UpdateTitle(ctx, "nope", "x"), domain.ErrSessionNotFound)
		assert.ErrorIs(t, store.AddMessage(ctx, domain.Message{ID: "m", SessionID: "nope", Role: domain.RoleUser, Content: "hi", CreatedAt: base}), domain.ErrSessionNotFound)
		_, err = store.Messages(ctx, "nope")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("list newest first", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.CreateSession(ctx, domain.Session{ID: "old", Title: "a", CreatedAt: base, UpdatedAt: base}))
		require.NoError(t, store.CreateSession(ctx, domain.Session{ID: "new", Title: "b", CreatedAt: base.Add(time.Minute), UpdatedAt: base.Add(time.Minute)}))

		sessions, err := store.ListSessions(ctx)
		require.NoError(t, err)
		require.Len(t, sessions, 2)
		assert.Equal(t, "new", sessions[0].ID)
		assert.Equal(t, "old", sessions[1].ID)
	})

	t.Run("update title", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.CreateSession(ctx, domain.Session{ID: "s1", Title: domain.DefaultTitle, CreatedAt: base, UpdatedAt: base}))
		require.NoError(t, store.UpdateTitle(ctx, "s1", "Italian Restaurant Ideas"))

		got, err := store.GetSession(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "Italian Restaurant Ideas", got.Title)
	})

	t.Run("messages keep causal order", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.CreateSession(ctx, domain.Session{ID: "s1", Title: domain.DefaultTitle, CreatedAt: base, UpdatedAt: base}))

		msgs := []domain.Message{
			{ID: "m1", SessionID: "s1", Role: domain.RoleUser, Content: "first", CreatedAt: base.Add(time.Second)},
			{ID: "m2", SessionID: "s1", Role: domain.RoleAssistant, Content: "second", CreatedAt: base.Add(time.Second)},
			{ID: "m0", SessionID: "s1", Role: domain.RoleUser, Content: "earliest", CreatedAt: base},
		}
		for _, m := range msgs {
			require.NoError(t, store.AddMessage(ctx, m))
		}

		got, err := store.Messages(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []string{"earliest", "first", "second"}, []string{got[0].Content, got[1].Content, got[2].Content})
		assert.Equal(t, domain.RoleAssistant, got[2].Role)
		assert.Equal(t, "s1", got[2].SessionID)
	})

	t.Run("messages are per session", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.CreateSession(ctx, domain.Session{ID: "a", Title: "a", CreatedAt: base, UpdatedAt: base}))
		require.NoError(t, store.CreateSession(ctx, domain.Session{ID: "b", Title: "b", CreatedAt: base, UpdatedAt: base}))
		require.NoError(t, store.AddMessage(ctx, domain.Message{ID: "m1", SessionID: "a", Role: domain.RoleUser, Content: "hi", CreatedAt: base}))

		got, err := store.Messages(ctx, "b")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
