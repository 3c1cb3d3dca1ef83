package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405.000000")

	t.Run("Save and Load", func(t *testing.T) {
		session := domain.NewSession(sessionID)
		session.Data["foo"] = "bar"
		session.Data["count"] = 42

		err := store.Save(ctx, session)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, sessionID, loaded.ID)
		assert.Equal(t, "bar", loaded.Data["foo"])
		// JSON-backed stores turn ints into float64; existence is what matters here
		assert.NotNil(t, loaded.Data["count"])
	})

	t.Run("Overwrite", func(t *testing.T) {
		session := domain.NewSession(sessionID)
		session.Data["foo"] = "baz"
		require.NoError(t, store.Save(ctx, session))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "baz", loaded.Data["foo"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, domain.NewSession(sessionID))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")

		assert.NoError(t, store.Delete(ctx, sessionID), "Deleting twice is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, domain.NewSession(id1))
		_ = store.Save(ctx, domain.NewSession(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}

// RunUserStoreContract verifies that a UserStore implementation adheres to the contract.
func RunUserStoreContract(t *testing.T, store UserStore) {
	ctx := context.Background()
	userID := "contract-test-user-" + time.Now().Format("20060102150405.000000")

	t.Run("Save and Load", func(t *testing.T) {
		user := domain.NewUser(userID)
		user.Data["name"] = "Ada"

		require.NoError(t, store.SaveUser(ctx, user))

		loaded, err := store.LoadUser(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, userID, loaded.ID)
		assert.Equal(t, "Ada", loaded.Data["name"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.LoadUser(ctx, "non-existent-"+userID)
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.DeleteUser(ctx, userID))
		_, err := store.LoadUser(ctx, userID)
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
		assert.NoError(t, store.DeleteUser(ctx, userID))
	})
}
