package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"testing"

	"github.com/aretw0/turnstile/pkg/adapters/memory"
	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/persistence/middleware"
	"github.com/aretw0/turnstile/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func newEncrypted(t *testing.T, cfg middleware.EncryptionConfig, next *memory.Store) ports.SessionStore {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	require.NoError(t, err)
	return mw(next)
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	store := newEncrypted(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)}, underlying)
	ctx := context.Background()

	s := domain.NewSession("enc")
	s.Data["secret"] = "my-secret-sauce"
	require.NoError(t, store.Save(ctx, s))

	stored, err := underlying.Load(ctx, "enc")
	require.NoError(t, err)
	assert.NotContains(t, stored.Data, "secret")
	assert.Contains(t, stored.Data, middleware.SealedKey)
	assert.Equal(t, s.CreatedAt.Unix(), stored.CreatedAt.Unix(), "timestamps stay readable")

	loaded, err := store.Load(ctx, "enc")
	require.NoError(t, err)
	assert.Equal(t, "my-secret-sauce", loaded.Data["secret"])
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey, newKey := generateKey(t), generateKey(t)
	ctx := context.Background()

	oldStore := newEncrypted(t, middleware.EncryptionConfig{ActiveKey: oldKey}, underlying)
	s := domain.NewSession("rotation")
	s.Data["data"] = "old"
	require.NoError(t, oldStore.Save(ctx, s))

	newStore := newEncrypted(t, middleware.EncryptionConfig{ActiveKey: newKey, FallbackKeys: [][]byte{oldKey}}, underlying)
	loaded, err := newStore.Load(ctx, "rotation")
	require.NoError(t, err, "fallback key opens old envelopes")
	assert.Equal(t, "old", loaded.Data["data"])

	loaded.Data["data"] = "new"
	require.NoError(t, newStore.Save(ctx, loaded))

	_, err = oldStore.Load(ctx, "rotation")
	assert.ErrorIs(t, err, middleware.ErrDecrypt, "old key cannot open envelopes sealed with the new key")
}

func TestEncryptionMiddleware_PlainSessionRejected(t *testing.T) {
	underlying := memory.NewStore()
	require.NoError(t, underlying.Save(context.Background(), domain.NewSession("plain")))

	store := newEncrypted(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)}, underlying)
	_, err := store.Load(context.Background(), "plain")
	assert.ErrorIs(t, err, middleware.ErrNotSealed)

	_, err = store.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	assert.ErrorIs(t, err, middleware.ErrInvalidKey)

	_, err = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    generateKey(t),
		FallbackKeys: [][]byte{[]byte("short")},
	})
	assert.ErrorIs(t, err, middleware.ErrInvalidKey)
}
