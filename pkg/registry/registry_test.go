package registry_test

import (
	"context"
	"testing"

	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := registry.NewRegistry()
	r.Register("HelloIntent", func(_ context.Context, turn *domain.Turn) error {
		turn.Tell("Hello!")
		return nil
	})
	r.Register("AByeIntent", func(context.Context, *domain.Turn) error { return nil })

	assert.Equal(t, []string{"AByeIntent", "HelloIntent"}, r.Routes())

	turn := domain.NewTurn(nil, nil)
	require.NoError(t, r.Execute(context.Background(), "HelloIntent", turn))
	assert.Equal(t, "Hello!", turn.Output[0].Speech)

	err := r.Execute(context.Background(), "Missing", turn)
	assert.ErrorIs(t, err, registry.ErrHandlerNotFound)

	t.Run("Overwrite", func(t *testing.T) {
		called := false
		r.Register("HelloIntent", func(context.Context, *domain.Turn) error {
			called = true
			return nil
		})
		require.NoError(t, r.Execute(context.Background(), "HelloIntent", turn))
		assert.True(t, called)
	})
}
