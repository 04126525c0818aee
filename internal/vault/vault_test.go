package vault

import (
	"context"
	"encoding/base64"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skybridge-labs/skybridge/internal/logging"
	"github.com/skybridge-labs/skybridge/internal/store"
)

func newTestVault(t *testing.T) (*Vault, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "vault.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s, logging.NewNop()), s
}

func TestVault(t *testing.T) {
	ctx := context.Background()

	t.Run("load without save", func(t *testing.T) {
		v, _ := newTestVault(t)
		_, err := v.Load(ctx)
		assert.ErrorIs(t, err, ErrNoCredentials)
		assert.False(t, v.Has(ctx))
	})

	t.Run("save and load round trip", func(t *testing.T) {
		v, _ := newTestVault(t)
		require.NoError(t, v.Save(ctx, Credentials{
			Identifier: "alice.bsky.social",
			Secret:     "app-password",
		}))

		creds, err := v.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "alice.bsky.social", creds.Identifier)
		assert.Equal(t, "app-password", creds.Secret)
		assert.False(t, creds.CapturedAt.IsZero())
		assert.True(t, v.Has(ctx))
	})

	t.Run("stored value is not plaintext", func(t *testing.T) {
		v, s := newTestVault(t)
		require.NoError(t, v.Save(ctx, Credentials{
			Identifier: "alice.bsky.social",
			Secret:     "app-password",
		}))

		raw, err := s.Get(ctx, "bluesky_credentials")
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "app-password")

		// The encoding is reversible by design.
		decoded, err := base64.StdEncoding.DecodeString(string(raw))
		require.NoError(t, err)
		assert.Contains(t, string(decoded), "app-password")
	})

	t.Run("clear removes credentials", func(t *testing.T) {
		v, _ := newTestVault(t)
		require.NoError(t, v.Save(ctx, Credentials{Identifier: "a", Secret: "b"}))
		require.NoError(t, v.Clear(ctx))

		assert.False(t, v.Has(ctx))
		_, err := v.Load(ctx)
		assert.ErrorIs(t, err, ErrNoCredentials)
	})

	t.Run("clear when empty is not an error", func(t *testing.T) {
		v, _ := newTestVault(t)
		assert.NoError(t, v.Clear(ctx))
	})
}
