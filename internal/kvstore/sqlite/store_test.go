package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cyphera/cyphera-wallet/internal/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "wallet.db")
	defer os.Remove(dbPath)

	s, err := Open(dbPath)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()

	_, err = s.Get(ctx, "theme")
	assert.ErrorIs(t, err, kvstore.ErrNotFound)

	require.NoError(t, s.Set(ctx, "theme", []byte(`"dark"`)))
	require.NoError(t, s.Set(ctx, "theme", []byte(`"light"`)))
	require.NoError(t, s.Set(ctx, "network_type", []byte(`"testnet"`)))

	v, err := s.Get(ctx, "theme")
	require.NoError(t, err)
	assert.Equal(t, `"light"`, string(v))

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"network_type", "theme"}, keys)

	require.NoError(t, s.Delete(ctx, "theme"))
	_, err = s.Get(ctx, "theme")
	assert.ErrorIs(t, err, kvstore.ErrNotFound)

	require.NoError(t, s.Clear(ctx))
	keys, err = s.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestStore_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "wallet.db")
	ctx := context.Background()

	s, err := Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, kvstore.SetJSON(ctx, s, "selected_network", 8453))
	require.NoError(t, s.Close())

	s, err = Open(dbPath)
	require.NoError(t, err)
	defer s.Close()

	var id int64
	found, err := kvstore.GetJSON(ctx, s, "selected_network", &id)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(8453), id)
}

func TestStore_Encrypted(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "wallet.db"))
	require.NoError(t, err)
	defer s.Close()

	enc, err := kvstore.NewEncryptedStore(s, "secret")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, enc.Set(ctx, "wallet_locked", []byte(`true`)))

	v, err := enc.Get(ctx, "wallet_locked")
	require.NoError(t, err)
	assert.Equal(t, `true`, string(v))
}
