package kvstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "b", []byte(`2`)))
	require.NoError(t, s.Set(ctx, "a", []byte(`1`)))

	v, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, `1`, string(v))

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	require.NoError(t, s.Delete(ctx, "a"))
	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Clear(ctx))
	keys, err = s.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	buf := []byte(`"dark"`)
	require.NoError(t, s.Set(ctx, "theme", buf))
	buf[1] = 'X'

	v, err := s.Get(ctx, "theme")
	require.NoError(t, err)
	assert.Equal(t, `"dark"`, string(v))
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var n int
	found, err := GetJSON(ctx, s, "n", &n)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, SetJSON(ctx, s, "n", 42))
	found, err = GetJSON(ctx, s, "n", &n)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 42, n)

	require.NoError(t, s.Set(ctx, "bad", []byte(`{`)))
	_, err = GetJSON(ctx, s, "bad", &n)
	assert.ErrorContains(t, err, "decode bad")

	err = SetJSON(ctx, s, "fn", func() {})
	assert.ErrorContains(t, err, "encode fn")
}

type failingStore struct{ Store }

func (failingStore) Set(context.Context, string, []byte) error { return errors.New("disk full") }
func (failingStore) Delete(context.Context, string) error      { return errors.New("disk full") }

func TestObservableStore(t *testing.T) {
	ctx := context.Background()
	o := NewObservableStore(NewMemoryStore())

	type change struct {
		key   string
		value []byte
	}
	var got []change
	stop := o.Watch(func(key string, value []byte) {
		got = append(got, change{key, value})
	})

	require.NoError(t, o.Set(ctx, "theme", []byte(`"dark"`)))
	require.NoError(t, o.Delete(ctx, "theme"))

	require.Len(t, got, 2)
	assert.Equal(t, change{"theme", []byte(`"dark"`)}, got[0])
	assert.Equal(t, "theme", got[1].key)
	assert.Nil(t, got[1].value)

	stop()
	stop()
	require.NoError(t, o.Set(ctx, "theme", []byte(`"light"`)))
	assert.Len(t, got, 2)
}

func TestObservableStore_NoNotifyOnFailure(t *testing.T) {
	ctx := context.Background()
	o := NewObservableStore(failingStore{NewMemoryStore()})

	calls := 0
	o.Watch(func(string, []byte) { calls++ })

	assert.Error(t, o.Set(ctx, "k", []byte(`1`)))
	assert.Error(t, o.Delete(ctx, "k"))
	assert.Zero(t, calls)
}

func TestEncryptedStore(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()

	_, err := NewEncryptedStore(inner, "")
	require.Error(t, err)

	enc, err := NewEncryptedStore(inner, "correct horse battery staple")
	require.NoError(t, err)

	require.NoError(t, enc.Set(ctx, "wallet_accounts", []byte(`[{"id":"1"}]`)))

	raw, err := inner.Get(ctx, "wallet_accounts")
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"id"`)

	plain, err := enc.Get(ctx, "wallet_accounts")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"1"}]`, string(plain))

	_, err = enc.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	// A value moved under another key must not authenticate.
	require.NoError(t, inner.Set(ctx, "theme", raw))
	_, err = enc.Get(ctx, "theme")
	assert.ErrorIs(t, err, ErrDecrypt)

	other, err := NewEncryptedStore(inner, "wrong key")
	require.NoError(t, err)
	_, err = other.Get(ctx, "wallet_accounts")
	assert.ErrorIs(t, err, ErrDecrypt)

	require.NoError(t, inner.Set(ctx, "short", []byte{1, 2, 3}))
	_, err = enc.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrDecrypt)
}
