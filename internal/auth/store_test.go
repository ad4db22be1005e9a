package auth

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStores(t *testing.T) {
	tests := []struct {
		name     string
		newStore func(t *testing.T) Store
	}{
		{
			name:     "memory",
			newStore: func(t *testing.T) Store { return NewMemoryStore() },
		},
		{
			name: "file",
			newStore: func(t *testing.T) Store {
				return NewFileStore(filepath.Join(t.TempDir(), "mailfront", "session.json"))
			},
		},
		{
			name: "keyring",
			newStore: func(t *testing.T) Store {
				return NewKeyringStore(keyring.NewArrayKeyring(nil))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := tt.newStore(t)

			_, ok, err := store.Load()
			require.NoError(t, err)
			assert.False(t, ok, "fresh store must be empty")

			require.NoError(t, store.Clear(), "clearing an empty store must succeed")

			pair := TokenPair{AccessToken: "1000.access", RefreshToken: "1000.refresh"}
			require.NoError(t, store.Save(pair))

			got, ok, err := store.Load()
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, pair, got)

			updated := TokenPair{AccessToken: "1000.newer", RefreshToken: "1000.refresh"}
			require.NoError(t, store.Save(updated))
			got, _, err = store.Load()
			require.NoError(t, err)
			assert.Equal(t, updated, got)

			require.NoError(t, store.Clear())
			_, ok, err = store.Load()
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Clear(), "clear is idempotent")
		})
	}
}

func TestFileStore_Format(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewFileStore(path)
	assert.Equal(t, path, store.Path())

	require.NoError(t, store.Save(TokenPair{AccessToken: "a", RefreshToken: "r", ExpiresIn: 3600}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"zoho_token":"a","zoho_refresh_token":"r"}`, string(data))
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0600))

	_, _, err := NewFileStore(path).Load()
	assert.Error(t, err)
}

func TestDefaultSessionFile(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("darwin and windows use their own cache directories")
	}
	t.Setenv("XDG_CACHE_HOME", "/tmp/cache")
	assert.Equal(t, "/tmp/cache/mailfront/session.json", DefaultSessionFile())
}

func TestKeyringStore_Keys(t *testing.T) {
	ring := keyring.NewArrayKeyring(nil)
	store := NewKeyringStore(ring)
	require.NoError(t, store.Save(TokenPair{AccessToken: "a", RefreshToken: "r"}))

	keys, err := ring.Keys()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{KeyAccessToken, KeyRefreshToken}, keys)
}

// failingRing rejects writes of one key.
type failingRing struct {
	keyring.Keyring
	failKey string
}

func (r *failingRing) Set(item keyring.Item) error {
	if item.Key == r.failKey {
		return errors.New("keyring locked")
	}
	return r.Keyring.Set(item)
}

func TestKeyringStore_SaveFailureKeepsPreviousPair(t *testing.T) {
	tests := []struct {
		name     string
		previous *TokenPair
	}{
		{"existing session", &TokenPair{AccessToken: "a1", RefreshToken: "r1"}},
		{"no session", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ring := &failingRing{Keyring: keyring.NewArrayKeyring(nil)}
			store := NewKeyringStore(ring)
			if tt.previous != nil {
				require.NoError(t, store.Save(*tt.previous))
			}

			ring.failKey = KeyAccessToken
			err := store.Save(TokenPair{AccessToken: "a2", RefreshToken: "r2"})
			require.Error(t, err)
			assert.NotContains(t, err.Error(), "half written")

			got, ok, err := store.Load()
			require.NoError(t, err)
			if tt.previous == nil {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, *tt.previous, got)
		})
	}
}
