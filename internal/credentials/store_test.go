package credentials

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/eshaffer321/docvault-go/internal/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStores(t *testing.T) map[string]Store {
	t.Helper()

	plain, err := OpenBolt(filepath.Join(t.TempDir(), "plain.db"), nil)
	require.NoError(t, err)
	sealed, err := OpenBolt(filepath.Join(t.TempDir(), "sealed.db"), &BoltOptions{SealKey: bytes.Repeat([]byte{7}, KeySize)})
	require.NoError(t, err)

	stores := map[string]Store{
		"bolt":        plain,
		"bolt sealed": sealed,
		"memory":      NewMemoryStore(),
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestStore_PutGetDelete(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put(types.KeyAccessToken, []byte("a1")))

			got, err := store.Get(types.KeyAccessToken)
			require.NoError(t, err)
			assert.Equal(t, []byte("a1"), got)

			require.NoError(t, store.Put(types.KeyAccessToken, []byte("a2")))
			got, err = store.Get(types.KeyAccessToken)
			require.NoError(t, err)
			assert.Equal(t, []byte("a2"), got)

			require.NoError(t, store.Delete(types.KeyAccessToken))
			got, err = store.Get(types.KeyAccessToken)
			require.NoError(t, err)
			assert.Nil(t, got)

			// deleting twice is fine
			require.NoError(t, store.Delete(types.KeyAccessToken))
		})
	}
}

func TestMemoryStore_EmptyValue(t *testing.T) {
	store := NewMemoryStore()

	require.NoError(t, store.Put("blank", nil))

	got, err := store.Get("blank")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	require.NoError(t, store.Put("blank", []byte("now set")))
	got, err = store.Get("blank")
	require.NoError(t, err)
	assert.Equal(t, []byte("now set"), got)
}

func TestStore_ReplaceSwapsWholeKeySet(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put(types.KeyAccessToken, []byte("old")))
			require.NoError(t, store.Put("stale", []byte("x")))

			require.NoError(t, store.Replace(map[string][]byte{
				types.KeyAccessToken:  []byte("a1"),
				types.KeyRefreshToken: []byte("r1"),
			}))

			access, err := store.Get(types.KeyAccessToken)
			require.NoError(t, err)
			refresh, err := store.Get(types.KeyRefreshToken)
			require.NoError(t, err)
			stale, err := store.Get("stale")
			require.NoError(t, err)

			assert.Equal(t, []byte("a1"), access)
			assert.Equal(t, []byte("r1"), refresh)
			assert.Nil(t, stale)
		})
	}
}

func TestStore_DeleteAll(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put(types.KeyAccessToken, []byte("a1")))
			require.NoError(t, store.Put(types.KeyUser, []byte(`{"id":1}`)))

			require.NoError(t, store.DeleteAll())

			for _, key := range []string{types.KeyAccessToken, types.KeyUser} {
				got, err := store.Get(key)
				require.NoError(t, err)
				assert.Nil(t, got, key)
			}
		})
	}
}

func TestStore_CallerBufferNotRetained(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			value := []byte("secret")
			require.NoError(t, store.Put("k", value))
			value[0] = 'X'

			got, err := store.Get("k")
			require.NoError(t, err)
			assert.Equal(t, []byte("secret"), got)
		})
	}
}

func TestBoltStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.db")
	key := bytes.Repeat([]byte{1}, KeySize)

	store, err := OpenBolt(path, &BoltOptions{SealKey: key})
	require.NoError(t, err)
	require.NoError(t, store.Put(types.KeyRefreshToken, []byte("r1")))
	require.NoError(t, store.Close())

	reopened, err := OpenBolt(path, &BoltOptions{SealKey: key})
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(types.KeyRefreshToken)
	require.NoError(t, err)
	assert.Equal(t, []byte("r1"), got)
}

func TestBoltStore_SealedValuesAreNotPlaintextOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.db")
	store, err := OpenBolt(path, &BoltOptions{SealKey: bytes.Repeat([]byte{3}, KeySize)})
	require.NoError(t, err)

	require.NoError(t, store.Put(types.KeyAccessToken, []byte("very-recognizable-token")))
	require.NoError(t, store.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(raw, []byte("very-recognizable-token")))
}

func TestBoltStore_WrongKeyIsStorageError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.db")

	store, err := OpenBolt(path, &BoltOptions{SealKey: bytes.Repeat([]byte{1}, KeySize)})
	require.NoError(t, err)
	require.NoError(t, store.Put(types.KeyAccessToken, []byte("a1")))
	require.NoError(t, store.Close())

	other, err := OpenBolt(path, &BoltOptions{SealKey: bytes.Repeat([]byte{2}, KeySize)})
	require.NoError(t, err)
	defer other.Close()

	_, err = other.Get(types.KeyAccessToken)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrStorage))
	assert.NotContains(t, err.Error(), "a1")
}

func TestOpenBolt_RejectsShortSealKey(t *testing.T) {
	_, err := OpenBolt(filepath.Join(t.TempDir(), "creds.db"), &BoltOptions{SealKey: []byte("short")})
	assert.Error(t, err)
}
