package fingerprint

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/dubsync/pkg/logging"
)

func testPrint(seed int) *Fingerprint {
	return &Fingerprint{Algorithm: AlgorithmChromaprint, Hashes: mixedHashes(seed, 32)}
}

func TestCachePutGetClear(t *testing.T) {
	cache := NewCache("", logging.NewNopLogger())

	_, ok := cache.Get("k1")
	assert.False(t, ok)

	fp := testPrint(1)
	require.NoError(t, cache.Put("k1", fp))

	got, ok := cache.Get("k1")
	require.True(t, ok)
	assert.True(t, fp.Equal(got))
	assert.Equal(t, 1, cache.Len())

	cleared, err := cache.Clear()
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)
	assert.Zero(t, cache.Len())

	_, ok = cache.Get("k1")
	assert.False(t, ok)
}

func TestCacheRejectsBadInput(t *testing.T) {
	cache := NewCache("", logging.NewNopLogger())

	assert.Error(t, cache.Put("", testPrint(1)))
	assert.Error(t, cache.Put("k", &Fingerprint{Algorithm: AlgorithmChromaprint}))

	_, ok := cache.Get("")
	assert.False(t, ok)
}

func TestCachePersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "fingerprints.json")

	cache := NewCache(path, logging.NewNopLogger())
	require.NoError(t, cache.Put("k1", testPrint(1)))
	require.NoError(t, cache.Put("k2", testPrint(2)))

	// A fresh instance sees the persisted entries
	reloaded := NewCache(path, logging.NewNopLogger())
	assert.Equal(t, 2, reloaded.Len())

	got, ok := reloaded.Get("k2")
	require.True(t, ok)
	assert.True(t, testPrint(2).Equal(got))
}

func TestCacheClearRemovesPersistedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fingerprints.json")

	cache := NewCache(path, logging.NewNopLogger())
	require.NoError(t, cache.Put("k1", testPrint(1)))
	require.FileExists(t, path)

	_, err := cache.Clear()
	require.NoError(t, err)
	assert.NoFileExists(t, path)

	// Clearing an already-empty cache stays idempotent
	cleared, err := cache.Clear()
	require.NoError(t, err)
	assert.Zero(t, cleared)
}

func TestCacheIgnoresCorruptPersistedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fingerprints.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	cache := NewCache(path, logging.NewNopLogger())
	assert.Zero(t, cache.Len())
}

func TestCacheConcurrentAccess(t *testing.T) {
	cache := NewCache("", logging.NewNopLogger())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			fp := testPrint(seed)
			_ = cache.Put("shared", fp)
			got, ok := cache.Get("shared")
			// Whatever won the race must be a complete entry
			assert.True(t, ok)
			assert.False(t, got.Empty())
		}(i + 1)
	}
	wg.Wait()

	assert.Equal(t, 1, cache.Len())
}
