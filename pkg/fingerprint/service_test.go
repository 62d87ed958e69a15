package fingerprint

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/dubsync/pkg/logging"
)

// countingExtractor fabricates prints per path and tracks call counts so
// tests can assert the at-most-once cache contract
type countingExtractor struct {
	mu     sync.Mutex
	calls  map[string]int
	prints map[string]*Fingerprint
	err    error
}

func newCountingExtractor() *countingExtractor {
	return &countingExtractor{
		calls:  make(map[string]int),
		prints: make(map[string]*Fingerprint),
	}
}

func (f *countingExtractor) Algorithm() Algorithm {
	return AlgorithmChromaprint
}

func (f *countingExtractor) Extract(_ context.Context, path string) (*Fingerprint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[path]++
	if f.err != nil {
		return nil, f.err
	}
	if fp, ok := f.prints[path]; ok {
		return fp, nil
	}
	return &Fingerprint{Algorithm: AlgorithmChromaprint, Hashes: mixedHashes(len(path), 64)}, nil
}

func (f *countingExtractor) callCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

// writeDistinctFile creates a file whose leading bytes are unique so each
// test path gets its own content key
func writeDistinctFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestService(extractor Extractor) *Service {
	return NewService(&ServiceConfig{
		Extractor: extractor,
		Logger:    logging.NewNopLogger(),
	})
}

func TestServiceFingerprintComputedOncePerKey(t *testing.T) {
	dir := t.TempDir()
	path := writeDistinctFile(t, dir, "a.wav", "content-a")

	extractor := newCountingExtractor()
	service := newTestService(extractor)

	first, cached, err := service.Fingerprint(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, cached)

	second, cached, err := service.Fingerprint(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, cached)

	assert.True(t, first.Equal(second))
	assert.Equal(t, 1, extractor.callCount(path))
}

func TestServiceIdenticalContentSharesKey(t *testing.T) {
	dir := t.TempDir()
	a := writeDistinctFile(t, dir, "a.wav", "same-bytes")
	b := writeDistinctFile(t, dir, "b.wav", "same-bytes")

	extractor := newCountingExtractor()
	service := newTestService(extractor)

	_, _, err := service.Fingerprint(context.Background(), a)
	require.NoError(t, err)
	_, cached, err := service.Fingerprint(context.Background(), b)
	require.NoError(t, err)

	// Byte-identical files share a content key, so only one compute ran
	assert.True(t, cached)
	assert.Equal(t, 1, extractor.callCount(a))
	assert.Zero(t, extractor.callCount(b))
}

func TestServiceMatchIdenticalFingerprints(t *testing.T) {
	dir := t.TempDir()
	a := writeDistinctFile(t, dir, "a.wav", "identical")
	b := writeDistinctFile(t, dir, "b.wav", "identical")

	service := newTestService(newCountingExtractor())
	result := service.Match(context.Background(), a, b)

	assert.Equal(t, 100.0, result.Score)
	assert.True(t, result.Identical)
	assert.True(t, result.Available)
}

func TestServiceMatchDistinctContent(t *testing.T) {
	dir := t.TempDir()
	a := writeDistinctFile(t, dir, "a.wav", "first-content")
	b := writeDistinctFile(t, dir, "b.wav", "second-content")

	extractor := newCountingExtractor()
	extractor.prints[a] = &Fingerprint{Algorithm: AlgorithmChromaprint, Hashes: mixedHashes(1, 128)}
	extractor.prints[b] = &Fingerprint{Algorithm: AlgorithmChromaprint, Hashes: mixedHashes(777, 128)}

	service := newTestService(extractor)
	result := service.Match(context.Background(), a, b)

	assert.True(t, result.Available)
	assert.False(t, result.Identical)
	assert.GreaterOrEqual(t, result.Score, 0.0)
	assert.Less(t, result.Score, 100.0)
}

func TestServiceMatchRecoversExtractorFailure(t *testing.T) {
	dir := t.TempDir()
	a := writeDistinctFile(t, dir, "a.wav", "alpha")
	b := writeDistinctFile(t, dir, "b.wav", "beta")

	extractor := newCountingExtractor()
	extractor.err = errors.New("binary exploded")

	service := newTestService(extractor)
	result := service.Match(context.Background(), a, b)

	assert.Equal(t, 0.0, result.Score)
	assert.False(t, result.Available)
	assert.NotEmpty(t, result.FailureReason)
}

func TestServiceMatchMissingFileUnavailable(t *testing.T) {
	dir := t.TempDir()
	a := writeDistinctFile(t, dir, "a.wav", "alpha")

	service := newTestService(newCountingExtractor())
	result := service.Match(context.Background(), a, filepath.Join(dir, "missing.wav"))

	assert.Equal(t, 0.0, result.Score)
	assert.False(t, result.Available)
}

func TestServiceClearCacheForcesRecompute(t *testing.T) {
	dir := t.TempDir()
	path := writeDistinctFile(t, dir, "a.wav", "recompute-me")

	extractor := newCountingExtractor()
	service := newTestService(extractor)

	_, _, err := service.Fingerprint(context.Background(), path)
	require.NoError(t, err)

	cleared, err := service.ClearCache()
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)

	_, cached, err := service.Fingerprint(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 2, extractor.callCount(path))
}

func TestContentKeyStability(t *testing.T) {
	dir := t.TempDir()
	a := writeDistinctFile(t, dir, "a.bin", "stable-content")
	b := writeDistinctFile(t, dir, "b.bin", "stable-content")
	c := writeDistinctFile(t, dir, "c.bin", "other-content")

	keyA1, err := ContentKey(a)
	require.NoError(t, err)
	keyA2, err := ContentKey(a)
	require.NoError(t, err)
	keyB, err := ContentKey(b)
	require.NoError(t, err)
	keyC, err := ContentKey(c)
	require.NoError(t, err)

	assert.Equal(t, keyA1, keyA2)
	assert.Equal(t, keyA1, keyB)
	assert.NotEqual(t, keyA1, keyC)
	assert.Len(t, string(keyA1), 64)

	_, err = ContentKey(filepath.Join(dir, "missing.bin"))
	assert.Error(t, err)
}
