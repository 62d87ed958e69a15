package analysis

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/dubsync/pkg/audio"
	"github.com/RyanBlaney/dubsync/pkg/fingerprint"
	"github.com/RyanBlaney/dubsync/pkg/logging"
)

const (
	testHop  = 512
	testRate = 22050
)

// fakeDecoder serves fixture buffers by path. Maps are read-only after
// construction; the counters track pool concurrency for orchestrator tests.
type fakeDecoder struct {
	buffers map[string]*audio.Buffer
	errs    map[string]error
	delay   time.Duration
	active  int32
	peak    int32
}

func (d *fakeDecoder) Decode(_ context.Context, path string) (*audio.Buffer, error) {
	current := atomic.AddInt32(&d.active, 1)
	defer atomic.AddInt32(&d.active, -1)
	for {
		peak := atomic.LoadInt32(&d.peak)
		if current <= peak || atomic.CompareAndSwapInt32(&d.peak, peak, current) {
			break
		}
	}
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	if err, ok := d.errs[path]; ok {
		return nil, err
	}
	buf, ok := d.buffers[path]
	if !ok {
		return nil, errors.New("no decode fixture for " + path)
	}
	return buf, nil
}

// frameBuffer builds a buffer of constant-amplitude frames so each hop frame
// has RMS exactly equal to its amplitude
func frameBuffer(amplitudes []float64) *audio.Buffer {
	samples := make([]float64, 0, len(amplitudes)*testHop)
	for _, a := range amplitudes {
		for i := 0; i < testHop; i++ {
			samples = append(samples, a)
		}
	}
	return &audio.Buffer{Samples: samples, SampleRate: testRate}
}

// patternFrames lays out a 40-frame energy pattern: loud edges so nothing
// trims, a quiet floor, and impulse markers whose position encodes timing
func patternFrames(markers ...int) []float64 {
	frames := make([]float64, 40)
	for i := range frames {
		frames[i] = 0.4
	}
	frames[0] = 0.6
	frames[len(frames)-1] = 0.6
	for _, idx := range markers {
		frames[idx] = 1.0
	}
	return frames
}

// memoryExtractor returns canned fingerprints keyed by path
type memoryExtractor struct {
	prints map[string]*fingerprint.Fingerprint
	err    error
}

func (f *memoryExtractor) Algorithm() fingerprint.Algorithm {
	return fingerprint.AlgorithmSpectral
}

func (f *memoryExtractor) Extract(_ context.Context, path string) (*fingerprint.Fingerprint, error) {
	if f.err != nil {
		return nil, f.err
	}
	if fp, ok := f.prints[path]; ok {
		return fp, nil
	}
	return &fingerprint.Fingerprint{Algorithm: fingerprint.AlgorithmSpectral, Hashes: []uint32{1, 2, 3, 4}}, nil
}

func newDriftOnlyEngine(decoder audio.Decoder) *Engine {
	return NewEngine(&EngineConfig{
		SkipFingerprint: true,
		Logger:          logging.NewNopLogger(),
	}, EngineDeps{Decoder: decoder})
}

func newContentEngine(decoder audio.Decoder, extractor fingerprint.Extractor) *Engine {
	service := fingerprint.NewService(&fingerprint.ServiceConfig{
		Extractor: extractor,
		Logger:    logging.NewNopLogger(),
	})
	return NewEngine(&EngineConfig{
		Logger: logging.NewNopLogger(),
	}, EngineDeps{Decoder: decoder, Fingerprints: service})
}

// writeScratchFile creates an on-disk file so content keys resolve
func writeScratchFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEngineDetectsKnownOffset(t *testing.T) {
	decoder := &fakeDecoder{buffers: map[string]*audio.Buffer{
		"ref.wav":  frameBuffer(patternFrames(10, 23)),
		"cand.wav": frameBuffer(patternFrames(15, 28)),
	}}
	engine := newDriftOnlyEngine(decoder)

	ref, err := engine.PrepareReference(context.Background(), "ref.wav")
	require.NoError(t, err)

	result := engine.AnalyzeCandidate(context.Background(), ref, "cand.wav")
	require.Empty(t, result.Error)

	// 5 frames later at hop 512 / 22050 Hz
	assert.Equal(t, 5, result.LagFrames)
	assert.Equal(t, 116.1, result.OffsetMs)
	assert.Equal(t, []string{IssueSevereDesync}, result.Issues)
	assert.True(t, result.NeedsReview)
}

func TestEngineNegativeOffset(t *testing.T) {
	decoder := &fakeDecoder{buffers: map[string]*audio.Buffer{
		"ref.wav":  frameBuffer(patternFrames(15, 28)),
		"cand.wav": frameBuffer(patternFrames(10, 23)),
	}}
	engine := newDriftOnlyEngine(decoder)

	ref, err := engine.PrepareReference(context.Background(), "ref.wav")
	require.NoError(t, err)

	result := engine.AnalyzeCandidate(context.Background(), ref, "cand.wav")
	require.Empty(t, result.Error)

	assert.Equal(t, -5, result.LagFrames)
	assert.Equal(t, -116.1, result.OffsetMs)
}

func TestEngineMinorDesyncRange(t *testing.T) {
	decoder := &fakeDecoder{buffers: map[string]*audio.Buffer{
		"ref.wav":  frameBuffer(patternFrames(10, 23)),
		"cand.wav": frameBuffer(patternFrames(13, 26)),
	}}
	engine := newDriftOnlyEngine(decoder)

	ref, err := engine.PrepareReference(context.Background(), "ref.wav")
	require.NoError(t, err)

	result := engine.AnalyzeCandidate(context.Background(), ref, "cand.wav")
	require.Empty(t, result.Error)

	assert.Equal(t, 3, result.LagFrames)
	assert.Equal(t, 69.66, result.OffsetMs)
	assert.Equal(t, []string{IssueMinorDesync}, result.Issues)
}

func TestEngineIdenticalCandidateIsClean(t *testing.T) {
	pattern := frameBuffer(patternFrames(10, 23))
	decoder := &fakeDecoder{buffers: map[string]*audio.Buffer{
		"ref.wav":  pattern,
		"cand.wav": pattern,
	}}
	engine := newDriftOnlyEngine(decoder)

	result, err := engine.AnalyzeDrift(context.Background(), "ref.wav", "cand.wav")
	require.NoError(t, err)
	require.Empty(t, result.Error)

	assert.Equal(t, 0, result.LagFrames)
	assert.Equal(t, 0.0, result.OffsetMs)
	assert.Empty(t, result.Issues)
	assert.False(t, result.NeedsReview)
}

func TestEngineDecodeFailureIsolated(t *testing.T) {
	decoder := &fakeDecoder{
		buffers: map[string]*audio.Buffer{"ref.wav": frameBuffer(patternFrames(10))},
		errs:    map[string]error{"cand.wav": errors.New("bitstream corrupt")},
	}
	engine := newDriftOnlyEngine(decoder)

	ref, err := engine.PrepareReference(context.Background(), "ref.wav")
	require.NoError(t, err)

	result := engine.AnalyzeCandidate(context.Background(), ref, "cand.wav")
	assert.True(t, result.Failed())
	assert.Contains(t, result.Error, "bitstream corrupt")
	assert.False(t, result.NeedsReview)
	assert.NotNil(t, result.Issues)
	assert.Empty(t, result.Issues)
}

func TestEngineReferenceFailureIsFatal(t *testing.T) {
	decoder := &fakeDecoder{errs: map[string]error{"ref.wav": errors.New("no audio stream")}}
	engine := newDriftOnlyEngine(decoder)

	_, err := engine.PrepareReference(context.Background(), "ref.wav")
	assert.Error(t, err)
}

func TestEngineIdenticalContentScoresHundred(t *testing.T) {
	dir := t.TempDir()
	refPath := writeScratchFile(t, dir, "ref.wav", "same-bytes-either-side")
	candPath := writeScratchFile(t, dir, "cand.wav", "same-bytes-either-side")

	pattern := frameBuffer(patternFrames(10, 23))
	decoder := &fakeDecoder{buffers: map[string]*audio.Buffer{
		refPath:  pattern,
		candPath: pattern,
	}}
	engine := newContentEngine(decoder, &memoryExtractor{})

	result, err := engine.AnalyzeDrift(context.Background(), refPath, candPath)
	require.NoError(t, err)
	require.Empty(t, result.Error)

	assert.Equal(t, 100.0, result.MatchConfidence)
	assert.True(t, result.FingerprintAvailable)
	assert.Empty(t, result.Issues)
	assert.False(t, result.NeedsReview)
}

func TestEngineFingerprintFailureDegradesToMismatch(t *testing.T) {
	dir := t.TempDir()
	refPath := writeScratchFile(t, dir, "ref.wav", "ref-bytes")
	candPath := writeScratchFile(t, dir, "cand.wav", "cand-bytes")

	pattern := frameBuffer(patternFrames(10, 23))
	decoder := &fakeDecoder{buffers: map[string]*audio.Buffer{
		refPath:  pattern,
		candPath: pattern,
	}}
	engine := newContentEngine(decoder, &memoryExtractor{err: errors.New("fpcalc exploded")})

	result, err := engine.AnalyzeDrift(context.Background(), refPath, candPath)
	require.NoError(t, err)

	// Drift numbers survive the fingerprint failure
	require.Empty(t, result.Error)
	assert.Equal(t, 0.0, result.OffsetMs)

	assert.Equal(t, 0.0, result.MatchConfidence)
	assert.False(t, result.FingerprintAvailable)
	assert.Equal(t, []string{IssueContentMismatch}, result.Issues)
	assert.True(t, result.NeedsReview)
}

func TestEngineSkipFingerprintSuppressesContentIssues(t *testing.T) {
	pattern := frameBuffer(patternFrames(10, 23))
	decoder := &fakeDecoder{buffers: map[string]*audio.Buffer{
		"ref.wav":  pattern,
		"cand.wav": pattern,
	}}
	engine := newDriftOnlyEngine(decoder)

	result, err := engine.AnalyzeDrift(context.Background(), "ref.wav", "cand.wav")
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.MatchConfidence)
	assert.False(t, result.FingerprintAvailable)
	assert.Empty(t, result.Issues)
}

type fixedRenderer struct {
	image string
	err   error
}

func (r *fixedRenderer) RenderComparison(_, _ *audio.Buffer, _, _ float64) (string, error) {
	return r.image, r.err
}

func TestEngineAttachesVisual(t *testing.T) {
	pattern := frameBuffer(patternFrames(10, 23))
	decoder := &fakeDecoder{buffers: map[string]*audio.Buffer{
		"ref.wav":  pattern,
		"cand.wav": pattern,
	}}
	engine := NewEngine(&EngineConfig{
		SkipFingerprint: true,
		RenderVisuals:   true,
		Logger:          logging.NewNopLogger(),
	}, EngineDeps{Decoder: decoder, Renderer: &fixedRenderer{image: "iVBORw0KGgo="}})

	result, err := engine.AnalyzeDrift(context.Background(), "ref.wav", "cand.wav")
	require.NoError(t, err)
	assert.Equal(t, "iVBORw0KGgo=", result.Visual)
}

func TestEngineRendererFailureIsNonFatal(t *testing.T) {
	pattern := frameBuffer(patternFrames(10, 23))
	decoder := &fakeDecoder{buffers: map[string]*audio.Buffer{
		"ref.wav":  pattern,
		"cand.wav": pattern,
	}}
	engine := NewEngine(&EngineConfig{
		SkipFingerprint: true,
		RenderVisuals:   true,
		Logger:          logging.NewNopLogger(),
	}, EngineDeps{Decoder: decoder, Renderer: &fixedRenderer{err: errors.New("png encode failed")}})

	result, err := engine.AnalyzeDrift(context.Background(), "ref.wav", "cand.wav")
	require.NoError(t, err)
	assert.Empty(t, result.Error)
	assert.Empty(t, result.Visual)
}

func TestEngineRecordsCandidateDuration(t *testing.T) {
	decoder := &fakeDecoder{buffers: map[string]*audio.Buffer{
		"ref.wav":  frameBuffer(patternFrames(10)),
		"cand.wav": frameBuffer(patternFrames(10)),
	}}
	engine := newDriftOnlyEngine(decoder)

	result, err := engine.AnalyzeDrift(context.Background(), "ref.wav", "cand.wav")
	require.NoError(t, err)

	// 40 frames of 512 samples at 22050 Hz
	assert.Equal(t, 928.8, result.DurationMs)
}
