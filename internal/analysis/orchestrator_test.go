package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/dubsync/pkg/audio"
	"github.com/RyanBlaney/dubsync/pkg/logging"
)

func newTestOrchestrator(decoder audio.Decoder, maxConcurrent int) *Orchestrator {
	engine := newDriftOnlyEngine(decoder)
	return NewOrchestrator(engine, &OrchestratorConfig{
		MaxConcurrent: maxConcurrent,
		Logger:        logging.NewNopLogger(),
	})
}

func TestOrchestratorRejectsEmptyRequests(t *testing.T) {
	orch := newTestOrchestrator(&fakeDecoder{}, 0)

	_, err := orch.Run(context.Background(), "", []string{"a.wav"})
	assert.ErrorIs(t, err, ErrNoReference)

	_, err = orch.Run(context.Background(), "ref.wav", nil)
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestOrchestratorReferenceFailureAbortsRequest(t *testing.T) {
	decoder := &fakeDecoder{errs: map[string]error{"ref.wav": errors.New("unreadable")}}
	orch := newTestOrchestrator(decoder, 0)

	_, err := orch.Run(context.Background(), "ref.wav", []string{"a.wav"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreadable")
}

func TestOrchestratorIsolatesCandidateFailures(t *testing.T) {
	decoder := &fakeDecoder{
		buffers: map[string]*audio.Buffer{
			"ref.wav": frameBuffer(patternFrames(10, 23)),
			"a.wav":   frameBuffer(patternFrames(10, 23)),
			"c.wav":   frameBuffer(patternFrames(15, 28)),
		},
		errs: map[string]error{"b.wav": errors.New("truncated file")},
	}
	orch := newTestOrchestrator(decoder, 2)

	report, err := orch.Run(context.Background(), "ref.wav", []string{"a.wav", "b.wav", "c.wav"})
	require.NoError(t, err)
	require.Len(t, report.Results, 3)

	// Submission order survives regardless of completion order
	assert.Equal(t, "a.wav", report.Results[0].Filename)
	assert.Equal(t, "b.wav", report.Results[1].Filename)
	assert.Equal(t, "c.wav", report.Results[2].Filename)

	assert.False(t, report.Results[0].Failed())
	assert.True(t, report.Results[1].Failed())
	assert.Contains(t, report.Results[1].Error, "truncated file")
	assert.False(t, report.Results[2].Failed())
	assert.Equal(t, 116.1, report.Results[2].OffsetMs)

	assert.Equal(t, 3, report.Summary.Candidates)
	assert.Equal(t, 1, report.Summary.Failed)
	assert.Equal(t, 1, report.Summary.Flagged)
	assert.Equal(t, "ref.wav", report.Reference)
	assert.False(t, report.GeneratedAt.IsZero())
}

func TestOrchestratorBoundsConcurrency(t *testing.T) {
	buffers := map[string]*audio.Buffer{"ref.wav": frameBuffer(patternFrames(10, 23))}
	candidates := []string{"c0.wav", "c1.wav", "c2.wav", "c3.wav", "c4.wav", "c5.wav"}
	for _, name := range candidates {
		buffers[name] = frameBuffer(patternFrames(10, 23))
	}
	decoder := &fakeDecoder{buffers: buffers, delay: 5 * time.Millisecond}
	orch := newTestOrchestrator(decoder, 2)

	report, err := orch.Run(context.Background(), "ref.wav", candidates)
	require.NoError(t, err)
	assert.Len(t, report.Results, len(candidates))

	// The reference decode runs alone, so candidate workers own the peak
	assert.LessOrEqual(t, decoder.peak, int32(2))
}

func TestOrchestratorDeterministicAcrossRuns(t *testing.T) {
	decoder := &fakeDecoder{buffers: map[string]*audio.Buffer{
		"ref.wav": frameBuffer(patternFrames(10, 23)),
		"a.wav":   frameBuffer(patternFrames(13, 26)),
		"b.wav":   frameBuffer(patternFrames(15, 28)),
	}}
	orch := newTestOrchestrator(decoder, 2)

	first, err := orch.Run(context.Background(), "ref.wav", []string{"a.wav", "b.wav"})
	require.NoError(t, err)
	second, err := orch.Run(context.Background(), "ref.wav", []string{"a.wav", "b.wav"})
	require.NoError(t, err)

	for i := range first.Results {
		assert.Equal(t, first.Results[i].OffsetMs, second.Results[i].OffsetMs)
		assert.Equal(t, first.Results[i].LagFrames, second.Results[i].LagFrames)
		assert.Equal(t, first.Results[i].Issues, second.Results[i].Issues)
	}
}

func TestReportJSONShape(t *testing.T) {
	decoder := &fakeDecoder{buffers: map[string]*audio.Buffer{
		"ref.wav":  frameBuffer(patternFrames(10, 23)),
		"cand.wav": frameBuffer(patternFrames(10, 23)),
	}}
	orch := newTestOrchestrator(decoder, 1)

	report, err := orch.Run(context.Background(), "ref.wav", []string{"cand.wav"})
	require.NoError(t, err)

	raw, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, "reference")
	assert.Contains(t, decoded, "results")
	assert.Contains(t, decoded, "summary")
	assert.Contains(t, decoded, "generated_at")

	results := decoded["results"].([]interface{})
	entry := results[0].(map[string]interface{})
	for _, key := range []string{
		"filename", "offset_ms", "lag_frames", "match_confidence",
		"fingerprint_available", "needs_review", "issues", "duration_ms",
	} {
		assert.Contains(t, entry, key)
	}

	// A clean result renders issues as an empty array, never null, and
	// omits the failure-only fields
	assert.Equal(t, []interface{}{}, entry["issues"])
	assert.NotContains(t, entry, "error")
	assert.NotContains(t, entry, "visual")
}
