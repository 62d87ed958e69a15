package analysis

import (
	"context"
	"math"
	"path/filepath"
	"time"

	"github.com/RyanBlaney/dubsync/internal/metrics"
	"github.com/RyanBlaney/dubsync/pkg/audio"
	"github.com/RyanBlaney/dubsync/pkg/fingerprint"
	"github.com/RyanBlaney/dubsync/pkg/logging"
)

// Renderer draws the side-by-side waveform image for a finished comparison
// and returns it base64-encoded. Buffers are the untrimmed decodes.
type Renderer interface {
	RenderComparison(reference, candidate *audio.Buffer, offsetMs, matchScore float64) (string, error)
}

// Engine runs the drift pipeline for prepared references and candidates.
// Every stage is deterministic, so candidates sharing a prepared reference
// may run concurrently.
type Engine struct {
	decoder         audio.Decoder
	trimmer         *audio.SilenceTrimmer
	envelopes       *audio.EnvelopeExtractor
	lags            *audio.LagEstimator
	fingerprints    *fingerprint.Service
	classifier      *Classifier
	renderer        Renderer
	metrics         metrics.Reporter
	logger          logging.Logger
	skipFingerprint bool
	renderVisuals   bool
}

// EngineConfig contains analysis pipeline settings
type EngineConfig struct {
	// HopLength is the RMS frame size in samples for trimming and envelopes
	HopLength int
	// TrimTopDB is the silence threshold below the peak frame
	TrimTopDB float64
	// Thresholds drive issue classification
	Thresholds Thresholds
	// SkipFingerprint disables content matching entirely
	SkipFingerprint bool
	// RenderVisuals attaches a waveform comparison image to each result
	RenderVisuals bool
	Logger        logging.Logger
}

// EngineDeps are the capabilities the engine consumes
type EngineDeps struct {
	Decoder      audio.Decoder
	Fingerprints *fingerprint.Service
	Renderer     Renderer
	Metrics      metrics.Reporter
}

// NewEngine creates an analysis engine
func NewEngine(config *EngineConfig, deps EngineDeps) *Engine {
	if config == nil {
		config = &EngineConfig{}
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	reporter := deps.Metrics
	if reporter == nil {
		reporter = metrics.NopReporter{}
	}

	return &Engine{
		decoder:         deps.Decoder,
		trimmer:         audio.NewSilenceTrimmer(config.HopLength, config.TrimTopDB),
		envelopes:       audio.NewEnvelopeExtractor(config.HopLength),
		lags:            audio.NewLagEstimator(logger),
		fingerprints:    deps.Fingerprints,
		classifier:      NewClassifier(config.Thresholds),
		renderer:        deps.Renderer,
		metrics:         reporter,
		logger:          logger,
		skipFingerprint: config.SkipFingerprint,
		renderVisuals:   config.RenderVisuals,
	}
}

// Reference is the prepared reference side of a comparison, shared read-only
// by every candidate in a request
type Reference struct {
	Path     string
	Name     string
	Raw      *audio.Buffer
	Envelope *audio.Envelope
}

// PrepareReference decodes, trims and envelopes the reference once. Any
// failure here is fatal for the whole request.
func (e *Engine) PrepareReference(ctx context.Context, path string) (*Reference, error) {
	start := time.Now()

	buf, err := e.decoder.Decode(ctx, path)
	if err != nil {
		return nil, err
	}

	trimmed := e.trimmer.Trim(buf)
	envelope, err := e.envelopes.Extract(trimmed)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("Reference prepared", logging.Fields{
		"path":            path,
		"duration_s":      buf.Duration().Seconds(),
		"trimmed_samples": len(buf.Samples) - len(trimmed.Samples),
		"envelope_frames": envelope.Len(),
		"elapsed_ms":      time.Since(start).Milliseconds(),
	})

	return &Reference{
		Path:     path,
		Name:     filepath.Base(path),
		Raw:      buf,
		Envelope: envelope,
	}, nil
}

// AnalyzeCandidate runs the full pipeline for one candidate against a
// prepared reference. Failures never escape: they land in the result's
// Error field so sibling candidates keep going.
func (e *Engine) AnalyzeCandidate(ctx context.Context, ref *Reference, candidatePath string) *CandidateResult {
	start := time.Now()
	result := &CandidateResult{
		Filename: filepath.Base(candidatePath),
		Issues:   make([]string, 0, 2),
	}

	e.logger.Debug("Starting candidate analysis", logging.Fields{
		"reference": ref.Name,
		"candidate": result.Filename,
	})

	buf, err := e.decoder.Decode(ctx, candidatePath)
	if err != nil {
		return e.failCandidate(result, "decode failed", err, start)
	}
	result.DurationMs = roundToDecimalPlaces(float64(len(buf.Samples))/float64(buf.SampleRate)*1000, 2)

	trimmed := e.trimmer.Trim(buf)
	candEnvelope, err := e.envelopes.Extract(trimmed)
	if err != nil {
		return e.failCandidate(result, "envelope extraction failed", err, start)
	}

	lag, err := e.lags.EstimateOffset(ref.Envelope, candEnvelope)
	if err != nil {
		return e.failCandidate(result, "lag estimation failed", err, start)
	}
	result.OffsetMs = lag.OffsetMs
	result.LagFrames = lag.LagFrames

	// Content matching is independent of the drift path; a failed
	// fingerprint degrades to score 0 inside the service and the
	// classifier sees it like any other score.
	withContent := !e.skipFingerprint
	if withContent {
		match := e.fingerprints.Match(ctx, ref.Path, candidatePath)
		result.MatchConfidence = match.Score
		result.FingerprintAvailable = match.Available
	}

	result.Issues = e.classifier.Classify(result.OffsetMs, result.MatchConfidence, withContent)
	result.NeedsReview = len(result.Issues) > 0

	if e.renderVisuals && e.renderer != nil {
		visual, err := e.renderer.RenderComparison(ref.Raw, buf, result.OffsetMs, result.MatchConfidence)
		if err != nil {
			e.logger.Warn("Visual rendering failed", logging.Fields{
				"candidate": result.Filename,
				"error":     err.Error(),
			})
		} else {
			result.Visual = visual
		}
	}

	elapsed := time.Since(start)
	e.metrics.Timing("analysis.candidate", elapsed, "status:ok")
	e.metrics.Gauge("analysis.offset_ms", math.Abs(result.OffsetMs))
	if result.NeedsReview {
		e.metrics.Count("analysis.flagged", 1)
	}

	e.logger.Debug("Candidate analysis completed", logging.Fields{
		"reference":    ref.Name,
		"candidate":    result.Filename,
		"offset_ms":    result.OffsetMs,
		"match_score":  result.MatchConfidence,
		"needs_review": result.NeedsReview,
		"issue_count":  len(result.Issues),
		"elapsed_ms":   elapsed.Milliseconds(),
	})

	return result
}

// AnalyzeDrift runs the full pipeline for a single reference/candidate pair
func (e *Engine) AnalyzeDrift(ctx context.Context, referencePath, candidatePath string) (*CandidateResult, error) {
	ref, err := e.PrepareReference(ctx, referencePath)
	if err != nil {
		return nil, err
	}
	return e.AnalyzeCandidate(ctx, ref, candidatePath), nil
}

func (e *Engine) failCandidate(result *CandidateResult, stage string, err error, start time.Time) *CandidateResult {
	result.Error = stage + ": " + err.Error()

	e.metrics.Timing("analysis.candidate", time.Since(start), "status:error")
	e.metrics.Count("analysis.failed", 1)

	e.logger.Warn("Candidate analysis failed", logging.Fields{
		"candidate": result.Filename,
		"stage":     stage,
		"error":     err.Error(),
	})
	return result
}

func roundToDecimalPlaces(f float64, decimals int) float64 {
	multiplier := math.Pow10(decimals)
	return math.Round(f*multiplier) / multiplier
}
