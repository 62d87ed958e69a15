package analysis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/dubsync/pkg/logging"
)

// DefaultMaxConcurrent bounds the per-request candidate worker pool
const DefaultMaxConcurrent = 4

// Orchestrator fans one reference out against N candidates. The reference
// is prepared once and shared read-only; candidates run on a bounded pool
// and fail independently.
type Orchestrator struct {
	engine        *Engine
	maxConcurrent int
	logger        logging.Logger
}

// OrchestratorConfig contains orchestration settings
type OrchestratorConfig struct {
	MaxConcurrent int
	Logger        logging.Logger
}

// NewOrchestrator creates an orchestrator around an engine
func NewOrchestrator(engine *Engine, config *OrchestratorConfig) *Orchestrator {
	if config == nil {
		config = &OrchestratorConfig{}
	}
	maxConcurrent := config.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	return &Orchestrator{
		engine:        engine,
		maxConcurrent: maxConcurrent,
		logger:        logger,
	}
}

// Run analyzes every candidate against the reference and assembles the
// report. Reference preparation failure or an empty candidate list aborts
// the request; individual candidate failures do not.
func (o *Orchestrator) Run(ctx context.Context, referencePath string, candidatePaths []string) (*Report, error) {
	if referencePath == "" {
		return nil, ErrNoReference
	}
	if len(candidatePaths) == 0 {
		return nil, ErrNoCandidates
	}

	start := time.Now()

	o.logger.Debug("Starting comparison run", logging.Fields{
		"reference":      referencePath,
		"candidates":     len(candidatePaths),
		"max_concurrent": o.maxConcurrent,
	})

	ref, err := o.engine.PrepareReference(ctx, referencePath)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare reference: %w", err)
	}

	results := make([]*CandidateResult, len(candidatePaths))

	var group errgroup.Group
	group.SetLimit(o.maxConcurrent)
	for i, path := range candidatePaths {
		i, path := i, path
		group.Go(func() error {
			results[i] = o.engine.AnalyzeCandidate(ctx, ref, path)
			return nil
		})
	}
	// Workers never return errors; failures live inside each result
	_ = group.Wait()

	summary := &Summary{
		Candidates: len(results),
		ElapsedMs:  time.Since(start).Milliseconds(),
	}
	var failures error
	for _, result := range results {
		if result.Failed() {
			summary.Failed++
			failures = multierr.Append(failures, fmt.Errorf("%s: %s", result.Filename, result.Error))
			continue
		}
		if result.NeedsReview {
			summary.Flagged++
		}
	}

	if failures != nil {
		o.logger.Warn("Some candidates failed", logging.Fields{
			"reference": ref.Name,
			"failed":    summary.Failed,
			"errors":    failures.Error(),
		})
	}

	o.logger.Info("Comparison run completed", logging.Fields{
		"reference":  ref.Name,
		"candidates": summary.Candidates,
		"flagged":    summary.Flagged,
		"failed":     summary.Failed,
		"elapsed_ms": summary.ElapsedMs,
	})

	return &Report{
		Reference:   ref.Name,
		Results:     results,
		Summary:     summary,
		GeneratedAt: time.Now().UTC(),
	}, nil
}
