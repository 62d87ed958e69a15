package fingerprint

import (
	"context"
	"math"
	"time"

	"github.com/RyanBlaney/dubsync/pkg/logging"
)

// Extractor is the fingerprinting capability the service runs behind a
// timeout. Implementations must be deterministic for identical input bytes.
type Extractor interface {
	Algorithm() Algorithm
	Extract(ctx context.Context, path string) (*Fingerprint, error)
}

// ServiceConfig wires a Service
type ServiceConfig struct {
	Extractor  Extractor
	Comparator *Comparator
	Cache      *Cache
	// Timeout bounds a single fingerprint computation; zero disables it
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
	Logger  logging.Logger
}

// Service computes, caches and compares fingerprints. It owns the cache:
// for a given content key the extractor runs at most once until the cache
// is cleared (concurrent first requests may race; both results are valid
// and the last write wins).
type Service struct {
	extractor  Extractor
	comparator *Comparator
	cache      *Cache
	timeout    time.Duration
	logger     logging.Logger
}

// NewService creates the service, filling in defaults for missing pieces
func NewService(config *ServiceConfig) *Service {
	if config == nil {
		config = &ServiceConfig{}
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	comparator := config.Comparator
	if comparator == nil {
		comparator = NewComparator(nil)
	}
	cache := config.Cache
	if cache == nil {
		cache = NewCache("", logger)
	}
	return &Service{
		extractor:  config.Extractor,
		comparator: comparator,
		cache:      cache,
		timeout:    config.Timeout,
		logger:     logger,
	}
}

// MatchResult is the outcome of comparing two files by fingerprint
type MatchResult struct {
	// Score is the similarity percentage in [0, 100], two decimals
	Score float64 `json:"score" yaml:"score"`
	// Identical means the fingerprints were byte-for-byte equal; the score
	// is forced to 100 regardless of the comparator
	Identical bool `json:"identical" yaml:"identical"`
	// Available is false when either fingerprint could not be produced;
	// the score is then 0 and drift analysis proceeds without it
	Available bool `json:"available" yaml:"available"`
	// RefCached / CandidateCached report cache hits for observability
	RefCached       bool `json:"ref_cached" yaml:"ref_cached"`
	CandidateCached bool `json:"candidate_cached" yaml:"candidate_cached"`
	// FailureReason explains unavailability when Available is false
	FailureReason string `json:"failure_reason,omitempty" yaml:"failure_reason,omitempty"`
}

// Fingerprint returns the print for path, computing through the cache.
// The second return reports whether the cache already held it.
func (s *Service) Fingerprint(ctx context.Context, path string) (*Fingerprint, bool, error) {
	if s.extractor == nil {
		return nil, false, NewUnavailableError(path, "no fingerprint extractor configured", nil)
	}

	key, err := ContentKey(path)
	if err != nil {
		return nil, false, NewUnavailableError(path, "cannot derive content key", err)
	}

	if fp, ok := s.cache.Get(key); ok {
		s.logger.Debug("Fingerprint cache hit", logging.Fields{
			"path": path,
			"key":  string(key),
		})
		return fp, true, nil
	}

	extractCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		extractCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	fp, err := s.extractor.Extract(extractCtx, path)
	if err != nil {
		if IsUnavailable(err) {
			return nil, false, err
		}
		return nil, false, NewUnavailableError(path, "fingerprint extraction failed", err)
	}
	if fp.Empty() {
		return nil, false, NewUnavailableError(path, "extractor produced an empty fingerprint", nil)
	}

	if err := s.cache.Put(key, fp); err != nil {
		// A persistence problem must not fail the analysis
		s.logger.Warn("Failed to cache fingerprint", logging.Fields{
			"path":  path,
			"error": err.Error(),
		})
	}
	return fp, false, nil
}

// Match compares two files. It never returns an error: fingerprint
// problems are recovered into an unavailable result with score zero so the
// drift measurement can still complete.
func (s *Service) Match(ctx context.Context, refPath, candidatePath string) *MatchResult {
	result := &MatchResult{}

	refFP, refCached, err := s.Fingerprint(ctx, refPath)
	if err != nil {
		return s.unavailable(result, refPath, err)
	}
	result.RefCached = refCached

	candFP, candCached, err := s.Fingerprint(ctx, candidatePath)
	if err != nil {
		return s.unavailable(result, candidatePath, err)
	}
	result.CandidateCached = candCached

	if refFP.Equal(candFP) {
		result.Score = 100.0
		result.Identical = true
		result.Available = true
		return result
	}

	similarity, err := s.comparator.Similarity(refFP, candFP)
	if err != nil {
		return s.unavailable(result, candidatePath, err)
	}

	result.Score = roundScore(similarity * 100.0)
	result.Available = true
	return result
}

// ClearCache drops every cached fingerprint and returns how many were held
func (s *Service) ClearCache() (int, error) {
	return s.cache.Clear()
}

// CacheLen returns the number of cached fingerprints
func (s *Service) CacheLen() int {
	return s.cache.Len()
}

// CachePath returns the persistence path, empty for memory-only caches
func (s *Service) CachePath() string {
	return s.cache.Path()
}

func (s *Service) unavailable(result *MatchResult, path string, err error) *MatchResult {
	s.logger.Warn("Fingerprint comparison unavailable, continuing with drift only", logging.Fields{
		"path":  path,
		"error": err.Error(),
	})
	result.Score = 0.0
	result.Available = false
	result.FailureReason = err.Error()
	return result
}

func roundScore(v float64) float64 {
	return math.Round(v*100) / 100
}
