package app

import (
	"fmt"
	"os"
	"os/exec"

	"go.uber.org/multierr"

	"github.com/RyanBlaney/dubsync/configs"
	"github.com/RyanBlaney/dubsync/internal/analysis"
	"github.com/RyanBlaney/dubsync/internal/history"
	"github.com/RyanBlaney/dubsync/internal/metrics"
	"github.com/RyanBlaney/dubsync/internal/viz"
	"github.com/RyanBlaney/dubsync/pkg/audio"
	"github.com/RyanBlaney/dubsync/pkg/fingerprint"
	"github.com/RyanBlaney/dubsync/pkg/logging"
)

// Components bundles the wired analysis stack for one process
type Components struct {
	Decoder      audio.Decoder
	Fingerprints *fingerprint.Service
	Engine       *analysis.Engine
	Orchestrator *analysis.Orchestrator
	History      *history.Store
	Metrics      metrics.Reporter
	Logger       logging.Logger
}

// BuildComponents wires the full analysis stack from configuration
func BuildComponents(config *configs.Config, logger logging.Logger) (*Components, error) {
	if config == nil {
		config = configs.GetDefaultConfig()
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	if err := os.MkdirAll(config.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	decoder := audio.NewFFmpegDecoder(&audio.DecoderConfig{
		SampleRate:  config.Audio.SampleRate,
		MaxDuration: config.Audio.MaxDuration,
		FFmpegPath:  config.Audio.FFmpegPath,
		Logger:      logger,
	})

	extractor, err := newExtractor(config, decoder, logger)
	if err != nil {
		return nil, err
	}

	reporter, err := metrics.NewReporter(&metrics.Config{
		Enabled:   config.Metrics.Enabled,
		Address:   config.Metrics.Address,
		Namespace: config.Metrics.Namespace,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics reporter: %w", err)
	}

	fingerprints := fingerprint.NewService(&fingerprint.ServiceConfig{
		Extractor: extractor,
		Comparator: fingerprint.NewComparator(&fingerprint.ComparatorConfig{
			MaxOffset:  config.Fingerprint.MaxOffset,
			MinOverlap: config.Fingerprint.MinOverlap,
		}),
		Cache:   fingerprint.NewCache(config.FingerprintCachePath(), logger),
		Timeout: config.Fingerprint.Timeout,
		Logger:  logger,
	})

	var renderer analysis.Renderer
	if config.Analysis.RenderVisuals {
		renderer = viz.NewWaveformRenderer(&viz.RendererConfig{Logger: logger})
	}

	engine := analysis.NewEngine(&analysis.EngineConfig{
		HopLength: config.Audio.HopLength,
		TrimTopDB: config.Audio.TrimTopDB,
		Thresholds: analysis.Thresholds{
			SevereDesyncMs:     config.Analysis.Thresholds.SevereDesyncMs,
			MinorDesyncMs:      config.Analysis.Thresholds.MinorDesyncMs,
			MismatchScore:      config.Analysis.Thresholds.MismatchScore,
			LowConfidenceScore: config.Analysis.Thresholds.LowConfidenceScore,
		},
		SkipFingerprint: config.Analysis.SkipFingerprint,
		RenderVisuals:   config.Analysis.RenderVisuals,
		Logger:          logger,
	}, analysis.EngineDeps{
		Decoder:      decoder,
		Fingerprints: fingerprints,
		Renderer:     renderer,
		Metrics:      reporter,
	})

	orchestrator := analysis.NewOrchestrator(engine, &analysis.OrchestratorConfig{
		MaxConcurrent: config.Analysis.MaxConcurrent,
		Logger:        logger,
	})

	var historyStore *history.Store
	if config.History.Enabled {
		historyStore, err = history.Open(config.HistoryPath(), logger)
		if err != nil {
			_ = reporter.Close()
			return nil, fmt.Errorf("failed to open history store: %w", err)
		}
	}

	return &Components{
		Decoder:      decoder,
		Fingerprints: fingerprints,
		Engine:       engine,
		Orchestrator: orchestrator,
		History:      historyStore,
		Metrics:      reporter,
		Logger:       logger,
	}, nil
}

// Close releases process-lifetime resources
func (c *Components) Close() error {
	var errs error
	if c.History != nil {
		errs = multierr.Append(errs, c.History.Close())
	}
	if c.Metrics != nil {
		errs = multierr.Append(errs, c.Metrics.Close())
	}
	return errs
}

// newExtractor picks the fingerprinting backend. "auto" prefers fpcalc when
// the binary is on PATH and falls back to the in-process spectral hash.
func newExtractor(config *configs.Config, decoder audio.Decoder, logger logging.Logger) (fingerprint.Extractor, error) {
	chromaprint := func() fingerprint.Extractor {
		return fingerprint.NewChromaprintExtractor(&fingerprint.ChromaprintConfig{
			FpcalcPath: config.Fingerprint.FpcalcPath,
			Logger:     logger,
		})
	}
	spectral := func() fingerprint.Extractor {
		return fingerprint.NewSpectralExtractor(&fingerprint.SpectralConfig{
			Decoder: decoder,
			Logger:  logger,
		})
	}

	switch config.Fingerprint.Algorithm {
	case "chromaprint":
		return chromaprint(), nil
	case "spectral":
		return spectral(), nil
	case "auto", "":
		if _, err := exec.LookPath(config.Fingerprint.FpcalcPath); err == nil {
			return chromaprint(), nil
		}
		logger.Debug("fpcalc not found, using spectral fingerprinter", logging.Fields{
			"fpcalc_path": config.Fingerprint.FpcalcPath,
		})
		return spectral(), nil
	default:
		return nil, fmt.Errorf("unknown fingerprint algorithm: %q", config.Fingerprint.Algorithm)
	}
}
