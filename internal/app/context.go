package app

import (
	"context"
	"fmt"

	"github.com/RyanBlaney/dubsync/configs"
	"github.com/RyanBlaney/dubsync/pkg/logging"
)

// Context holds the application context and configuration
type Context struct {
	// CLI arguments
	ConfigFile      string
	ManifestFile    string
	ReferencePath   string
	CandidatePaths  []string
	OutputFile      string
	OutputFormat    string
	MaxConcurrent   int
	Verbose         bool
	Quiet           bool
	SkipFingerprint bool
	RenderVisuals   bool

	// Runtime context
	Logger logging.Logger
	Config *configs.Config
}

// AnalyzerApp handles the analyze command lifecycle
type AnalyzerApp struct {
	ctx    *Context
	config *configs.Config
	logger logging.Logger
}

// NewAnalyzerApp creates an analyzer application from parsed CLI context
func NewAnalyzerApp(ctx *Context) (*AnalyzerApp, error) {
	config, err := loadAndMergeConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	ctx.Config = config

	logger := setupLogging(ctx, config)
	ctx.Logger = logger

	logger.Debug("Analyzer application initialized", logging.Fields{
		"reference":     ctx.ReferencePath,
		"candidates":    len(ctx.CandidatePaths),
		"manifest":      ctx.ManifestFile,
		"output_format": config.OutputFormat,
	})

	return &AnalyzerApp{
		ctx:    ctx,
		config: config,
		logger: logger,
	}, nil
}

// Run executes the analysis batch
func (app *AnalyzerApp) Run(ctx context.Context) error {
	components, err := BuildComponents(app.config, app.logger)
	if err != nil {
		return fmt.Errorf("failed to build analysis components: %w", err)
	}
	defer func() { _ = components.Close() }()

	report, err := components.Orchestrator.Run(ctx, app.ctx.ReferencePath, app.ctx.CandidatePaths)
	if err != nil {
		return err
	}

	if components.History != nil {
		if err := components.History.Record(ctx, report); err != nil {
			app.logger.Warn("Failed to record analysis history", logging.Fields{
				"error": err.Error(),
			})
		}
	}

	data, err := FormatReport(report, app.config.OutputFormat)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}
	if err := WriteOutput(data, app.ctx.OutputFile, app.logger); err != nil {
		return err
	}

	if report.Summary.Failed > 0 && report.Summary.Failed == report.Summary.Candidates {
		return fmt.Errorf("all candidate analyses failed")
	}

	return nil
}

// setupLogging configures logging from config with CLI overrides
func setupLogging(ctx *Context, config *configs.Config) logging.Logger {
	level := config.LogLevel
	if config.Verbose || ctx.Verbose {
		level = "debug"
	}
	if ctx.Quiet {
		level = "error"
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  level,
		Format: config.LogFormat,
	})
	if err != nil {
		return logging.NewDefaultLogger()
	}
	return logger
}

// loadAndMergeConfig loads configuration and merges CLI flags and manifest
func loadAndMergeConfig(ctx *Context) (*configs.Config, error) {
	config, err := configs.LoadConfig()
	if err != nil {
		return nil, err
	}

	if ctx.ManifestFile != "" {
		manifest, err := LoadManifest(ctx.ManifestFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load manifest: %w", err)
		}
		if ctx.ReferencePath == "" {
			ctx.ReferencePath = manifest.Reference
		}
		ctx.CandidatePaths = append(ctx.CandidatePaths, manifest.Candidates...)
	}

	// CLI flags beat config file values
	if ctx.MaxConcurrent > 0 {
		config.Analysis.MaxConcurrent = ctx.MaxConcurrent
	}
	if ctx.SkipFingerprint {
		config.Analysis.SkipFingerprint = true
	}
	// Visuals are opt-in on the command line regardless of the server default
	config.Analysis.RenderVisuals = ctx.RenderVisuals
	if ctx.OutputFormat != "" {
		config.OutputFormat = ctx.OutputFormat
	}

	if err := configs.ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}
