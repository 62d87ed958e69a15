package configs

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	// Application settings
	Verbose      bool   `mapstructure:"verbose"`
	LogLevel     string `mapstructure:"log_level"`
	LogFormat    string `mapstructure:"log_format"`
	OutputFormat string `mapstructure:"output_format"`
	ConfigDir    string `mapstructure:"config_dir"`
	DataDir      string `mapstructure:"data_dir"`

	// Audio decode and envelope settings
	Audio AudioConfig `mapstructure:"audio"`

	// Content fingerprinting settings
	Fingerprint FingerprintConfig `mapstructure:"fingerprint"`

	// Drift analysis settings
	Analysis AnalysisConfig `mapstructure:"analysis"`

	// Review server settings
	Server ServerConfig `mapstructure:"server"`

	// Analysis history settings
	History HistoryConfig `mapstructure:"history"`

	// Metrics reporting settings
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// AudioConfig contains decode and envelope settings
type AudioConfig struct {
	SampleRate  int           `mapstructure:"sample_rate"`
	MaxDuration time.Duration `mapstructure:"max_duration"`
	HopLength   int           `mapstructure:"hop_length"`
	TrimTopDB   float64       `mapstructure:"trim_top_db"`
	FFmpegPath  string        `mapstructure:"ffmpeg_path"`
	FFprobePath string        `mapstructure:"ffprobe_path"`
}

// FingerprintConfig contains content matching settings
type FingerprintConfig struct {
	Algorithm  string        `mapstructure:"algorithm"`
	FpcalcPath string        `mapstructure:"fpcalc_path"`
	Timeout    time.Duration `mapstructure:"timeout"`
	CachePath  string        `mapstructure:"cache_path"`
	MaxOffset  int           `mapstructure:"max_offset"`
	MinOverlap int           `mapstructure:"min_overlap"`
}

// AnalysisConfig contains classification and orchestration settings
type AnalysisConfig struct {
	Thresholds      ThresholdConfig `mapstructure:"thresholds"`
	MaxConcurrent   int             `mapstructure:"max_concurrent"`
	SkipFingerprint bool            `mapstructure:"skip_fingerprint"`
	RenderVisuals   bool            `mapstructure:"render_visuals"`
}

// ThresholdConfig contains review threshold settings
type ThresholdConfig struct {
	SevereDesyncMs     float64 `mapstructure:"severe_desync_ms"`
	MinorDesyncMs      float64 `mapstructure:"minor_desync_ms"`
	MismatchScore      float64 `mapstructure:"mismatch_score"`
	LowConfidenceScore float64 `mapstructure:"low_confidence_score"`
}

// ServerConfig contains review server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RecordHistory   bool          `mapstructure:"record_history"`
}

// HistoryConfig contains analysis history settings
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// MetricsConfig contains statsd reporting settings
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Namespace string `mapstructure:"namespace"`
}

// LoadConfig loads configuration from the global viper instance
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(viper.GetViper())
}

// LoadConfigFrom loads configuration from a specific viper instance
func LoadConfigFrom(v *viper.Viper) (*Config, error) {
	config := &Config{}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}

	return config, nil
}

// ValidateConfig validates the configuration
func ValidateConfig(config *Config) error {
	if config.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio sample rate must be positive")
	}

	if config.Audio.HopLength <= 0 {
		return fmt.Errorf("audio hop length must be positive")
	}

	if config.Audio.TrimTopDB <= 0 {
		return fmt.Errorf("audio trim threshold must be positive")
	}

	if config.Audio.MaxDuration < 0 {
		return fmt.Errorf("audio max duration cannot be negative")
	}

	switch config.Fingerprint.Algorithm {
	case "auto", "chromaprint", "spectral":
	default:
		return fmt.Errorf("unknown fingerprint algorithm: %q", config.Fingerprint.Algorithm)
	}

	if config.Fingerprint.Timeout < 0 {
		return fmt.Errorf("fingerprint timeout cannot be negative")
	}

	t := config.Analysis.Thresholds
	if t.MinorDesyncMs <= 0 || t.SevereDesyncMs <= 0 {
		return fmt.Errorf("desync thresholds must be positive")
	}
	if t.MinorDesyncMs >= t.SevereDesyncMs {
		return fmt.Errorf("minor desync threshold must be below severe")
	}
	if t.MismatchScore >= t.LowConfidenceScore {
		return fmt.Errorf("mismatch score threshold must be below low confidence")
	}

	if config.Analysis.MaxConcurrent <= 0 {
		return fmt.Errorf("max concurrent analyses must be positive")
	}

	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}

	if config.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload size must be positive")
	}

	return nil
}

// FingerprintCachePath resolves the cache file, falling back to the data dir
func (c *Config) FingerprintCachePath() string {
	if c.Fingerprint.CachePath != "" {
		return c.Fingerprint.CachePath
	}
	return filepath.Join(c.DataDir, "fingerprints.json")
}

// HistoryPath resolves the history database file, falling back to the data dir
func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return filepath.Join(c.DataDir, "history.db")
}

// SessionRoot is where per-request upload workspaces live
func (c *Config) SessionRoot() string {
	return filepath.Join(c.DataDir, "sessions")
}

// ListenAddr joins host and port for the HTTP server
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
