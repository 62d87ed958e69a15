package configs

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// DefaultMaxUploadBytes caps a whole multipart upload request
const DefaultMaxUploadBytes = 500 * 1024 * 1024

// SetDefaults seeds every configuration key on the given viper instance.
// Values from config files, environment and flags still take precedence.
func SetDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()

	// Application defaults
	v.SetDefault("verbose", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("output_format", "table")
	v.SetDefault("config_dir", filepath.Join(home, ".config", "dubsync"))
	v.SetDefault("data_dir", filepath.Join(home, ".local", "share", "dubsync"))

	// Audio decode defaults
	v.SetDefault("audio.sample_rate", 22050)
	v.SetDefault("audio.max_duration", "60s")
	v.SetDefault("audio.hop_length", 512)
	v.SetDefault("audio.trim_top_db", 60.0)
	v.SetDefault("audio.ffmpeg_path", "ffmpeg")
	v.SetDefault("audio.ffprobe_path", "ffprobe")

	// Fingerprint defaults
	v.SetDefault("fingerprint.algorithm", "auto")
	v.SetDefault("fingerprint.fpcalc_path", "fpcalc")
	v.SetDefault("fingerprint.timeout", "30s")
	v.SetDefault("fingerprint.cache_path", "")
	v.SetDefault("fingerprint.max_offset", 64)
	v.SetDefault("fingerprint.min_overlap", 16)

	// Analysis defaults
	v.SetDefault("analysis.thresholds.severe_desync_ms", 100.0)
	v.SetDefault("analysis.thresholds.minor_desync_ms", 50.0)
	v.SetDefault("analysis.thresholds.mismatch_score", 30.0)
	v.SetDefault("analysis.thresholds.low_confidence_score", 60.0)
	v.SetDefault("analysis.max_concurrent", 4)
	v.SetDefault("analysis.skip_fingerprint", false)
	v.SetDefault("analysis.render_visuals", true)

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_upload_bytes", DefaultMaxUploadBytes)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.record_history", true)

	// History defaults
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "")

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.address", "127.0.0.1:8125")
	v.SetDefault("metrics.namespace", "dubsync.")
}

// GetDefaultConfig returns a Config struct with all default values set
func GetDefaultConfig() *Config {
	home, _ := os.UserHomeDir()

	return &Config{
		Verbose:      false,
		LogLevel:     "info",
		LogFormat:    "console",
		OutputFormat: "table",
		ConfigDir:    filepath.Join(home, ".config", "dubsync"),
		DataDir:      filepath.Join(home, ".local", "share", "dubsync"),

		Audio:       GetDefaultAudioConfig(),
		Fingerprint: GetDefaultFingerprintConfig(),
		Analysis:    GetDefaultAnalysisConfig(),
		Server:      GetDefaultServerConfig(),
		History:     GetDefaultHistoryConfig(),
		Metrics:     GetDefaultMetricsConfig(),
	}
}

// GetDefaultAudioConfig returns default decode and envelope settings
func GetDefaultAudioConfig() AudioConfig {
	return AudioConfig{
		SampleRate:  22050,
		MaxDuration: 60 * time.Second,
		HopLength:   512,
		TrimTopDB:   60.0,
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
	}
}

// GetDefaultFingerprintConfig returns default content matching settings
func GetDefaultFingerprintConfig() FingerprintConfig {
	return FingerprintConfig{
		Algorithm:  "auto",
		FpcalcPath: "fpcalc",
		Timeout:    30 * time.Second,
		CachePath:  "",
		MaxOffset:  64,
		MinOverlap: 16,
	}
}

// GetDefaultAnalysisConfig returns default classification settings
func GetDefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		Thresholds:      GetDefaultThresholdConfig(),
		MaxConcurrent:   4,
		SkipFingerprint: false,
		RenderVisuals:   true,
	}
}

// GetDefaultThresholdConfig returns the stock review thresholds
func GetDefaultThresholdConfig() ThresholdConfig {
	return ThresholdConfig{
		SevereDesyncMs:     100.0,
		MinorDesyncMs:      50.0,
		MismatchScore:      30.0,
		LowConfidenceScore: 60.0,
	}
}

// GetDefaultServerConfig returns default review server settings
func GetDefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		MaxUploadBytes:  DefaultMaxUploadBytes,
		ShutdownTimeout: 10 * time.Second,
		RecordHistory:   true,
	}
}

// GetDefaultHistoryConfig returns default history settings
func GetDefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		Enabled: true,
		Path:    "",
	}
}

// GetDefaultMetricsConfig returns default metrics settings
func GetDefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   false,
		Address:   "127.0.0.1:8125",
		Namespace: "dubsync.",
	}
}
