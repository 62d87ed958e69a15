package configs

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoadConfigFromDefaults(t *testing.T) {
	config, err := LoadConfigFrom(newDefaultViper())
	require.NoError(t, err)

	assert.Equal(t, 22050, config.Audio.SampleRate)
	assert.Equal(t, 60*time.Second, config.Audio.MaxDuration)
	assert.Equal(t, 512, config.Audio.HopLength)
	assert.InDelta(t, 60.0, config.Audio.TrimTopDB, 1e-9)
	assert.Equal(t, "ffmpeg", config.Audio.FFmpegPath)

	assert.Equal(t, "auto", config.Fingerprint.Algorithm)
	assert.Equal(t, "fpcalc", config.Fingerprint.FpcalcPath)
	assert.Equal(t, 30*time.Second, config.Fingerprint.Timeout)
	assert.Equal(t, 64, config.Fingerprint.MaxOffset)
	assert.Equal(t, 16, config.Fingerprint.MinOverlap)

	assert.InDelta(t, 100.0, config.Analysis.Thresholds.SevereDesyncMs, 1e-9)
	assert.InDelta(t, 50.0, config.Analysis.Thresholds.MinorDesyncMs, 1e-9)
	assert.InDelta(t, 30.0, config.Analysis.Thresholds.MismatchScore, 1e-9)
	assert.InDelta(t, 60.0, config.Analysis.Thresholds.LowConfidenceScore, 1e-9)
	assert.Equal(t, 4, config.Analysis.MaxConcurrent)
	assert.False(t, config.Analysis.SkipFingerprint)
	assert.True(t, config.Analysis.RenderVisuals)

	assert.Equal(t, "0.0.0.0:8080", config.ListenAddr())
	assert.EqualValues(t, DefaultMaxUploadBytes, config.Server.MaxUploadBytes)
	assert.Equal(t, 10*time.Second, config.Server.ShutdownTimeout)
	assert.True(t, config.Server.RecordHistory)

	assert.True(t, config.History.Enabled)
	assert.False(t, config.Metrics.Enabled)
	assert.Equal(t, "dubsync.", config.Metrics.Namespace)

	assert.NoError(t, ValidateConfig(config))
}

func TestLoadConfigFromOverrides(t *testing.T) {
	v := newDefaultViper()
	v.Set("audio.sample_rate", 44100)
	v.Set("analysis.max_concurrent", 8)
	v.Set("analysis.thresholds.severe_desync_ms", 250.0)
	v.Set("server.port", 9090)
	v.Set("fingerprint.algorithm", "spectral")

	config, err := LoadConfigFrom(v)
	require.NoError(t, err)

	assert.Equal(t, 44100, config.Audio.SampleRate)
	assert.Equal(t, 8, config.Analysis.MaxConcurrent)
	assert.InDelta(t, 250.0, config.Analysis.Thresholds.SevereDesyncMs, 1e-9)
	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, "spectral", config.Fingerprint.Algorithm)
	assert.NoError(t, ValidateConfig(config))
}

func TestValidateConfigRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero sample rate", func(c *Config) { c.Audio.SampleRate = 0 }},
		{"zero hop length", func(c *Config) { c.Audio.HopLength = 0 }},
		{"negative max duration", func(c *Config) { c.Audio.MaxDuration = -time.Second }},
		{"unknown algorithm", func(c *Config) { c.Fingerprint.Algorithm = "md5" }},
		{"negative fingerprint timeout", func(c *Config) { c.Fingerprint.Timeout = -time.Second }},
		{"minor above severe", func(c *Config) { c.Analysis.Thresholds.MinorDesyncMs = 200 }},
		{"mismatch above low confidence", func(c *Config) { c.Analysis.Thresholds.MismatchScore = 90 }},
		{"zero workers", func(c *Config) { c.Analysis.MaxConcurrent = 0 }},
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"zero upload cap", func(c *Config) { c.Server.MaxUploadBytes = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			config := GetDefaultConfig()
			tc.mutate(config)
			assert.Error(t, ValidateConfig(config))
		})
	}
}

func TestDerivedPaths(t *testing.T) {
	config := GetDefaultConfig()
	config.DataDir = "/var/lib/dubsync"

	assert.Equal(t, "/var/lib/dubsync/fingerprints.json", config.FingerprintCachePath())
	assert.Equal(t, "/var/lib/dubsync/history.db", config.HistoryPath())
	assert.Equal(t, "/var/lib/dubsync/sessions", config.SessionRoot())

	config.Fingerprint.CachePath = "/tmp/prints.json"
	config.History.Path = "/tmp/audits.db"
	assert.Equal(t, "/tmp/prints.json", config.FingerprintCachePath())
	assert.Equal(t, "/tmp/audits.db", config.HistoryPath())
}
