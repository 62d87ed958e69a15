package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-audio/wav"

	"github.com/RyanBlaney/dubsync/pkg/logging"
)

// Decoder converts an audio file into a mono Buffer at the analysis rate
type Decoder interface {
	Decode(ctx context.Context, path string) (*Buffer, error)
}

// DecoderConfig holds decoder settings
type DecoderConfig struct {
	// SampleRate is the analysis rate everything is resampled to
	SampleRate int `json:"sample_rate" yaml:"sample_rate"`
	// MaxDuration caps how much audio is decoded; zero means unlimited
	MaxDuration time.Duration `json:"max_duration" yaml:"max_duration"`
	// FFmpegPath overrides the ffmpeg binary name
	FFmpegPath string `json:"ffmpeg_path" yaml:"ffmpeg_path"`
	Logger     logging.Logger
}

// FFmpegDecoder decodes any supported container through an ffmpeg subprocess
// writing raw little-endian float64 mono to stdout. WAV files that already
// match the analysis format are read in-process without spawning ffmpeg.
type FFmpegDecoder struct {
	sampleRate  int
	maxDuration time.Duration
	ffmpegPath  string
	logger      logging.Logger
}

// NewFFmpegDecoder creates a decoder with the given configuration
func NewFFmpegDecoder(config *DecoderConfig) *FFmpegDecoder {
	if config == nil {
		config = &DecoderConfig{}
	}
	sampleRate := config.SampleRate
	if sampleRate <= 0 {
		sampleRate = 22050
	}
	ffmpegPath := config.FFmpegPath
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	return &FFmpegDecoder{
		sampleRate:  sampleRate,
		maxDuration: config.MaxDuration,
		ffmpegPath:  ffmpegPath,
		logger:      logger,
	}
}

// SampleRate returns the analysis rate this decoder resamples to
func (d *FFmpegDecoder) SampleRate() int {
	return d.sampleRate
}

// Decode reads the file at path into a mono Buffer at the analysis rate
func (d *FFmpegDecoder) Decode(ctx context.Context, path string) (*Buffer, error) {
	if !SupportedContainer(path) {
		return nil, NewAudioError(path, ErrCodeUnsupportedContainer,
			fmt.Sprintf("unsupported container %q (supported: %s)",
				filepath.Ext(path), strings.Join(SupportedExtensions(), " ")), nil)
	}

	if _, err := os.Stat(path); err != nil {
		return nil, NewAudioError(path, ErrCodeDecodeFailed, "cannot access input file", err)
	}

	start := time.Now()

	var samples []float64
	var fastPath bool
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		samples, fastPath = d.decodeWAVDirect(path)
	}
	if !fastPath {
		decoded, err := d.decodeFFmpeg(ctx, path)
		if err != nil {
			return nil, err
		}
		samples = decoded
	}

	if len(samples) == 0 {
		return nil, NewAudioError(path, ErrCodeNoAudio, "no audio samples decoded", nil)
	}

	// Cap the buffer even when the subprocess already applied -t
	if d.maxDuration > 0 {
		maxSamples := int(d.maxDuration.Seconds() * float64(d.sampleRate))
		if maxSamples > 0 && len(samples) > maxSamples {
			samples = samples[:maxSamples]
		}
	}

	d.logger.Debug("Decoded audio file", logging.Fields{
		"path":        path,
		"samples":     len(samples),
		"sample_rate": d.sampleRate,
		"fast_path":   fastPath,
		"elapsed_ms":  time.Since(start).Milliseconds(),
	})

	return &Buffer{Samples: samples, SampleRate: d.sampleRate}, nil
}

// decodeWAVDirect reads 16-bit PCM WAV files already at the analysis rate
// without spawning ffmpeg. Any surprise (bit depth, rate, malformed header)
// reports ok=false so the caller falls back to the subprocess path.
func (d *FFmpegDecoder) decodeWAVDirect(path string) ([]float64, bool) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, false
	}
	if int(dec.SampleRate) != d.sampleRate || dec.BitDepth != 16 {
		return nil, false
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil || buf == nil || buf.Format == nil {
		return nil, false
	}
	channels := buf.Format.NumChannels
	if channels < 1 {
		return nil, false
	}

	frames := len(buf.Data) / channels
	mono := make([]float64, 0, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c])
		}
		mono = append(mono, sum/float64(channels)/32768.0)
	}
	return mono, true
}

func (d *FFmpegDecoder) decodeFFmpeg(ctx context.Context, path string) ([]float64, error) {
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-i", path,
		"-vn", "-sn", "-dn",
		"-ac", "1",
		"-ar", strconv.Itoa(d.sampleRate),
	}
	if d.maxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.3f", d.maxDuration.Seconds()))
	}
	args = append(args, "-f", "f64le", "-c:a", "pcm_f64le", "pipe:1")

	cmd := exec.CommandContext(ctx, d.ffmpegPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, NewAudioError(path, ErrCodeDecodeFailed, "decode canceled", ctx.Err())
		}
		return nil, NewAudioError(path, ErrCodeDecodeFailed,
			fmt.Sprintf("ffmpeg failed: %s", stderrExcerpt(stderr.Bytes())), err)
	}

	return parseF64LE(stdout.Bytes()), nil
}

// parseF64LE converts raw little-endian float64 PCM bytes into samples.
// Trailing partial values are dropped.
func parseF64LE(raw []byte) []float64 {
	samples := make([]float64, 0, len(raw)/8)
	for i := 0; i+8 <= len(raw); i += 8 {
		bits := binary.LittleEndian.Uint64(raw[i : i+8])
		v := math.Float64frombits(bits)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		samples = append(samples, v)
	}
	return samples
}

// stderrExcerpt keeps error payloads readable when ffmpeg dumps pages
func stderrExcerpt(raw []byte) string {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "no diagnostic output"
	}
	if idx := strings.IndexByte(text, '\n'); idx > 0 {
		text = text[:idx]
	}
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}
