package fingerprint

import (
	"context"
	"math"
	"time"

	"github.com/mjibson/go-dsp/fft"

	"github.com/RyanBlaney/dubsync/pkg/audio"
	"github.com/RyanBlaney/dubsync/pkg/logging"
)

// Spectral extractor tunables. 33 log-spaced bands over the speech-dominant
// range give 32 difference bits per frame.
const (
	spectralWindowSize = 1024
	spectralHopSize    = 256
	spectralBands      = 33
	spectralMinFreq    = 300.0
	spectralMaxFreq    = 3000.0
)

// SpectralConfig holds built-in extractor settings
type SpectralConfig struct {
	// Decoder supplies PCM for the file being fingerprinted
	Decoder audio.Decoder
	Logger  logging.Logger
}

// SpectralExtractor is the in-process fallback fingerprinter: a
// band-energy-difference sign hash (one uint32 per STFT frame). It needs no
// external binary and is fully deterministic, so byte-identical inputs
// always produce equal fingerprints.
type SpectralExtractor struct {
	decoder audio.Decoder
	logger  logging.Logger
}

// NewSpectralExtractor creates the extractor; the decoder is required
func NewSpectralExtractor(config *SpectralConfig) *SpectralExtractor {
	if config == nil {
		config = &SpectralConfig{}
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &SpectralExtractor{decoder: config.Decoder, logger: logger}
}

// Algorithm identifies the scheme
func (e *SpectralExtractor) Algorithm() Algorithm {
	return AlgorithmSpectral
}

// Extract decodes the file and hashes it frame by frame
func (e *SpectralExtractor) Extract(ctx context.Context, path string) (*Fingerprint, error) {
	if e.decoder == nil {
		return nil, NewUnavailableError(path, "spectral extractor has no decoder", nil)
	}

	start := time.Now()
	buf, err := e.decoder.Decode(ctx, path)
	if err != nil {
		return nil, NewUnavailableError(path, "cannot decode audio for fingerprinting", err)
	}

	hashes := hashSpectralFrames(buf)
	if len(hashes) == 0 {
		return nil, NewUnavailableError(path, "audio too short to fingerprint", nil)
	}

	e.logger.Debug("Computed spectral fingerprint", logging.Fields{
		"path":       path,
		"hashes":     len(hashes),
		"elapsed_ms": time.Since(start).Milliseconds(),
	})

	return &Fingerprint{Algorithm: AlgorithmSpectral, Hashes: hashes}, nil
}

// hashSpectralFrames computes one uint32 per STFT frame. Bit b is the sign
// of the band-energy difference gradient between adjacent bands and
// adjacent frames, which survives volume changes and mild re-encoding.
func hashSpectralFrames(buf *audio.Buffer) []uint32 {
	samples := buf.Samples
	if len(samples) < spectralWindowSize*2 {
		return nil
	}

	window := hammingWindow(spectralWindowSize)
	edges := logBandEdges(buf.SampleRate)

	var hashes []uint32
	var prev []float64
	frame := make([]float64, spectralWindowSize)

	for start := 0; start+spectralWindowSize <= len(samples); start += spectralHopSize {
		for i := 0; i < spectralWindowSize; i++ {
			frame[i] = samples[start+i] * window[i]
		}

		spectrum := fft.FFTReal(frame)
		energies := bandEnergies(spectrum, edges)

		if prev != nil {
			var h uint32
			for b := 0; b < spectralBands-1; b++ {
				diff := (energies[b] - energies[b+1]) - (prev[b] - prev[b+1])
				if diff > 0 {
					h |= 1 << uint(b)
				}
			}
			hashes = append(hashes, h)
		}
		prev = energies
	}
	return hashes
}

func bandEnergies(spectrum []complex128, edges []int) []float64 {
	energies := make([]float64, spectralBands)
	for b := 0; b < spectralBands; b++ {
		var sum float64
		for bin := edges[b]; bin < edges[b+1]; bin++ {
			re := real(spectrum[bin])
			im := imag(spectrum[bin])
			sum += re*re + im*im
		}
		energies[b] = sum
	}
	return energies
}

// logBandEdges maps the band layout onto FFT bins for the given rate,
// clamped to Nyquist and forced monotonic so every band covers at least
// one bin
func logBandEdges(sampleRate int) []int {
	half := spectralWindowSize / 2
	maxFreq := spectralMaxFreq
	nyquist := float64(sampleRate) / 2
	if maxFreq > nyquist {
		maxFreq = nyquist
	}

	edges := make([]int, spectralBands+1)
	ratio := maxFreq / spectralMinFreq
	for k := 0; k <= spectralBands; k++ {
		freq := spectralMinFreq * math.Pow(ratio, float64(k)/float64(spectralBands))
		bin := int(freq * float64(spectralWindowSize) / float64(sampleRate))
		if k > 0 && bin <= edges[k-1] {
			bin = edges[k-1] + 1
		}
		if bin > half {
			bin = half
		}
		edges[k] = bin
	}
	return edges
}

// hammingWindow returns a Hamming window of length n
func hammingWindow(n int) []float64 {
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}
