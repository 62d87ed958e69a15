package audio

import (
	"math"

	"github.com/RyanBlaney/dubsync/pkg/logging"
)

// LagResult describes the estimated displacement of a candidate envelope
// relative to a reference envelope
type LagResult struct {
	// LagFrames is the displacement in envelope frames; positive means the
	// candidate's events occur later than the reference's
	LagFrames int `json:"lag_frames" yaml:"lag_frames"`
	// OffsetMs is the displacement converted to milliseconds, rounded to
	// two decimal places
	OffsetMs float64 `json:"offset_ms" yaml:"offset_ms"`
	// Peak is the raw correlation value at the chosen lag
	Peak float64 `json:"peak" yaml:"peak"`
}

// LagEstimator finds the global lag between two envelopes by linear
// cross-correlation
type LagEstimator struct {
	logger logging.Logger
}

// NewLagEstimator creates an estimator
func NewLagEstimator(logger logging.Logger) *LagEstimator {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &LagEstimator{logger: logger}
}

// EstimateOffset cross-correlates the candidate envelope against the
// reference envelope and converts the peak lag to milliseconds.
//
// The correlation is "same"-mode: the output spans the longer of the two
// inputs and output index i corresponds to displacing the candidate by
// i - len(reference)/2 frames. For equal-length inputs this matches
// centered linear correlation exactly. Ties on the peak value resolve to
// the lowest index, so results are deterministic.
func (l *LagEstimator) EstimateOffset(reference, candidate *Envelope) (*LagResult, error) {
	if reference.Len() == 0 || candidate.Len() == 0 {
		return nil, NewAudioError("", ErrCodeEmptyInput, "cannot correlate empty envelopes", nil)
	}
	if reference.SampleRate != candidate.SampleRate || reference.HopLength != candidate.HopLength {
		return nil, NewAudioError("", ErrCodeMismatchedParams,
			"envelope parameters differ between reference and candidate", nil)
	}

	correlation := crossCorrelateSame(candidate.Values, reference.Values)
	peakIdx := argmax(correlation)
	lagFrames := peakIdx - len(reference.Values)/2

	frameMs := float64(reference.HopLength) / float64(reference.SampleRate) * 1000.0
	offsetMs := roundToDecimalPlaces(float64(lagFrames)*frameMs, 2)

	l.logger.Debug("Estimated envelope lag", logging.Fields{
		"lag_frames":     lagFrames,
		"offset_ms":      offsetMs,
		"peak":           correlation[peakIdx],
		"ref_frames":     reference.Len(),
		"cand_frames":    candidate.Len(),
		"frame_ms":       frameMs,
		"correlation_sz": len(correlation),
	})

	return &LagResult{
		LagFrames: lagFrames,
		OffsetMs:  offsetMs,
		Peak:      correlation[peakIdx],
	}, nil
}

// crossCorrelateSame computes linear cross-correlation of candidate against
// reference with "same" centering: out[i] is the raw dot product over the
// overlapping region when the candidate is displaced by i - len(reference)/2
// frames. The output length is the longer of the two inputs.
func crossCorrelateSame(candidate, reference []float64) []float64 {
	outLen := len(candidate)
	if len(reference) > outLen {
		outLen = len(reference)
	}
	center := len(reference) / 2

	out := make([]float64, outLen)
	for i := 0; i < outLen; i++ {
		d := i - center
		lo := 0
		if d > 0 {
			lo = d
		}
		hi := len(candidate)
		if limit := len(reference) + d; limit < hi {
			hi = limit
		}
		var sum float64
		for j := lo; j < hi; j++ {
			sum += candidate[j] * reference[j-d]
		}
		out[i] = sum
	}
	return out
}

// argmax returns the index of the first occurrence of the maximum value
func argmax(values []float64) int {
	best := 0
	bestVal := math.Inf(-1)
	for i, v := range values {
		if v > bestVal {
			best = i
			bestVal = v
		}
	}
	return best
}

// roundToDecimalPlaces rounds a float to the specified number of decimals
func roundToDecimalPlaces(value float64, decimals int) float64 {
	shift := math.Pow10(decimals)
	return math.Round(value*shift) / shift
}
