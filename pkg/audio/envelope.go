package audio

import (
	"gonum.org/v1/gonum/floats"
)

// envelopeEpsilon guards the min-max normalization against division by
// zero on constant-energy input
const envelopeEpsilon = 1e-10

// EnvelopeExtractor converts a buffer into a normalized RMS energy contour
type EnvelopeExtractor struct {
	hopLength int
}

// NewEnvelopeExtractor creates an extractor; hop defaults to 512 samples
func NewEnvelopeExtractor(hopLength int) *EnvelopeExtractor {
	if hopLength <= 0 {
		hopLength = 512
	}
	return &EnvelopeExtractor{hopLength: hopLength}
}

// HopLength returns the frame hop in samples
func (e *EnvelopeExtractor) HopLength() int {
	return e.hopLength
}

// Extract computes the RMS envelope over consecutive non-overlapping frames
// of the hop length (a trailing partial frame is kept, so any non-empty
// buffer yields a non-empty envelope) and min-max normalizes it into [0, 1).
// Constant-energy input maps to all zeros through the epsilon guard.
func (e *EnvelopeExtractor) Extract(buf *Buffer) (*Envelope, error) {
	if buf.Empty() {
		return nil, NewAudioError("", ErrCodeEmptyInput, "cannot extract envelope from empty buffer", nil)
	}

	values := frameRMS(buf.Samples, e.hopLength)
	normalizeEnvelope(values)

	return &Envelope{
		Values:     values,
		HopLength:  e.hopLength,
		SampleRate: buf.SampleRate,
	}, nil
}

func normalizeEnvelope(values []float64) {
	if len(values) == 0 {
		return
	}
	minVal := floats.Min(values)
	maxVal := floats.Max(values)
	span := maxVal - minVal + envelopeEpsilon
	for i, v := range values {
		values[i] = (v - minVal) / span
	}
}
