package audio

import "math"

// SilenceTrimmer strips leading and trailing quiet regions from a buffer.
// A frame counts as quiet when its RMS sits more than topDB below the peak
// frame RMS, mirroring an amplitude-relative gate.
type SilenceTrimmer struct {
	hopLength int
	topDB     float64
}

// NewSilenceTrimmer creates a trimmer; zero arguments pick the defaults
// (hop 512, 60 dB gate)
func NewSilenceTrimmer(hopLength int, topDB float64) *SilenceTrimmer {
	if hopLength <= 0 {
		hopLength = 512
	}
	if topDB <= 0 {
		topDB = 60.0
	}
	return &SilenceTrimmer{hopLength: hopLength, topDB: topDB}
}

// Trim returns the buffer with edge silence removed. The result is never
// empty: when every frame is below the gate (digital silence) the input is
// returned unchanged, and any audible signal keeps at least its peak frame.
// Interior silence is untouched.
func (t *SilenceTrimmer) Trim(buf *Buffer) *Buffer {
	if buf.Empty() {
		return buf
	}

	rms := frameRMS(buf.Samples, t.hopLength)
	peak := 0.0
	for _, v := range rms {
		if v > peak {
			peak = v
		}
	}
	if peak <= 0 {
		return buf
	}

	threshold := peak * math.Pow(10, -t.topDB/20.0)

	first := -1
	last := -1
	for i, v := range rms {
		if v > threshold {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return buf
	}

	startSample := first * t.hopLength
	endSample := (last + 1) * t.hopLength
	if endSample > len(buf.Samples) {
		endSample = len(buf.Samples)
	}
	if startSample == 0 && endSample == len(buf.Samples) {
		return buf
	}

	return &Buffer{
		Samples:    buf.Samples[startSample:endSample],
		SampleRate: buf.SampleRate,
	}
}

// frameRMS computes per-frame RMS over consecutive non-overlapping frames
// of hop samples. A trailing partial frame is included so short buffers
// still produce at least one value.
func frameRMS(samples []float64, hop int) []float64 {
	if len(samples) == 0 || hop <= 0 {
		return nil
	}
	out := make([]float64, 0, (len(samples)+hop-1)/hop)
	for start := 0; start < len(samples); start += hop {
		end := start + hop
		if end > len(samples) {
			end = len(samples)
		}
		var sum float64
		for _, s := range samples[start:end] {
			sum += s * s
		}
		out = append(out, math.Sqrt(sum/float64(end-start)))
	}
	return out
}
