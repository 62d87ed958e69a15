package audio

import (
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Buffer holds decoded mono PCM at a known sample rate. Buffers are produced
// by decoding and treated as immutable afterwards; processing stages return
// new buffers or views instead of mutating in place.
type Buffer struct {
	Samples    []float64 `json:"-"`
	SampleRate int       `json:"sample_rate"`
}

// Duration returns the buffer length as wall-clock time
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(b.Samples)) / float64(b.SampleRate) * float64(time.Second))
}

// Empty reports whether the buffer carries no samples
func (b *Buffer) Empty() bool {
	return b == nil || len(b.Samples) == 0
}

// Window returns up to the first seconds worth of samples, for rendering
func (b *Buffer) Window(seconds float64) []float64 {
	if b == nil || seconds <= 0 {
		return nil
	}
	n := int(seconds * float64(b.SampleRate))
	if n > len(b.Samples) {
		n = len(b.Samples)
	}
	return b.Samples[:n]
}

// Envelope is a normalized RMS energy contour extracted from a buffer. It
// remembers the framing parameters so downstream stages can verify that two
// envelopes are comparable.
type Envelope struct {
	Values     []float64 `json:"values"`
	HopLength  int       `json:"hop_length"`
	SampleRate int       `json:"sample_rate"`
}

// Len returns the number of envelope frames
func (e *Envelope) Len() int {
	if e == nil {
		return 0
	}
	return len(e.Values)
}

// FrameDuration returns the wall-clock span of one envelope frame
func (e *Envelope) FrameDuration() time.Duration {
	if e == nil || e.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(e.HopLength) / float64(e.SampleRate) * float64(time.Second))
}

var supportedContainers = map[string]struct{}{
	".wav":  {},
	".mp3":  {},
	".m4a":  {},
	".flac": {},
	".aac":  {},
	".mp4":  {},
}

// SupportedContainer reports whether the file extension names a container
// the decoder accepts. The check is extension based; content sniffing is
// left to ffmpeg itself.
func SupportedContainer(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	_, ok := supportedContainers[ext]
	return ok
}

// SupportedExtensions returns the accepted extensions sorted, for messages
func SupportedExtensions() []string {
	exts := make([]string, 0, len(supportedContainers))
	for ext := range supportedContainers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
