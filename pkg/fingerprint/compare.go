package fingerprint

import (
	"fmt"
	"math/bits"
)

// chanceBitErrorRate is the expected BER between unrelated prints; the
// similarity scale is stretched so that chance maps to zero instead of 0.5
const chanceBitErrorRate = 0.5

// ComparatorConfig holds similarity search settings
type ComparatorConfig struct {
	// MaxOffset bounds the alignment search in frames either direction
	MaxOffset int `json:"max_offset" yaml:"max_offset"`
	// MinOverlap is the smallest frame overlap worth scoring
	MinOverlap int `json:"min_overlap" yaml:"min_overlap"`
}

// DefaultComparatorConfig returns the stock search window
func DefaultComparatorConfig() *ComparatorConfig {
	return &ComparatorConfig{
		MaxOffset:  64,
		MinOverlap: 16,
	}
}

// Comparator scores two fingerprints of the same algorithm. The score is
// timing-tolerant: the comparator slides the prints across a bounded offset
// window and keeps the best chance-corrected bit agreement, so a constant
// global delay does not read as a content change.
type Comparator struct {
	maxOffset  int
	minOverlap int
}

// NewComparator creates a comparator; nil config picks the defaults
func NewComparator(config *ComparatorConfig) *Comparator {
	if config == nil {
		config = DefaultComparatorConfig()
	}
	maxOffset := config.MaxOffset
	if maxOffset < 0 {
		maxOffset = 0
	}
	minOverlap := config.MinOverlap
	if minOverlap < 1 {
		minOverlap = 1
	}
	return &Comparator{maxOffset: maxOffset, minOverlap: minOverlap}
}

// Similarity returns a score in [0, 1]: 1 for identical prints, near 0 for
// unrelated content (bit agreement at chance level). Prints from different
// algorithms cannot be scored.
func (c *Comparator) Similarity(a, b *Fingerprint) (float64, error) {
	if a.Empty() || b.Empty() {
		return 0, fmt.Errorf("cannot compare empty fingerprints")
	}
	if a.Algorithm != b.Algorithm {
		return 0, fmt.Errorf("cannot compare %s fingerprint against %s", a.Algorithm, b.Algorithm)
	}

	best := -1.0
	for offset := -c.maxOffset; offset <= c.maxOffset; offset++ {
		ber, overlap := bitErrorRate(a.Hashes, b.Hashes, offset)
		if overlap < c.minOverlap {
			continue
		}
		if sim := similarityFromBER(ber); sim > best {
			best = sim
		}
	}

	if best < 0 {
		// Prints shorter than the overlap floor: score the direct alignment
		ber, overlap := bitErrorRate(a.Hashes, b.Hashes, 0)
		if overlap == 0 {
			return 0, fmt.Errorf("fingerprints do not overlap")
		}
		best = similarityFromBER(ber)
	}
	return best, nil
}

func similarityFromBER(ber float64) float64 {
	sim := 1.0 - ber/chanceBitErrorRate
	if sim < 0 {
		sim = 0
	}
	if sim > 1 {
		sim = 1
	}
	return sim
}

// bitErrorRate compares a[i] against b[i-offset] over the overlapping
// region and returns the fraction of differing bits plus the overlap size
func bitErrorRate(a, b []uint32, offset int) (float64, int) {
	lo := 0
	if offset > 0 {
		lo = offset
	}
	hi := len(a)
	if limit := len(b) + offset; limit < hi {
		hi = limit
	}
	if hi <= lo {
		return 1.0, 0
	}

	errBits := 0
	for i := lo; i < hi; i++ {
		errBits += bits.OnesCount32(a[i] ^ b[i-offset])
	}
	overlap := hi - lo
	return float64(errBits) / float64(overlap*32), overlap
}
