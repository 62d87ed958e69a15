package analysis

import (
	"time"
)

// CandidateResult is the per-candidate outcome of a drift analysis. A
// positive OffsetMs means the candidate's events arrive later than the
// reference's.
type CandidateResult struct {
	Filename             string   `json:"filename" yaml:"filename"`
	OffsetMs             float64  `json:"offset_ms" yaml:"offset_ms"`
	LagFrames            int      `json:"lag_frames" yaml:"lag_frames"`
	MatchConfidence      float64  `json:"match_confidence" yaml:"match_confidence"`
	FingerprintAvailable bool     `json:"fingerprint_available" yaml:"fingerprint_available"`
	NeedsReview          bool     `json:"needs_review" yaml:"needs_review"`
	Issues               []string `json:"issues" yaml:"issues"`
	DurationMs           float64  `json:"duration_ms" yaml:"duration_ms"`
	Visual               string   `json:"visual,omitempty" yaml:"visual,omitempty"`
	Error                string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// Failed reports whether this candidate's pipeline aborted before producing
// drift numbers
func (r *CandidateResult) Failed() bool {
	return r.Error != ""
}

// Summary aggregates one report for dashboards and exit codes
type Summary struct {
	Candidates int   `json:"candidates" yaml:"candidates"`
	Flagged    int   `json:"flagged" yaml:"flagged"`
	Failed     int   `json:"failed" yaml:"failed"`
	ElapsedMs  int64 `json:"elapsed_ms" yaml:"elapsed_ms"`
}

// Report is the outcome of analyzing one reference against N candidates.
// Results preserve candidate submission order.
type Report struct {
	Reference   string             `json:"reference" yaml:"reference"`
	Results     []*CandidateResult `json:"results" yaml:"results"`
	Summary     *Summary           `json:"summary" yaml:"summary"`
	GeneratedAt time.Time          `json:"generated_at" yaml:"generated_at"`
}
