package analysis

import (
	"fmt"
	"math"
)

// Review issue strings the review UI keys on. The timing issue (if any)
// always precedes the content issue.
const (
	IssueSevereDesync    = "Severe desync (>100ms)"
	IssueMinorDesync     = "Minor desync (50-100ms)"
	IssueContentMismatch = "Content mismatch - wrong dub?"
	IssueLowConfidence   = "Low confidence match"
)

// Thresholds drive issue classification. Boundary values are exact: an
// offset of 50ms is clean, 100ms is a minor desync; a score of 30 is low
// confidence, 60 is clean.
type Thresholds struct {
	SevereDesyncMs     float64 `json:"severe_desync_ms" yaml:"severe_desync_ms" mapstructure:"severe_desync_ms"`
	MinorDesyncMs      float64 `json:"minor_desync_ms" yaml:"minor_desync_ms" mapstructure:"minor_desync_ms"`
	MismatchScore      float64 `json:"mismatch_score" yaml:"mismatch_score" mapstructure:"mismatch_score"`
	LowConfidenceScore float64 `json:"low_confidence_score" yaml:"low_confidence_score" mapstructure:"low_confidence_score"`
}

// DefaultThresholds returns the stock review thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{
		SevereDesyncMs:     100,
		MinorDesyncMs:      50,
		MismatchScore:      30,
		LowConfidenceScore: 60,
	}
}

// Validate checks threshold ordering
func (t Thresholds) Validate() error {
	if t.MinorDesyncMs <= 0 || t.SevereDesyncMs <= 0 {
		return fmt.Errorf("desync thresholds must be positive")
	}
	if t.MinorDesyncMs >= t.SevereDesyncMs {
		return fmt.Errorf("minor desync threshold (%.1f) must be below severe (%.1f)",
			t.MinorDesyncMs, t.SevereDesyncMs)
	}
	if t.MismatchScore >= t.LowConfidenceScore {
		return fmt.Errorf("mismatch score threshold (%.1f) must be below low confidence (%.1f)",
			t.MismatchScore, t.LowConfidenceScore)
	}
	return nil
}

// Classifier turns drift numbers into review issues
type Classifier struct {
	thresholds Thresholds
}

// NewClassifier creates a classifier; zero thresholds pick the defaults
func NewClassifier(thresholds Thresholds) *Classifier {
	if thresholds == (Thresholds{}) {
		thresholds = DefaultThresholds()
	}
	return &Classifier{thresholds: thresholds}
}

// Classify evaluates an offset and a match score against the thresholds.
// withContent gates the content issues: when fingerprinting was deliberately
// skipped the score is meaningless and must not raise issues, but a score of
// 0 from a failed fingerprint classifies normally.
func (c *Classifier) Classify(offsetMs, matchScore float64, withContent bool) []string {
	issues := make([]string, 0, 2)

	absOffset := math.Abs(offsetMs)
	switch {
	case absOffset > c.thresholds.SevereDesyncMs:
		issues = append(issues, IssueSevereDesync)
	case absOffset > c.thresholds.MinorDesyncMs:
		issues = append(issues, IssueMinorDesync)
	}

	if withContent {
		switch {
		case matchScore < c.thresholds.MismatchScore:
			issues = append(issues, IssueContentMismatch)
		case matchScore < c.thresholds.LowConfidenceScore:
			issues = append(issues, IssueLowConfidence)
		}
	}

	return issues
}
