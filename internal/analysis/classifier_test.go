package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyOffsetBoundaries(t *testing.T) {
	classifier := NewClassifier(DefaultThresholds())

	tests := []struct {
		name     string
		offsetMs float64
		want     []string
	}{
		{"clean zero", 0, []string{}},
		{"exactly at minor threshold stays clean", 50.0, []string{}},
		{"just past minor threshold", 50.01, []string{IssueMinorDesync}},
		{"exactly at severe threshold stays minor", 100.0, []string{IssueMinorDesync}},
		{"just past severe threshold", 100.01, []string{IssueSevereDesync}},
		{"large positive", 432.5, []string{IssueSevereDesync}},
		{"negative offsets use magnitude", -75.0, []string{IssueMinorDesync}},
		{"large negative", -250.0, []string{IssueSevereDesync}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Score pinned clean so only the offset classifies
			issues := classifier.Classify(tt.offsetMs, 95.0, true)
			assert.Equal(t, tt.want, issues)
		})
	}
}

func TestClassifyScoreBoundaries(t *testing.T) {
	classifier := NewClassifier(DefaultThresholds())

	tests := []struct {
		name  string
		score float64
		want  []string
	}{
		{"zero score is a mismatch", 0, []string{IssueContentMismatch}},
		{"just below mismatch threshold", 29.99, []string{IssueContentMismatch}},
		{"exactly at mismatch threshold is low confidence", 30.0, []string{IssueLowConfidence}},
		{"just below confidence threshold", 59.99, []string{IssueLowConfidence}},
		{"exactly at confidence threshold is clean", 60.0, []string{}},
		{"perfect score", 100.0, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := classifier.Classify(0, tt.score, true)
			assert.Equal(t, tt.want, issues)
		})
	}
}

func TestClassifyIssueOrder(t *testing.T) {
	classifier := NewClassifier(DefaultThresholds())

	issues := classifier.Classify(150.0, 10.0, true)
	assert.Equal(t, []string{IssueSevereDesync, IssueContentMismatch}, issues)

	issues = classifier.Classify(75.0, 45.0, true)
	assert.Equal(t, []string{IssueMinorDesync, IssueLowConfidence}, issues)
}

func TestClassifyWithoutContent(t *testing.T) {
	classifier := NewClassifier(DefaultThresholds())

	// A zero score must not classify when content matching was skipped
	issues := classifier.Classify(0, 0, false)
	assert.Empty(t, issues)

	issues = classifier.Classify(150.0, 0, false)
	assert.Equal(t, []string{IssueSevereDesync}, issues)
}

func TestClassifyNeverReturnsNil(t *testing.T) {
	classifier := NewClassifier(DefaultThresholds())
	issues := classifier.Classify(0, 100, true)
	assert.NotNil(t, issues)
	assert.Len(t, issues, 0)
}

func TestNewClassifierZeroValuePicksDefaults(t *testing.T) {
	classifier := NewClassifier(Thresholds{})
	assert.Equal(t, []string{IssueMinorDesync}, classifier.Classify(100.0, 90.0, true))
}

func TestThresholdsValidate(t *testing.T) {
	assert.NoError(t, DefaultThresholds().Validate())

	bad := DefaultThresholds()
	bad.MinorDesyncMs = 200
	assert.Error(t, bad.Validate())

	bad = DefaultThresholds()
	bad.MismatchScore = 80
	assert.Error(t, bad.Validate())

	bad = DefaultThresholds()
	bad.SevereDesyncMs = 0
	assert.Error(t, bad.Validate())
}
