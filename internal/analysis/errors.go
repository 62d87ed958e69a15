package analysis

import "errors"

// Request-level validation failures. Candidate-level failures stay inside
// CandidateResult.Error; these abort the whole request.
var (
	ErrNoReference  = errors.New("no reference recording provided")
	ErrNoCandidates = errors.New("no usable candidate recordings provided")
)
