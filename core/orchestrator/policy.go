package orchestrator

import "ai-grader/core/models"

// DefaultConfidenceThreshold routes a run to human review when any
// criterion confidence falls below it
const DefaultConfidenceThreshold = 0.70

// FlagNeedsReview is the advisory flag the engine raises to request
// human review regardless of confidence
const FlagNeedsReview = "needs_review"

// ReviewPolicy decides between the "graded" and "needs_review" terminal
// states. The threshold is a single configured policy value, not a
// per-call constant.
type ReviewPolicy struct {
	Threshold float64
}

// NewReviewPolicy creates a review policy, falling back to the default
// threshold for non-positive values
func NewReviewPolicy(threshold float64) ReviewPolicy {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	return ReviewPolicy{Threshold: threshold}
}

// Classify returns the terminal status for a successful engine run.
// The comparison is strict-less-than: a criterion sitting exactly at the
// threshold stays "graded".
func (p ReviewPolicy) Classify(confidences []float64, flags []string) models.SubmissionStatus {
	for _, confidence := range confidences {
		if confidence < p.Threshold {
			return models.StatusNeedsReview
		}
	}
	for _, flag := range flags {
		if flag == FlagNeedsReview {
			return models.StatusNeedsReview
		}
	}
	return models.StatusGraded
}
