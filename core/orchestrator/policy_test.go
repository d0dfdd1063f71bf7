package orchestrator

import (
	"testing"

	"ai-grader/core/models"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	policy := NewReviewPolicy(0.70)

	cases := []struct {
		name        string
		confidences []float64
		flags       []string
		want        models.SubmissionStatus
	}{
		{"high confidence no flags", []float64{0.90, 0.95}, nil, models.StatusGraded},
		{"one below threshold", []float64{0.90, 0.50}, nil, models.StatusNeedsReview},
		{"flagged by engine", []float64{0.90, 0.95}, []string{"needs_review"}, models.StatusNeedsReview},
		{"exactly at threshold stays graded", []float64{0.70, 0.70}, nil, models.StatusGraded},
		{"just below threshold", []float64{0.6999}, nil, models.StatusNeedsReview},
		{"unknown flags ignored", []float64{0.90}, []string{"plagiarism_suspected"}, models.StatusGraded},
		{"no criteria no flags", nil, nil, models.StatusGraded},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := policy.Classify(tc.confidences, tc.flags); got != tc.want {
				t.Fatalf("Classify(%v, %v) = %s, want %s", tc.confidences, tc.flags, got, tc.want)
			}
		})
	}
}

func TestNewReviewPolicyDefault(t *testing.T) {
	t.Parallel()

	if got := NewReviewPolicy(0).Threshold; got != DefaultConfidenceThreshold {
		t.Fatalf("zero threshold should fall back to default, got %v", got)
	}
	if got := NewReviewPolicy(0.85).Threshold; got != 0.85 {
		t.Fatalf("explicit threshold overridden: %v", got)
	}
}
