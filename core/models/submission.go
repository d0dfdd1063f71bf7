package models

import "time"

// Submission represents one student's graded work unit for an assignment
type Submission struct {
	ID            int64
	AssignmentID  int64
	StudentID     int64
	Status        SubmissionStatus
	FinalScore    *float64
	FinalFeedback *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SubmissionStatus represents the lifecycle state of a submission
type SubmissionStatus string

const (
	StatusQueued      SubmissionStatus = "queued"
	StatusGrading     SubmissionStatus = "grading"
	StatusGraded      SubmissionStatus = "graded"
	StatusNeedsReview SubmissionStatus = "needs_review"
	StatusError       SubmissionStatus = "error"
)

// Terminal reports whether no further automatic transition occurs
func (s SubmissionStatus) Terminal() bool {
	switch s {
	case StatusGraded, StatusNeedsReview, StatusError:
		return true
	}
	return false
}

// Artifact represents one uploaded file backing a submission
type Artifact struct {
	ID           int64
	SubmissionID int64
	Kind         string // raw tag from filename extension or mime type
	StorageKey   string
	SHA256       *string
	CreatedAt    time.Time
}

// ArtifactKind is a canonical content class the grading engine understands
type ArtifactKind string

const (
	KindPDF      ArtifactKind = "pdf"
	KindText     ArtifactKind = "text"
	KindNotebook ArtifactKind = "notebook"
	KindCode     ArtifactKind = "code"
	KindVideo    ArtifactKind = "video"
	KindImage    ArtifactKind = "image"
	KindOther    ArtifactKind = "other"
)

// CriterionScore represents one rubric dimension scored by the engine
type CriterionScore struct {
	ID           int64
	SubmissionID int64
	Criterion    string
	Score        float64
	Confidence   float64
	Rationale    string
	Evidence     map[string]interface{}
	Model        string
	CreatedAt    time.Time
}

// Assignment supplies grading context to the engine; read-only here
type Assignment struct {
	ID          int64
	CourseID    int64
	Title       string
	Description string
	Modality    string // text | code | video
	Rubric      []RubricCriterion
	CreatedAt   time.Time
}

// RubricCriterion is one criterion of an assignment rubric, forwarded
// to the engine as-is
type RubricCriterion struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Weight      float64 `json:"weight,omitempty"`
}
