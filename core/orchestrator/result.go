package orchestrator

import (
	"fmt"

	"ai-grader/core/models"
)

// ErrorKind classifies a failed grading run
type ErrorKind string

const (
	// KindNotFound: the submission does not exist; redelivery cannot help
	KindNotFound ErrorKind = "not_found"
	// KindTransientIO: artifact fetch or storage write failure; the queue
	// may redeliver within its attempt budget
	KindTransientIO ErrorKind = "transient_io"
	// KindValidation: the engine returned data violating its contract
	KindValidation ErrorKind = "validation"
	// KindEngine: the engine raised an error or timed out
	KindEngine ErrorKind = "engine"
)

// RunError is the tagged failure result of a grading stage. Every stage
// returns one instead of letting errors escape to an outer catch-all.
type RunError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *RunError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *RunError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether queue redelivery could change the result
func (e *RunError) Retryable() bool {
	return e.Kind == KindTransientIO
}

func failure(kind ErrorKind, message string, cause error) *RunError {
	return &RunError{Kind: kind, Message: message, Cause: cause}
}

// Outcome is the result of one call to Process
type Outcome struct {
	SubmissionID int64
	Status       models.SubmissionStatus
	// NoOp is set when the submission was already claimed or finished,
	// making this delivery a safe duplicate
	NoOp bool
}
