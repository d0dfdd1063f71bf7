package models

import "time"

// AuditEvent represents one append-only audit log entry
type AuditEvent struct {
	ID          int64
	ActorUserID *int64 // nil for system actions
	Action      string
	TargetType  string
	TargetID    int64
	Metadata    map[string]interface{}
	CreatedAt   time.Time
}

// Audit actions emitted by this service
const (
	ActionCreateSubmission = "CREATE_SUBMISSION"
	ActionGradeSubmission  = "GRADE_SUBMISSION"
	ActionViewSubmission   = "VIEW_SUBMISSION"
	ActionRequeueStuck     = "REQUEUE_STUCK"
)

// TargetSubmission is the audit target type for submission events; every
// event this service emits is anchored to a submission row.
const TargetSubmission = "Submission"
