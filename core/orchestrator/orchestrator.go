package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"ai-grader/core/engine"
	"ai-grader/core/models"
	"ai-grader/core/repository"
)

// SubmissionStore is the mutable submission state the orchestrator drives.
// GetSubmission must return repository.ErrSubmissionNotFound for unknown ids.
type SubmissionStore interface {
	GetSubmission(id int64) (*models.Submission, error)
	ClaimForGrading(id int64) (bool, error)
	FinalizeRun(id int64, status models.SubmissionStatus, finalScore float64, finalFeedback string, scores []models.CriterionScore) error
	MarkError(id int64, reason string) error
}

// AssignmentStore supplies read-only grading context
type AssignmentStore interface {
	GetAssignment(id int64) (*models.Assignment, error)
}

// ArtifactStore lists the artifact records backing a submission
type ArtifactStore interface {
	GetSubmissionArtifacts(submissionID int64) ([]models.Artifact, error)
}

// BlobStore fetches artifact bytes by storage key
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// AuditRecorder appends audit events
type AuditRecorder interface {
	Record(event models.AuditEvent) error
}

// Orchestrator runs one complete, idempotent grading pass per queued
// submission. All collaborators are injected; it never reaches into
// process-wide state.
type Orchestrator struct {
	submissions   SubmissionStore
	assignments   AssignmentStore
	artifacts     ArtifactStore
	blobs         BlobStore
	engine        engine.Client
	audit         AuditRecorder
	policy        ReviewPolicy
	engineTimeout time.Duration
}

// NewOrchestrator creates a grading orchestrator
func NewOrchestrator(
	submissions SubmissionStore,
	assignments AssignmentStore,
	artifacts ArtifactStore,
	blobs BlobStore,
	engineClient engine.Client,
	audit AuditRecorder,
	policy ReviewPolicy,
	engineTimeout time.Duration,
) *Orchestrator {
	if engineTimeout <= 0 {
		engineTimeout = 120 * time.Second
	}
	return &Orchestrator{
		submissions:   submissions,
		assignments:   assignments,
		artifacts:     artifacts,
		blobs:         blobs,
		engine:        engineClient,
		audit:         audit,
		policy:        policy,
		engineTimeout: engineTimeout,
	}
}

// Process drives one submission through queued → grading → terminal.
// Duplicate deliveries are safe: anything past "queued" short-circuits to
// a no-op success. On failure the submission row still reaches a terminal
// "error" status; the returned *RunError is for the queue's own
// retry/dead-letter accounting.
func (o *Orchestrator) Process(ctx context.Context, submissionID int64) (Outcome, error) {
	sub, err := o.submissions.GetSubmission(submissionID)
	if err != nil {
		if errors.Is(err, repository.ErrSubmissionNotFound) {
			return Outcome{SubmissionID: submissionID},
				failure(KindNotFound, fmt.Sprintf("submission %d does not exist", submissionID), err)
		}
		return Outcome{SubmissionID: submissionID},
			failure(KindTransientIO, "read submission", err)
	}

	if sub.Status != models.StatusQueued {
		return Outcome{SubmissionID: submissionID, Status: sub.Status, NoOp: true}, nil
	}

	claimed, err := o.submissions.ClaimForGrading(submissionID)
	if err != nil {
		return Outcome{SubmissionID: submissionID},
			failure(KindTransientIO, "claim submission", err)
	}
	if !claimed {
		// Another worker won the compare-and-set between our read and
		// the update; exactly one run owns the submission.
		fresh, err := o.submissions.GetSubmission(submissionID)
		if err != nil {
			return Outcome{SubmissionID: submissionID},
				failure(KindTransientIO, "re-read submission after lost claim", err)
		}
		return Outcome{SubmissionID: submissionID, Status: fresh.Status, NoOp: true}, nil
	}

	outcome, runErr := o.runClaimed(ctx, sub)
	if runErr != nil {
		o.failRun(submissionID, runErr)
		return Outcome{SubmissionID: submissionID, Status: models.StatusError}, runErr
	}
	return outcome, nil
}

// runClaimed executes the grading stages for a submission this worker owns.
// Any stage failure leaves the row in "grading"; the caller resolves it to
// "error".
func (o *Orchestrator) runClaimed(ctx context.Context, sub *models.Submission) (Outcome, *RunError) {
	assignment, err := o.assignments.GetAssignment(sub.AssignmentID)
	if err != nil {
		return Outcome{}, failure(KindTransientIO, fmt.Sprintf("load assignment %d", sub.AssignmentID), err)
	}

	records, err := o.artifacts.GetSubmissionArtifacts(sub.ID)
	if err != nil {
		return Outcome{}, failure(KindTransientIO, "list artifacts", err)
	}
	if len(records) == 0 {
		return Outcome{}, failure(KindValidation, "submission has no artifacts", nil)
	}

	// Partial input would produce a misleading grade, so any fetch
	// failure aborts before the engine is ever invoked.
	grouped := make(map[models.ArtifactKind][][]byte)
	for _, record := range records {
		data, err := o.blobs.Get(ctx, record.StorageKey)
		if err != nil {
			return Outcome{}, failure(KindTransientIO,
				fmt.Sprintf("fetch artifact %s (%s)", record.StorageKey, record.Kind), err)
		}
		kind := NormalizeKind(record.Kind)
		grouped[kind] = append(grouped[kind], data)
	}

	engineCtx, cancel := context.WithTimeout(ctx, o.engineTimeout)
	defer cancel()

	result, err := o.engine.Grade(engineCtx, assignment, grouped)
	if err != nil {
		return Outcome{}, failure(KindEngine, "engine grading failed", err)
	}
	if err := result.Validate(); err != nil {
		return Outcome{}, failure(KindValidation, "engine response violates contract", err)
	}

	scores := make([]models.CriterionScore, 0, len(result.Criteria))
	confidences := make([]float64, 0, len(result.Criteria))
	for _, criterion := range result.Criteria {
		scores = append(scores, models.CriterionScore{
			SubmissionID: sub.ID,
			Criterion:    criterion.Name,
			Score:        criterion.Score,
			Confidence:   criterion.Confidence,
			Rationale:    criterion.Rationale,
			Evidence:     criterion.Evidence,
			Model:        result.Model,
		})
		confidences = append(confidences, criterion.Confidence)
	}

	status := o.policy.Classify(confidences, result.Flags)

	if err := o.submissions.FinalizeRun(sub.ID, status, result.Overall.Score, result.Overall.Summary, scores); err != nil {
		return Outcome{}, failure(KindTransientIO, "persist grading result", err)
	}

	o.recordTerminal(sub.ID, status, nil)
	return Outcome{SubmissionID: sub.ID, Status: status}, nil
}

// failRun resolves a failed run to the terminal "error" status in a
// minimal separate transaction so the submission is never stranded in
// "grading".
func (o *Orchestrator) failRun(submissionID int64, runErr *RunError) {
	reason := runErr.Error()
	if err := o.submissions.MarkError(submissionID, reason); err != nil {
		log.Printf("Failed to mark submission %d as error: %v", submissionID, err)
	}
	o.recordTerminal(submissionID, models.StatusError, map[string]interface{}{"reason": reason})
}

func (o *Orchestrator) recordTerminal(submissionID int64, status models.SubmissionStatus, extra map[string]interface{}) {
	metadata := map[string]interface{}{"status": string(status)}
	for k, v := range extra {
		metadata[k] = v
	}

	event := models.AuditEvent{
		ActorUserID: nil, // system action
		Action:      models.ActionGradeSubmission,
		TargetType:  models.TargetSubmission,
		TargetID:    submissionID,
		Metadata:    metadata,
	}
	if err := o.audit.Record(event); err != nil {
		log.Printf("Failed to record audit event for submission %d: %v", submissionID, err)
	}
}
