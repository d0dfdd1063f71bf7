package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ai-grader/core/models"
)

// ErrSubmissionNotFound is returned when a submission id does not exist
var ErrSubmissionNotFound = errors.New("submission not found")

// SubmissionRepository handles database operations for submissions
type SubmissionRepository struct {
	db *DB
}

// NewSubmissionRepository creates a new submission repository
func NewSubmissionRepository(db *DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// CreateSubmission creates a new submission in "queued" state
func (r *SubmissionRepository) CreateSubmission(sub *models.Submission) error {
	query := `
		INSERT INTO submissions (assignment_id, student_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, created_at
	`

	if sub.Status == "" {
		sub.Status = models.StatusQueued
	}

	return r.db.QueryRow(query, sub.AssignmentID, sub.StudentID, sub.Status).
		Scan(&sub.ID, &sub.CreatedAt)
}

// GetSubmission retrieves a submission by ID
func (r *SubmissionRepository) GetSubmission(id int64) (*models.Submission, error) {
	query := `
		SELECT id, assignment_id, student_id, status, final_score, final_feedback,
			created_at, updated_at
		FROM submissions
		WHERE id = $1
	`

	var sub models.Submission
	var finalScore sql.NullFloat64
	var finalFeedback sql.NullString

	err := r.db.QueryRow(query, id).Scan(
		&sub.ID,
		&sub.AssignmentID,
		&sub.StudentID,
		&sub.Status,
		&finalScore,
		&finalFeedback,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, err
	}

	if finalScore.Valid {
		sub.FinalScore = &finalScore.Float64
	}
	if finalFeedback.Valid {
		sub.FinalFeedback = &finalFeedback.String
	}

	return &sub, nil
}

// ClaimForGrading atomically moves a submission from "queued" to "grading".
// Returns false when another worker already claimed it or the submission
// is past the queued state.
func (r *SubmissionRepository) ClaimForGrading(id int64) (bool, error) {
	query := `
		UPDATE submissions
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	res, err := r.db.Exec(query, models.StatusGrading, id, models.StatusQueued)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// FinalizeRun persists all criterion scores, the overall result, and the
// terminal status in a single transaction. The status update is guarded on
// the row still being in "grading"; losing that guard aborts the whole
// transaction so no partial score rows survive.
func (r *SubmissionRepository) FinalizeRun(
	submissionID int64,
	status models.SubmissionStatus,
	finalScore float64,
	finalFeedback string,
	scores []models.CriterionScore,
) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, score := range scores {
		if err := insertCriterionScoreTx(tx, submissionID, score); err != nil {
			return err
		}
	}

	updateQuery := `
		UPDATE submissions
		SET status = $1, final_score = $2, final_feedback = $3, updated_at = NOW()
		WHERE id = $4 AND status = $5
	`
	res, err := tx.Exec(updateQuery, status, finalScore, finalFeedback, submissionID, models.StatusGrading)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("submission %d no longer in grading state", submissionID)
	}

	return tx.Commit()
}

// MarkError sets the terminal "error" status with a human-readable cause.
// This is the minimal fallback transaction used when a full run cannot
// commit; it only applies while the row is still held in "grading".
func (r *SubmissionRepository) MarkError(submissionID int64, reason string) error {
	query := `
		UPDATE submissions
		SET status = $1, final_feedback = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`
	_, err := r.db.Exec(query, models.StatusError, reason, submissionID, models.StatusGrading)
	return err
}

// AbortQueued resolves a submission that failed before grading could
// start (for example a partial artifact upload) to the terminal "error"
// status. Conditional on "queued" so it can never touch a claimed run,
// and so the startup queue reload cannot pick the submission up with an
// incomplete artifact set.
func (r *SubmissionRepository) AbortQueued(id int64, reason string) error {
	query := `
		UPDATE submissions
		SET status = $1, final_feedback = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`
	_, err := r.db.Exec(query, models.StatusError, reason, id, models.StatusQueued)
	return err
}

// ListSubmissionsByStatus lists submissions in a given status, oldest first
func (r *SubmissionRepository) ListSubmissionsByStatus(status models.SubmissionStatus, limit int) ([]*models.Submission, error) {
	query := `
		SELECT id, assignment_id, student_id, status, created_at, updated_at
		FROM submissions
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.db.Query(query, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*models.Submission
	for rows.Next() {
		var sub models.Submission
		if err := rows.Scan(
			&sub.ID,
			&sub.AssignmentID,
			&sub.StudentID,
			&sub.Status,
			&sub.CreatedAt,
			&sub.UpdatedAt,
		); err != nil {
			return nil, err
		}
		subs = append(subs, &sub)
	}

	return subs, rows.Err()
}

// RequeueStuck moves submissions held in "grading" longer than maxAge back
// to "queued" and returns their ids. The age guard keeps live runs safe:
// a worker that already committed a terminal status is not matched.
func (r *SubmissionRepository) RequeueStuck(maxAge time.Duration) ([]int64, error) {
	query := `
		UPDATE submissions
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND updated_at < NOW() - ($3 * INTERVAL '1 second')
		RETURNING id
	`

	rows, err := r.db.Query(query, models.StatusQueued, models.StatusGrading, int64(maxAge.Seconds()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func insertCriterionScoreTx(tx *sql.Tx, submissionID int64, score models.CriterionScore) error {
	evidenceJSON := "{}"
	if score.Evidence != nil {
		data, err := json.Marshal(score.Evidence)
		if err == nil {
			evidenceJSON = string(data)
		}
	}

	query := `
		INSERT INTO ai_scores (submission_id, criterion, score, confidence, rationale, evidence_json, model, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`
	_, err := tx.Exec(query, submissionID, score.Criterion, score.Score, score.Confidence,
		score.Rationale, evidenceJSON, score.Model)
	return err
}
