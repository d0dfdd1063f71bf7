package repository

import (
	"encoding/json"

	"ai-grader/core/models"
)

// ScoreRepository handles read access to persisted criterion scores.
// Writes happen inside SubmissionRepository.FinalizeRun so they share the
// terminal-status transaction.
type ScoreRepository struct {
	db *DB
}

// NewScoreRepository creates a new score repository
func NewScoreRepository(db *DB) *ScoreRepository {
	return &ScoreRepository{db: db}
}

// GetCriterionScores retrieves all criterion scores for a submission
func (r *ScoreRepository) GetCriterionScores(submissionID int64) ([]models.CriterionScore, error) {
	query := `
		SELECT id, submission_id, criterion, score, confidence, rationale, evidence_json, model, created_at
		FROM ai_scores
		WHERE submission_id = $1
		ORDER BY id ASC
	`

	rows, err := r.db.Query(query, submissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []models.CriterionScore
	for rows.Next() {
		var score models.CriterionScore
		var evidenceJSON string

		if err := rows.Scan(
			&score.ID,
			&score.SubmissionID,
			&score.Criterion,
			&score.Score,
			&score.Confidence,
			&score.Rationale,
			&evidenceJSON,
			&score.Model,
			&score.CreatedAt,
		); err != nil {
			return nil, err
		}

		if evidenceJSON != "" {
			json.Unmarshal([]byte(evidenceJSON), &score.Evidence)
		}

		scores = append(scores, score)
	}

	return scores, rows.Err()
}
