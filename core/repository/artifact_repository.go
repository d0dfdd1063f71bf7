package repository

import (
	"database/sql"

	"ai-grader/core/models"
)

// ArtifactRepository handles database operations for submission artifacts
type ArtifactRepository struct {
	db *DB
}

// NewArtifactRepository creates a new artifact repository
func NewArtifactRepository(db *DB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

// GetSubmissionArtifacts retrieves all artifacts for a submission
func (r *ArtifactRepository) GetSubmissionArtifacts(submissionID int64) ([]models.Artifact, error) {
	query := `
		SELECT id, submission_id, kind, storage_key, sha256, created_at
		FROM submission_artifacts
		WHERE submission_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(query, submissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []models.Artifact
	for rows.Next() {
		var artifact models.Artifact
		var sha sql.NullString

		if err := rows.Scan(
			&artifact.ID,
			&artifact.SubmissionID,
			&artifact.Kind,
			&artifact.StorageKey,
			&sha,
			&artifact.CreatedAt,
		); err != nil {
			return nil, err
		}

		if sha.Valid {
			artifact.SHA256 = &sha.String
		}

		artifacts = append(artifacts, artifact)
	}

	return artifacts, rows.Err()
}

// CreateArtifact creates a new artifact record
func (r *ArtifactRepository) CreateArtifact(artifact *models.Artifact) error {
	query := `
		INSERT INTO submission_artifacts (submission_id, kind, storage_key, sha256, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at
	`

	var sha interface{}
	if artifact.SHA256 != nil {
		sha = *artifact.SHA256
	}

	return r.db.QueryRow(query, artifact.SubmissionID, artifact.Kind, artifact.StorageKey, sha).
		Scan(&artifact.ID, &artifact.CreatedAt)
}
