package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"ai-grader/core/models"
)

// ErrAssignmentNotFound is returned when an assignment id does not exist
var ErrAssignmentNotFound = errors.New("assignment not found")

// AssignmentRepository handles read access to assignments. The grading
// pipeline never mutates assignments.
type AssignmentRepository struct {
	db *DB
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(db *DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// GetAssignment retrieves an assignment by ID
func (r *AssignmentRepository) GetAssignment(id int64) (*models.Assignment, error) {
	query := `
		SELECT id, course_id, title, description, modality, rubric_json, created_at
		FROM assignments
		WHERE id = $1
	`

	var assignment models.Assignment
	var rubricJSON string

	err := r.db.QueryRow(query, id).Scan(
		&assignment.ID,
		&assignment.CourseID,
		&assignment.Title,
		&assignment.Description,
		&assignment.Modality,
		&rubricJSON,
		&assignment.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrAssignmentNotFound
	}
	if err != nil {
		return nil, err
	}

	if rubricJSON != "" {
		if err := json.Unmarshal([]byte(rubricJSON), &assignment.Rubric); err != nil {
			return nil, fmt.Errorf("parse rubric for assignment %d: %w", id, err)
		}
	}

	return &assignment, nil
}
