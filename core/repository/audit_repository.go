package repository

import (
	"database/sql"
	"encoding/json"

	"ai-grader/core/models"
)

// AuditRepository handles the append-only audit log
type AuditRepository struct {
	db *DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record appends one audit event
func (r *AuditRepository) Record(event models.AuditEvent) error {
	metadataJSON := "{}"
	if event.Metadata != nil {
		data, err := json.Marshal(event.Metadata)
		if err == nil {
			metadataJSON = string(data)
		}
	}

	query := `
		INSERT INTO audit_logs (actor_user_id, action, target_type, target_id, metadata_json, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`

	var actor interface{}
	if event.ActorUserID != nil {
		actor = *event.ActorUserID
	}

	_, err := r.db.Exec(query, actor, event.Action, event.TargetType, event.TargetID, metadataJSON)
	return err
}

// GetTargetEvents retrieves audit events for one target, newest first
func (r *AuditRepository) GetTargetEvents(targetType string, targetID int64, limit int) ([]models.AuditEvent, error) {
	query := `
		SELECT id, actor_user_id, action, target_type, target_id, metadata_json, created_at
		FROM audit_logs
		WHERE target_type = $1 AND target_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := r.db.Query(query, targetType, targetID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.AuditEvent
	for rows.Next() {
		var event models.AuditEvent
		var actor sql.NullInt64
		var metadataJSON string

		if err := rows.Scan(
			&event.ID,
			&actor,
			&event.Action,
			&event.TargetType,
			&event.TargetID,
			&metadataJSON,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}

		if actor.Valid {
			event.ActorUserID = &actor.Int64
		}
		if metadataJSON != "" {
			json.Unmarshal([]byte(metadataJSON), &event.Metadata)
		}

		events = append(events, event)
	}

	return events, rows.Err()
}
