package repository

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// DB wraps the database connection pool
type DB struct {
	*sql.DB
}

// NewDB opens a Postgres connection pool and ensures the schema exists
func NewDB(databaseURL string) (*DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	wrapped := &DB{DB: db}
	if err := wrapped.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return wrapped, nil
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS assignments (
		id BIGSERIAL PRIMARY KEY,
		course_id BIGINT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		modality TEXT NOT NULL,
		rubric_json TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS submissions (
		id BIGSERIAL PRIMARY KEY,
		assignment_id BIGINT NOT NULL REFERENCES assignments(id),
		student_id BIGINT NOT NULL,
		status TEXT NOT NULL DEFAULT 'queued'
			CHECK (status IN ('queued','grading','graded','needs_review','error')),
		final_score NUMERIC(5,2),
		final_feedback TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS ix_submissions_status ON submissions(status);

	CREATE TABLE IF NOT EXISTS submission_artifacts (
		id BIGSERIAL PRIMARY KEY,
		submission_id BIGINT NOT NULL REFERENCES submissions(id),
		kind TEXT NOT NULL,
		storage_key TEXT NOT NULL,
		sha256 TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS ix_artifacts_submission ON submission_artifacts(submission_id);

	CREATE TABLE IF NOT EXISTS ai_scores (
		id BIGSERIAL PRIMARY KEY,
		submission_id BIGINT NOT NULL REFERENCES submissions(id),
		criterion TEXT NOT NULL,
		score NUMERIC(5,2) NOT NULL,
		confidence NUMERIC(3,2) NOT NULL,
		rationale TEXT NOT NULL,
		evidence_json TEXT NOT NULL DEFAULT '{}',
		model TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS ix_scores_submission ON ai_scores(submission_id);

	CREATE TABLE IF NOT EXISTS audit_logs (
		id BIGSERIAL PRIMARY KEY,
		actor_user_id BIGINT,
		action TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id BIGINT NOT NULL,
		metadata_json TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS ix_audit_target ON audit_logs(target_type, target_id);
	`

	_, err := db.Exec(schema)
	return err
}
