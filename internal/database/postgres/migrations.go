package postgres

import (
	"context"
	"fmt"
)

// Migrate creates the schema. embeddingDim must match what the
// configured embedding model produces; changing models requires
// re-enrolling the gallery.
func (p *Pool) Migrate(ctx context.Context, embeddingDim int) error {
	if _, err := p.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createStudents := `
		CREATE TABLE IF NOT EXISTS students (
			id          BIGSERIAL PRIMARY KEY,
			student_id  VARCHAR(255) UNIQUE NOT NULL,
			name        VARCHAR(255) NOT NULL,
			class_name  VARCHAR(255) NOT NULL DEFAULT '',
			photo_path  VARCHAR(1024) NOT NULL DEFAULT '',
			created_by  VARCHAR(255) NOT NULL DEFAULT '',
			created_at  TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`
	if _, err := p.Exec(ctx, createStudents); err != nil {
		return fmt.Errorf("failed to create students table: %w", err)
	}

	createEmbeddings := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS embeddings (
			student_id  VARCHAR(255) PRIMARY KEY
			            REFERENCES students(student_id) ON DELETE CASCADE,
			embedding   vector(%d) NOT NULL,
			model       VARCHAR(255) NOT NULL,
			dim         INTEGER NOT NULL,
			created_at  TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`, embeddingDim)
	if _, err := p.Exec(ctx, createEmbeddings); err != nil {
		return fmt.Errorf("failed to create embeddings table: %w", err)
	}

	createEvents := `
		CREATE TABLE IF NOT EXISTS attendance_events (
			id          BIGSERIAL PRIMARY KEY,
			student_id  VARCHAR(255) NOT NULL DEFAULT '',
			day         DATE NOT NULL,
			status      VARCHAR(16) NOT NULL,
			confidence  DOUBLE PRECISION NOT NULL DEFAULT 0,
			recorded_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			recorded_by VARCHAR(255) NOT NULL DEFAULT ''
		)
	`
	if _, err := p.Exec(ctx, createEvents); err != nil {
		return fmt.Errorf("failed to create attendance_events table: %w", err)
	}

	// The core consistency guarantee: at most one PRESENT event per
	// (student, day). The partial index makes concurrent appends safe
	// without any application-level locking.
	presentOnce := `
		CREATE UNIQUE INDEX IF NOT EXISTS attendance_present_once
		ON attendance_events(student_id, day) WHERE status = 'PRESENT'
	`
	if _, err := p.Exec(ctx, presentOnce); err != nil {
		return fmt.Errorf("failed to create presence uniqueness index: %w", err)
	}

	if _, err := p.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS attendance_events_day_idx ON attendance_events(day)
	`); err != nil {
		return fmt.Errorf("failed to create day index: %w", err)
	}

	createTeachers := `
		CREATE TABLE IF NOT EXISTS teachers (
			id            BIGSERIAL PRIMARY KEY,
			username      VARCHAR(255) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			name          VARCHAR(255) NOT NULL,
			email         VARCHAR(255) NOT NULL DEFAULT '',
			created_at    TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`
	if _, err := p.Exec(ctx, createTeachers); err != nil {
		return fmt.Errorf("failed to create teachers table: %w", err)
	}

	return nil
}

// CreateVectorIndex creates the IVFFlat index for gallery similarity
// scans done in SQL. Optional: the in-process matcher loads the whole
// gallery anyway, but the index keeps ad-hoc queries fast.
func (p *Pool) CreateVectorIndex(ctx context.Context) error {
	_, err := p.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS embeddings_vector_idx
		ON embeddings USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)
	`)
	if err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}
	return nil
}
