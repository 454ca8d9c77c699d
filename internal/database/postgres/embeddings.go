package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/jsvoboda/rollcall/internal/database"
)

// EmbeddingRepository provides PostgreSQL-backed reference embedding
// storage using a pgvector column.
type EmbeddingRepository struct {
	pool *Pool
}

// NewEmbeddingRepository creates a new PostgreSQL embedding repository.
func NewEmbeddingRepository(pool *Pool) *EmbeddingRepository {
	return &EmbeddingRepository{pool: pool}
}

// Get retrieves the embedding for a student, nil if not enrolled.
func (r *EmbeddingRepository) Get(ctx context.Context, studentID string) (*database.StoredEmbedding, error) {
	query := `
		SELECT student_id, embedding, model, dim, created_at
		FROM embeddings
		WHERE student_id = $1
	`

	var emb database.StoredEmbedding
	var vec pgvector.Vector

	err := r.pool.QueryRow(ctx, query, studentID).Scan(
		&emb.StudentID, &vec, &emb.Model, &emb.Dim, &emb.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	emb.Embedding = vec.Slice()
	return &emb, nil
}

// ListAll returns every (student, vector) pair ordered by student ID.
// The stable ordering makes the matcher's first-wins tie-break
// deterministic across calls.
func (r *EmbeddingRepository) ListAll(ctx context.Context) ([]database.StoredEmbedding, error) {
	query := `
		SELECT student_id, embedding, model, dim, created_at
		FROM embeddings
		ORDER BY student_id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	var embeddings []database.StoredEmbedding
	for rows.Next() {
		var emb database.StoredEmbedding
		var vec pgvector.Vector
		if err := rows.Scan(&emb.StudentID, &vec, &emb.Model, &emb.Dim, &emb.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		emb.Embedding = vec.Slice()
		embeddings = append(embeddings, emb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}
	return embeddings, nil
}

// Count returns the number of stored embeddings.
func (r *EmbeddingRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&count); err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return count, nil
}

// Save stores the embedding for a student, replacing any existing one.
// Exactly one reference vector per identity.
func (r *EmbeddingRepository) Save(ctx context.Context, emb database.StoredEmbedding) error {
	query := `
		INSERT INTO embeddings (student_id, embedding, model, dim)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (student_id) DO UPDATE
		SET embedding = EXCLUDED.embedding,
		    model = EXCLUDED.model,
		    dim = EXCLUDED.dim,
		    created_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query, emb.StudentID, pgvector.NewVector(emb.Embedding), emb.Model, emb.Dim)
	if err != nil {
		return fmt.Errorf("save embedding: %w", err)
	}
	return nil
}

// Delete removes the embedding for a student.
func (r *EmbeddingRepository) Delete(ctx context.Context, studentID string) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM embeddings WHERE student_id = $1", studentID); err != nil {
		return fmt.Errorf("delete embedding: %w", err)
	}
	return nil
}
