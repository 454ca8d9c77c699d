package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jsvoboda/rollcall/internal/database"
)

// TeacherRepository provides PostgreSQL-backed operator accounts.
type TeacherRepository struct {
	pool *Pool
}

// NewTeacherRepository creates a new PostgreSQL teacher repository.
func NewTeacherRepository(pool *Pool) *TeacherRepository {
	return &TeacherRepository{pool: pool}
}

// GetByUsername retrieves an account by username, nil if not found.
func (r *TeacherRepository) GetByUsername(ctx context.Context, username string) (*database.Teacher, error) {
	query := `
		SELECT id, username, password_hash, name, email, created_at
		FROM teachers
		WHERE username = $1
	`

	var t database.Teacher
	err := r.pool.QueryRow(ctx, query, username).Scan(
		&t.ID, &t.Username, &t.PasswordHash, &t.Name, &t.Email, &t.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query teacher: %w", err)
	}
	return &t, nil
}

// Create adds a new account.
func (r *TeacherRepository) Create(ctx context.Context, t *database.Teacher) error {
	query := `
		INSERT INTO teachers (username, password_hash, name, email)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(ctx, query, t.Username, t.PasswordHash, t.Name, t.Email).
		Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert teacher: %w", err)
	}
	return nil
}
