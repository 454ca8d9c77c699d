package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/jsvoboda/rollcall/internal/database"
)

// StudentRepository provides PostgreSQL-backed roster storage.
type StudentRepository struct {
	pool *Pool
}

// NewStudentRepository creates a new PostgreSQL student repository.
func NewStudentRepository(pool *Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

// Get retrieves a student by its stable student ID, nil if not found.
func (r *StudentRepository) Get(ctx context.Context, studentID string) (*database.Student, error) {
	query := `
		SELECT id, student_id, name, class_name, photo_path, created_by, created_at
		FROM students
		WHERE student_id = $1
	`

	var s database.Student
	err := r.pool.QueryRow(ctx, query, studentID).Scan(
		&s.ID, &s.StudentID, &s.Name, &s.ClassName, &s.PhotoPath, &s.CreatedBy, &s.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query student: %w", err)
	}
	return &s, nil
}

// List returns all enrolled students ordered by student ID.
func (r *StudentRepository) List(ctx context.Context) ([]database.Student, error) {
	query := `
		SELECT id, student_id, name, class_name, photo_path, created_by, created_at
		FROM students
		ORDER BY student_id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	var students []database.Student
	for rows.Next() {
		var s database.Student
		if err := rows.Scan(&s.ID, &s.StudentID, &s.Name, &s.ClassName, &s.PhotoPath, &s.CreatedBy, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return students, nil
}

// Count returns the roster size.
func (r *StudentRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM students").Scan(&count); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return count, nil
}

// Create enrolls a new student.
func (r *StudentRepository) Create(ctx context.Context, s *database.Student) error {
	query := `
		INSERT INTO students (student_id, name, class_name, photo_path, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(ctx, query, s.StudentID, s.Name, s.ClassName, s.PhotoPath, s.CreatedBy).
		Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return database.ErrDuplicateStudent
		}
		return fmt.Errorf("insert student: %w", err)
	}
	return nil
}

// Rename updates the display name only.
func (r *StudentRepository) Rename(ctx context.Context, studentID, name string) error {
	result, err := r.pool.Exec(ctx, "UPDATE students SET name = $1 WHERE student_id = $2", name, studentID)
	if err != nil {
		return fmt.Errorf("rename student: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return database.ErrNotFound
	}
	return nil
}

// Delete removes a student. The embedding row goes with it via the
// foreign-key cascade.
func (r *StudentRepository) Delete(ctx context.Context, studentID string) error {
	result, err := r.pool.Exec(ctx, "DELETE FROM students WHERE student_id = $1", studentID)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return database.ErrNotFound
	}
	return nil
}
