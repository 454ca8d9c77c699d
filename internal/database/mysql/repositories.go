package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jsvoboda/rollcall/internal/database"
)

// StudentRepository provides MySQL-backed roster storage.
type StudentRepository struct {
	pool *Pool
}

// NewStudentRepository creates a new MySQL student repository.
func NewStudentRepository(pool *Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

func (r *StudentRepository) Get(ctx context.Context, studentID string) (*database.Student, error) {
	var s database.Student
	err := r.pool.db.QueryRowContext(ctx, `
		SELECT id, student_id, name, class_name, photo_path, created_by, created_at
		FROM students WHERE student_id = ?
	`, studentID).Scan(&s.ID, &s.StudentID, &s.Name, &s.ClassName, &s.PhotoPath, &s.CreatedBy, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query student: %w", err)
	}
	return &s, nil
}

func (r *StudentRepository) List(ctx context.Context) ([]database.Student, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT id, student_id, name, class_name, photo_path, created_by, created_at
		FROM students ORDER BY student_id
	`)
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

func (r *StudentRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM students").Scan(&count); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return count, nil
}

func (r *StudentRepository) Create(ctx context.Context, s *database.Student) error {
	result, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO students (student_id, name, class_name, photo_path, created_by)
		VALUES (?, ?, ?, ?, ?)
	`, s.StudentID, s.Name, s.ClassName, s.PhotoPath, s.CreatedBy)
	if err != nil {
		if isDuplicateKey(err) {
			return database.ErrDuplicateStudent
		}
		return fmt.Errorf("insert student: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		s.ID = id
	}
	s.CreatedAt = time.Now().UTC()
	return nil
}

func (r *StudentRepository) Rename(ctx context.Context, studentID, name string) error {
	result, err := r.pool.db.ExecContext(ctx, "UPDATE students SET name = ? WHERE student_id = ?", name, studentID)
	if err != nil {
		return fmt.Errorf("rename student: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (r *StudentRepository) Delete(ctx context.Context, studentID string) error {
	result, err := r.pool.db.ExecContext(ctx, "DELETE FROM students WHERE student_id = ?", studentID)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return database.ErrNotFound
	}
	return nil
}

// EmbeddingRepository provides MySQL-backed reference embedding storage.
// Vectors are serialized as JSON text.
type EmbeddingRepository struct {
	pool *Pool
}

// NewEmbeddingRepository creates a new MySQL embedding repository.
func NewEmbeddingRepository(pool *Pool) *EmbeddingRepository {
	return &EmbeddingRepository{pool: pool}
}

func (r *EmbeddingRepository) Get(ctx context.Context, studentID string) (*database.StoredEmbedding, error) {
	var emb database.StoredEmbedding
	var raw string
	err := r.pool.db.QueryRowContext(ctx, `
		SELECT student_id, embedding, model, dim, created_at
		FROM embeddings WHERE student_id = ?
	`, studentID).Scan(&emb.StudentID, &raw, &emb.Model, &emb.Dim, &emb.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	if emb.Embedding, err = decodeVector(raw); err != nil {
		return nil, err
	}
	return &emb, nil
}

func (r *EmbeddingRepository) ListAll(ctx context.Context) ([]database.StoredEmbedding, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT student_id, embedding, model, dim, created_at
		FROM embeddings ORDER BY student_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	var embeddings []database.StoredEmbedding
	for rows.Next() {
		var emb database.StoredEmbedding
		var raw string
		if err := rows.Scan(&emb.StudentID, &raw, &emb.Model, &emb.Dim, &emb.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		if emb.Embedding, err = decodeVector(raw); err != nil {
			return nil, err
		}
		embeddings = append(embeddings, emb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}
	return embeddings, nil
}

func (r *EmbeddingRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&count); err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return count, nil
}

func (r *EmbeddingRepository) Save(ctx context.Context, emb database.StoredEmbedding) error {
	raw, err := encodeVector(emb.Embedding)
	if err != nil {
		return err
	}

	_, err = r.pool.db.ExecContext(ctx, `
		INSERT INTO embeddings (student_id, embedding, model, dim)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			embedding = VALUES(embedding),
			model = VALUES(model),
			dim = VALUES(dim),
			created_at = NOW()
	`, emb.StudentID, raw, emb.Model, emb.Dim)
	if err != nil {
		return fmt.Errorf("save embedding: %w", err)
	}
	return nil
}

func (r *EmbeddingRepository) Delete(ctx context.Context, studentID string) error {
	if _, err := r.pool.db.ExecContext(ctx, "DELETE FROM embeddings WHERE student_id = ?", studentID); err != nil {
		return fmt.Errorf("delete embedding: %w", err)
	}
	return nil
}

// LedgerRepository provides the MySQL-backed attendance event log.
type LedgerRepository struct {
	pool *Pool
}

// NewLedgerRepository creates a new MySQL ledger repository.
func NewLedgerRepository(pool *Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

const eventColumns = "id, student_id, day, status, confidence, recorded_at, recorded_by"

// Append adds an event. A duplicate PRESENT for the same (student, day)
// collides on the generated present_key column and INSERT IGNORE drops
// it, mirroring the postgres partial-index behavior.
func (r *LedgerRepository) Append(ctx context.Context, ev database.AttendanceEvent) error {
	recordedAt := ev.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}

	_, err := r.pool.db.ExecContext(ctx, `
		INSERT IGNORE INTO attendance_events (student_id, day, status, confidence, recorded_at, recorded_by)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ev.StudentID, ev.Day, ev.Status, ev.Confidence, recordedAt, ev.RecordedBy)
	if err != nil {
		return fmt.Errorf("append attendance event: %w", err)
	}
	return nil
}

func (r *LedgerRepository) ExistsPresent(ctx context.Context, studentID string, day time.Time) (bool, error) {
	var count int
	err := r.pool.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM attendance_events
		WHERE student_id = ? AND day = ? AND status = 'PRESENT'
	`, studentID, day).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check presence exists: %w", err)
	}
	return count > 0, nil
}

func (r *LedgerRepository) EventsInRange(ctx context.Context, start, end time.Time) ([]database.AttendanceEvent, error) {
	rows, err := r.pool.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM attendance_events
		WHERE day >= ? AND day <= ?
		ORDER BY day, recorded_at
	`, eventColumns), start, end)
	if err != nil {
		return nil, fmt.Errorf("query events in range: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (r *LedgerRepository) EventsForStudent(ctx context.Context, studentID string) ([]database.AttendanceEvent, error) {
	rows, err := r.pool.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM attendance_events
		WHERE student_id = ?
		ORDER BY day DESC, recorded_at DESC
	`, eventColumns), studentID)
	if err != nil {
		return nil, fmt.Errorf("query events for student: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (r *LedgerRepository) AllEvents(ctx context.Context) ([]database.AttendanceEvent, error) {
	rows, err := r.pool.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM attendance_events
		ORDER BY day, recorded_at
	`, eventColumns))
	if err != nil {
		return nil, fmt.Errorf("query all events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]database.AttendanceEvent, error) {
	var events []database.AttendanceEvent
	for rows.Next() {
		var ev database.AttendanceEvent
		if err := rows.Scan(&ev.ID, &ev.StudentID, &ev.Day, &ev.Status, &ev.Confidence, &ev.RecordedAt, &ev.RecordedBy); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Day = time.Date(ev.Day.Year(), ev.Day.Month(), ev.Day.Day(), 0, 0, 0, 0, time.UTC)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// TeacherRepository provides MySQL-backed operator accounts.
type TeacherRepository struct {
	pool *Pool
}

// NewTeacherRepository creates a new MySQL teacher repository.
func NewTeacherRepository(pool *Pool) *TeacherRepository {
	return &TeacherRepository{pool: pool}
}

func (r *TeacherRepository) GetByUsername(ctx context.Context, username string) (*database.Teacher, error) {
	var t database.Teacher
	err := r.pool.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, name, email, created_at
		FROM teachers WHERE username = ?
	`, username).Scan(&t.ID, &t.Username, &t.PasswordHash, &t.Name, &t.Email, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query teacher: %w", err)
	}
	return &t, nil
}

func (r *TeacherRepository) Create(ctx context.Context, t *database.Teacher) error {
	result, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO teachers (username, password_hash, name, email)
		VALUES (?, ?, ?, ?)
	`, t.Username, t.PasswordHash, t.Name, t.Email)
	if err != nil {
		return fmt.Errorf("insert teacher: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		t.ID = id
	}
	t.CreatedAt = time.Now().UTC()
	return nil
}
