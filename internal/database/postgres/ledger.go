package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jsvoboda/rollcall/internal/database"
)

// LedgerRepository provides the PostgreSQL-backed attendance event log.
// Appends only; no update or delete path exists.
type LedgerRepository struct {
	pool *Pool
}

// NewLedgerRepository creates a new PostgreSQL ledger repository.
func NewLedgerRepository(pool *Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

const eventColumns = "id, student_id, day, status, confidence, recorded_at, recorded_by"

// Append adds an event. A PRESENT event for a (student, day) that
// already has one hits the attendance_present_once partial index and
// is dropped by ON CONFLICT, making the append an atomic no-op even
// when two sessions race past the ExistsPresent check.
func (r *LedgerRepository) Append(ctx context.Context, ev database.AttendanceEvent) error {
	query := `
		INSERT INTO attendance_events (student_id, day, status, confidence, recorded_at, recorded_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (student_id, day) WHERE status = 'PRESENT' DO NOTHING
	`

	recordedAt := ev.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx, query, ev.StudentID, ev.Day, ev.Status, ev.Confidence, recordedAt, ev.RecordedBy)
	if err != nil {
		return fmt.Errorf("append attendance event: %w", err)
	}
	return nil
}

// ExistsPresent checks whether a PRESENT event exists for (student, day).
func (r *LedgerRepository) ExistsPresent(ctx context.Context, studentID string, day time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM attendance_events
			WHERE student_id = $1 AND day = $2 AND status = 'PRESENT'
		)
	`, studentID, day).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check presence exists: %w", err)
	}
	return exists, nil
}

// EventsInRange returns events with start <= day <= end, ordered by day.
func (r *LedgerRepository) EventsInRange(ctx context.Context, start, end time.Time) ([]database.AttendanceEvent, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM attendance_events
		WHERE day >= $1 AND day <= $2
		ORDER BY day, recorded_at
	`, eventColumns), start, end)
	if err != nil {
		return nil, fmt.Errorf("query events in range: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// EventsForStudent returns a student's events, newest first.
func (r *LedgerRepository) EventsForStudent(ctx context.Context, studentID string) ([]database.AttendanceEvent, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM attendance_events
		WHERE student_id = $1
		ORDER BY day DESC, recorded_at DESC
	`, eventColumns), studentID)
	if err != nil {
		return nil, fmt.Errorf("query events for student: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// AllEvents returns the full event log ordered by day.
func (r *LedgerRepository) AllEvents(ctx context.Context) ([]database.AttendanceEvent, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
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
		// DATE columns come back at midnight in the session timezone;
		// normalize so day comparisons work in UTC.
		ev.Day = time.Date(ev.Day.Year(), ev.Day.Month(), ev.Day.Day(), 0, 0, 0, 0, time.UTC)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
