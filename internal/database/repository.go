package database

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateStudent is returned when enrolling a student ID that
// already exists.
var ErrDuplicateStudent = errors.New("student ID already exists")

// ErrNotFound is returned by lookups for missing rows where nil results
// are not practical.
var ErrNotFound = errors.New("not found")

// StudentReader provides read-only access to the roster.
type StudentReader interface {
	// Get retrieves a student by its stable student ID, nil if not found
	Get(ctx context.Context, studentID string) (*Student, error)
	// List returns all enrolled students ordered by student ID
	List(ctx context.Context) ([]Student, error)
	// Count returns the roster size
	Count(ctx context.Context) (int, error)
}

// StudentWriter provides write access to the roster.
type StudentWriter interface {
	StudentReader

	// Create enrolls a new student; ErrDuplicateStudent if the ID is taken
	Create(ctx context.Context, s *Student) error
	// Rename updates the display name only (soft rename)
	Rename(ctx context.Context, studentID, name string) error
	// Delete removes a student and its reference embedding
	Delete(ctx context.Context, studentID string) error
}

// EmbeddingReader provides read-only access to reference embeddings.
type EmbeddingReader interface {
	// Get retrieves the embedding for a student, nil if not enrolled
	Get(ctx context.Context, studentID string) (*StoredEmbedding, error)
	// ListAll returns every (student, vector) pair; this is the matcher gallery
	ListAll(ctx context.Context) ([]StoredEmbedding, error)
	// Count returns the number of stored embeddings
	Count(ctx context.Context) (int, error)
}

// EmbeddingWriter provides write access to reference embeddings.
type EmbeddingWriter interface {
	EmbeddingReader

	// Save stores the embedding for a student, replacing any existing one
	Save(ctx context.Context, emb StoredEmbedding) error
	// Delete removes the embedding for a student
	Delete(ctx context.Context, studentID string) error
}

// LedgerReader provides range and per-student queries over the
// append-only attendance event log.
type LedgerReader interface {
	// ExistsPresent checks whether a PRESENT event exists for (student, day)
	ExistsPresent(ctx context.Context, studentID string, day time.Time) (bool, error)
	// EventsInRange returns events with start <= day <= end, ordered by day
	EventsInRange(ctx context.Context, start, end time.Time) ([]AttendanceEvent, error)
	// EventsForStudent returns a student's events, newest day first,
	// then newest recorded-at first within a day
	EventsForStudent(ctx context.Context, studentID string) ([]AttendanceEvent, error)
	// AllEvents returns the full event log, ordered by day. Used by the
	// dashboard's all-time aggregates; event volume stays classroom-scale.
	AllEvents(ctx context.Context) ([]AttendanceEvent, error)
}

// LedgerWriter provides the append path. The ledger never updates or
// deletes events.
type LedgerWriter interface {
	LedgerReader

	// Append adds an event. Appending a PRESENT event for a (student, day)
	// that already has one is a no-op at the storage layer, regardless of
	// whether the caller checked ExistsPresent first.
	Append(ctx context.Context, ev AttendanceEvent) error
}

// TeacherReader provides read-only access to operator accounts.
type TeacherReader interface {
	// GetByUsername retrieves an account by username, nil if not found
	GetByUsername(ctx context.Context, username string) (*Teacher, error)
}

// TeacherWriter provides write access to operator accounts.
type TeacherWriter interface {
	TeacherReader

	// Create adds a new account
	Create(ctx context.Context, t *Teacher) error
}
