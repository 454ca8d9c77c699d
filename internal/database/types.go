package database

import (
	"time"
)

// Student is an enrolled identity. StudentID is the stable opaque key
// used throughout the system; it is never reused across different
// physical people. Name can be soft-renamed, everything else is
// immutable after enrollment.
type Student struct {
	ID        int64
	StudentID string
	Name      string
	ClassName string
	PhotoPath string
	CreatedBy string // username of the account that enrolled the student
	CreatedAt time.Time
}

// StoredEmbedding is the single reference embedding for a student.
// Re-enrollment replaces the vector; the design keeps exactly one
// vector per identity so the matcher stays a plain gallery scan.
type StoredEmbedding struct {
	StudentID string
	Embedding []float32
	Model     string
	Dim       int
	CreatedAt time.Time
}

// AttendanceEvent is one append-only ledger row. StudentID is empty for
// unknown faces. ABSENT is never stored; reports derive absence as the
// complement of PRESENT over the roster, which keeps storage
// proportional to sightings rather than roster size times days.
type AttendanceEvent struct {
	ID         int64
	StudentID  string
	Day        time.Time // calendar date, no time component
	Status     string    // PRESENT or UNKNOWN
	Confidence float64   // [0, 1]
	RecordedAt time.Time
	RecordedBy string // opaque recorder attribution, optional
}

// Teacher is an operator account used for login and recorder
// attribution on attendance events.
type Teacher struct {
	ID           int64
	Username     string
	PasswordHash string
	Name         string
	Email        string
	CreatedAt    time.Time
}
