// Package attendance implements the face matching and attendance
// recording core: nearest-neighbor matching of query embeddings against
// the enrolled gallery, idempotent daily presence recording, and the
// report aggregation engine.
package attendance

import (
	"math"
	"time"
)

// Status classifies a face or a roster entry on a given day.
type Status string

const (
	StatusPresent Status = "PRESENT"
	StatusAbsent  Status = "ABSENT"
	StatusUnknown Status = "UNKNOWN"
)

// Reference is one enrolled identity's gallery entry.
type Reference struct {
	StudentID string
	Embedding []float32
}

// Match is the best gallery candidate for a query embedding.
type Match struct {
	StudentID string
	Distance  float64
}

// QueryFace is one detected face from a class photo. It lives only for
// the duration of a single marking session and is never persisted.
type QueryFace struct {
	Embedding []float32
	BBox      []float64 // [x1, y1, x2, y2] in raw pixel coordinates
	Index     int       // position within the source image detection order
}

// FaceResult is the per-face outcome of a marking session.
type FaceResult struct {
	FaceID     int       `json:"face_id"`
	StudentID  string    `json:"student_id,omitempty"`
	Status     Status    `json:"status"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox,omitempty"`
}

// SessionResult summarizes one marking session. PresentCount counts
// classified faces, not ledger writes, so re-marking the same photo
// reports the same counts even though the appends are suppressed.
type SessionResult struct {
	TotalFaces   int          `json:"total_faces_detected"`
	Faces        []FaceResult `json:"faces"`
	PresentCount int          `json:"present_count"`
	UnknownCount int          `json:"unknown_count"`
}

// DayOf truncates a timestamp to its calendar date in UTC.
func DayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD date string.
func ParseDay(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// FormatDay renders a day as YYYY-MM-DD.
func FormatDay(t time.Time) string {
	return t.Format("2006-01-02")
}

// Round1 rounds to one decimal place. Applied at the presentation
// boundary only; intermediate computation keeps full precision.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
