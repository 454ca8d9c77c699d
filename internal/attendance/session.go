package attendance

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/jsvoboda/rollcall/internal/database"
)

// Session orchestrates one attendance-marking pass: it runs the matcher
// over each detected face, applies the accept threshold, and writes
// PRESENT and UNKNOWN events through to the ledger. Sessions are
// stateless and safe for concurrent use; the (student, day) dedup race
// between concurrent sessions is closed by the ledger's uniqueness
// guarantee, not by the session.
type Session struct {
	matcher   Matcher
	ledger    database.LedgerWriter
	threshold float64
	log       *zap.Logger
}

// NewSession creates a marking session. threshold is the cosine
// distance below which a match is accepted; the comparison is strict,
// a distance exactly equal to the threshold is rejected.
func NewSession(matcher Matcher, ledger database.LedgerWriter, threshold float64, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		matcher:   matcher,
		ledger:    ledger,
		threshold: threshold,
		log:       log,
	}
}

// MarkAttendance classifies every query face against the gallery and
// records the results for the given day. Faces are processed in input
// order; face IDs are their 1-based position, which is not stable
// across repeated detections of the same image.
//
// A zero-length face list is a valid outcome (an unreadable photo or a
// photo without recognizable faces), not an error. Ledger failures
// abort the session; each append is atomic, so no partial event is left
// behind for the failing face.
func (s *Session) MarkAttendance(ctx context.Context, day time.Time, faces []QueryFace, gallery []Reference, recorder string) (*SessionResult, error) {
	day = DayOf(day)
	result := &SessionResult{
		TotalFaces: len(faces),
		Faces:      make([]FaceResult, 0, len(faces)),
	}

	// Students already written in this batch. Two faces matching the
	// same student (merged photos, twins in frame) produce one event.
	written := make(map[string]bool)

	for i, face := range faces {
		fr := s.classify(i+1, face, gallery)

		if fr.Status == StatusPresent {
			result.PresentCount++
			if err := s.recordPresent(ctx, day, fr, recorder, written); err != nil {
				return nil, err
			}
		} else {
			result.UnknownCount++
			if err := s.recordUnknown(ctx, day, fr, recorder); err != nil {
				return nil, err
			}
		}

		result.Faces = append(result.Faces, fr)
	}

	s.log.Info("attendance marked",
		zap.String("day", FormatDay(day)),
		zap.Int("faces", result.TotalFaces),
		zap.Int("present", result.PresentCount),
		zap.Int("unknown", result.UnknownCount),
	)

	return result, nil
}

// classify runs the matcher for a single face and applies the
// threshold. Confidence is 1 - distance, clamped to [0, 1]; it is a
// display heuristic, not a calibrated probability.
func (s *Session) classify(faceID int, face QueryFace, gallery []Reference) FaceResult {
	fr := FaceResult{
		FaceID: faceID,
		BBox:   face.BBox,
	}

	match, ok := s.matcher.Match(face.Embedding, gallery)
	if !ok {
		// Empty gallery: nothing to compare against.
		fr.Status = StatusUnknown
		fr.Confidence = 0
		return fr
	}

	if match.Distance < s.threshold {
		fr.Status = StatusPresent
		fr.StudentID = match.StudentID
		fr.Confidence = 1 - match.Distance
		return fr
	}

	fr.Status = StatusUnknown
	fr.Confidence = math.Max(0, 1-match.Distance)
	return fr
}

func (s *Session) recordPresent(ctx context.Context, day time.Time, fr FaceResult, recorder string, written map[string]bool) error {
	if written[fr.StudentID] {
		return nil
	}
	written[fr.StudentID] = true

	exists, err := s.ledger.ExistsPresent(ctx, fr.StudentID, day)
	if err != nil {
		return fmt.Errorf("checking existing attendance: %w", err)
	}
	if exists {
		// Already marked today (re-submitted photo, second photo of the
		// same class). The face still reports PRESENT to the caller.
		s.log.Debug("duplicate presence suppressed",
			zap.String("student_id", fr.StudentID),
			zap.String("day", FormatDay(day)))
		return nil
	}

	ev := database.AttendanceEvent{
		StudentID:  fr.StudentID,
		Day:        day,
		Status:     string(StatusPresent),
		Confidence: fr.Confidence,
		RecordedAt: time.Now().UTC(),
		RecordedBy: recorder,
	}
	if err := s.ledger.Append(ctx, ev); err != nil {
		return fmt.Errorf("appending attendance event: %w", err)
	}
	return nil
}

// recordUnknown logs an unrecognized face so reports can surface how
// many unmatched faces appeared on a day.
func (s *Session) recordUnknown(ctx context.Context, day time.Time, fr FaceResult, recorder string) error {
	ev := database.AttendanceEvent{
		Day:        day,
		Status:     string(StatusUnknown),
		Confidence: fr.Confidence,
		RecordedAt: time.Now().UTC(),
		RecordedBy: recorder,
	}
	if err := s.ledger.Append(ctx, ev); err != nil {
		return fmt.Errorf("appending unknown-face event: %w", err)
	}
	return nil
}
