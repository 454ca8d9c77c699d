package attendance

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/jsvoboda/rollcall/internal/database"
	"github.com/jsvoboda/rollcall/internal/database/mock"
)

func testDay(t *testing.T) time.Time {
	t.Helper()
	day, err := ParseDay("2024-01-10")
	if err != nil {
		t.Fatalf("parse day: %v", err)
	}
	return day
}

func newTestSession(ledger database.LedgerWriter) *Session {
	return NewSession(NewScanMatcher(nil), ledger, 0.50, nil)
}

func presentEvents(events []database.AttendanceEvent) []database.AttendanceEvent {
	var out []database.AttendanceEvent
	for _, ev := range events {
		if ev.Status == string(StatusPresent) {
			out = append(out, ev)
		}
	}
	return out
}

func TestMarkAttendance_ExactMatchIsPresent(t *testing.T) {
	ledger := mock.NewLedger()
	session := newTestSession(ledger)
	v1 := []float32{0.2, 0.8, 0.1}
	v2 := []float32{-0.9, 0.1, 0.4}
	gallery := []Reference{
		{StudentID: "A", Embedding: v1},
		{StudentID: "B", Embedding: v2},
	}

	result, err := session.MarkAttendance(context.Background(), testDay(t), []QueryFace{{Embedding: v1}}, gallery, "")
	if err != nil {
		t.Fatalf("MarkAttendance: %v", err)
	}

	if result.TotalFaces != 1 || result.PresentCount != 1 {
		t.Fatalf("expected 1 present face, got %+v", result)
	}
	face := result.Faces[0]
	if face.StudentID != "A" || face.Status != StatusPresent {
		t.Errorf("expected A PRESENT, got %+v", face)
	}
	if math.Abs(face.Confidence-1.0) > 1e-9 {
		t.Errorf("expected confidence 1.0 for exact match, got %v", face.Confidence)
	}
}

func TestMarkAttendance_EmptyGalleryIsUnknown(t *testing.T) {
	ledger := mock.NewLedger()
	session := newTestSession(ledger)

	result, err := session.MarkAttendance(context.Background(), testDay(t), []QueryFace{{Embedding: []float32{1, 2, 3}}}, nil, "")
	if err != nil {
		t.Fatalf("MarkAttendance: %v", err)
	}

	if result.UnknownCount != 1 || result.PresentCount != 0 {
		t.Fatalf("expected one unknown face, got %+v", result)
	}
	face := result.Faces[0]
	if face.Status != StatusUnknown {
		t.Errorf("expected UNKNOWN, got %s", face.Status)
	}
	if face.Confidence != 0 {
		t.Errorf("expected confidence 0 with empty gallery, got %v", face.Confidence)
	}
	if len(presentEvents(ledger.Events())) != 0 {
		t.Error("expected no PRESENT events in ledger")
	}
}

func TestMarkAttendance_ThresholdBoundaryIsUnknown(t *testing.T) {
	ledger := mock.NewLedger()
	session := newTestSession(ledger)
	// Orthogonal-ish vectors tuned so cosine distance is exactly 0.5:
	// cos(60 deg) = 0.5 -> distance = 0.5.
	ref := []float32{1, 0}
	query := []float32{0.5, float32(math.Sqrt(3) / 2)}
	gallery := []Reference{{StudentID: "A", Embedding: ref}}

	result, err := session.MarkAttendance(context.Background(), testDay(t), []QueryFace{{Embedding: query}}, gallery, "")
	if err != nil {
		t.Fatalf("MarkAttendance: %v", err)
	}

	// Distance == threshold must reject: the accept comparison is strict.
	if result.Faces[0].Status != StatusUnknown {
		t.Errorf("expected UNKNOWN at the threshold boundary, got %s", result.Faces[0].Status)
	}
}

func TestMarkAttendance_BelowThresholdIsPresent(t *testing.T) {
	ledger := mock.NewLedger()
	session := newTestSession(ledger)
	ref := []float32{1, 0}
	query := []float32{0.9, 0.1} // small angle, distance well below 0.5
	gallery := []Reference{{StudentID: "A", Embedding: ref}}

	result, err := session.MarkAttendance(context.Background(), testDay(t), []QueryFace{{Embedding: query}}, gallery, "")
	if err != nil {
		t.Fatalf("MarkAttendance: %v", err)
	}

	if result.Faces[0].Status != StatusPresent {
		t.Errorf("expected PRESENT below threshold, got %s", result.Faces[0].Status)
	}
}

func TestMarkAttendance_Idempotent(t *testing.T) {
	ledger := mock.NewLedger()
	session := newTestSession(ledger)
	v := []float32{0.3, 0.7}
	gallery := []Reference{{StudentID: "S1", Embedding: v}}
	faces := []QueryFace{{Embedding: v}}
	day := testDay(t)

	first, err := session.MarkAttendance(context.Background(), day, faces, gallery, "")
	if err != nil {
		t.Fatalf("first MarkAttendance: %v", err)
	}
	second, err := session.MarkAttendance(context.Background(), day, faces, gallery, "")
	if err != nil {
		t.Fatalf("second MarkAttendance: %v", err)
	}

	// Both calls report PRESENT, but the ledger holds a single event.
	if first.PresentCount != 1 || second.PresentCount != 1 {
		t.Errorf("expected both sessions to report present, got %d and %d", first.PresentCount, second.PresentCount)
	}
	if got := len(presentEvents(ledger.Events())); got != 1 {
		t.Errorf("expected exactly 1 PRESENT event after re-marking, got %d", got)
	}
}

func TestMarkAttendance_DuplicateFacesInOneBatch(t *testing.T) {
	ledger := mock.NewLedger()
	session := newTestSession(ledger)
	v := []float32{0.3, 0.7}
	gallery := []Reference{{StudentID: "S1", Embedding: v}}
	// Two faces both matching S1, e.g. two photos merged into one batch.
	faces := []QueryFace{{Embedding: v}, {Embedding: v}}

	result, err := session.MarkAttendance(context.Background(), testDay(t), faces, gallery, "")
	if err != nil {
		t.Fatalf("MarkAttendance: %v", err)
	}

	if result.PresentCount != 2 {
		t.Errorf("expected both faces reported PRESENT, got %d", result.PresentCount)
	}
	if got := len(presentEvents(ledger.Events())); got != 1 {
		t.Errorf("expected exactly 1 PRESENT event for (S1, day), got %d", got)
	}
}

func TestMarkAttendance_ZeroFacesIsValid(t *testing.T) {
	ledger := mock.NewLedger()
	session := newTestSession(ledger)

	result, err := session.MarkAttendance(context.Background(), testDay(t), nil, nil, "")
	if err != nil {
		t.Fatalf("MarkAttendance: %v", err)
	}

	if result.TotalFaces != 0 || len(result.Faces) != 0 {
		t.Errorf("expected empty result for zero faces, got %+v", result)
	}
}

func TestMarkAttendance_UnknownFaceRecorded(t *testing.T) {
	ledger := mock.NewLedger()
	session := newTestSession(ledger)
	gallery := []Reference{{StudentID: "A", Embedding: []float32{1, 0}}}
	// Opposite direction: distance 2, far above threshold.
	faces := []QueryFace{{Embedding: []float32{-1, 0}}}

	result, err := session.MarkAttendance(context.Background(), testDay(t), faces, gallery, "")
	if err != nil {
		t.Fatalf("MarkAttendance: %v", err)
	}

	if result.UnknownCount != 1 {
		t.Fatalf("expected one unknown face, got %+v", result)
	}
	if result.Faces[0].Confidence != 0 {
		// 1 - 2.0 clamps to zero
		t.Errorf("expected clamped confidence 0, got %v", result.Faces[0].Confidence)
	}

	events := ledger.Events()
	if len(events) != 1 || events[0].Status != string(StatusUnknown) {
		t.Fatalf("expected one UNKNOWN ledger event, got %+v", events)
	}
	if events[0].StudentID != "" {
		t.Errorf("unknown-face event must carry no identity, got %q", events[0].StudentID)
	}
}

func TestMarkAttendance_RecorderAttribution(t *testing.T) {
	ledger := mock.NewLedger()
	session := newTestSession(ledger)
	v := []float32{0.3, 0.7}
	gallery := []Reference{{StudentID: "S1", Embedding: v}}

	_, err := session.MarkAttendance(context.Background(), testDay(t), []QueryFace{{Embedding: v}}, gallery, "ms-novak")
	if err != nil {
		t.Fatalf("MarkAttendance: %v", err)
	}

	events := ledger.Events()
	if len(events) != 1 || events[0].RecordedBy != "ms-novak" {
		t.Errorf("expected recorder attribution on event, got %+v", events)
	}
}

func TestMarkAttendance_LedgerFailurePropagates(t *testing.T) {
	ledger := mock.NewLedger()
	ledger.AppendError = errors.New("connection refused")
	session := newTestSession(ledger)
	v := []float32{0.3, 0.7}
	gallery := []Reference{{StudentID: "S1", Embedding: v}}

	_, err := session.MarkAttendance(context.Background(), testDay(t), []QueryFace{{Embedding: v}}, gallery, "")

	if err == nil {
		t.Fatal("expected store failure to propagate")
	}
}

func TestMarkAttendance_FaceIDsAreOrdinal(t *testing.T) {
	ledger := mock.NewLedger()
	session := newTestSession(ledger)
	faces := []QueryFace{
		{Embedding: []float32{1, 0}},
		{Embedding: []float32{0, 1}},
		{Embedding: []float32{1, 1}},
	}

	result, err := session.MarkAttendance(context.Background(), testDay(t), faces, nil, "")
	if err != nil {
		t.Fatalf("MarkAttendance: %v", err)
	}

	for i, face := range result.Faces {
		if face.FaceID != i+1 {
			t.Errorf("face %d: expected 1-based ID %d, got %d", i, i+1, face.FaceID)
		}
	}
}
