package attendance

import (
	"math"
	"testing"
)

func TestCosineDistance_IdenticalVectors(t *testing.T) {
	a := []float32{0.5, 0.2, -0.3, 0.9}

	d := CosineDistance(a, a)

	if math.Abs(d) > 1e-9 {
		t.Errorf("expected distance 0 for identical vectors, got %v", d)
	}
}

func TestCosineDistance_OppositeVectors(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{-1, 0}

	d := CosineDistance(a, b)

	if math.Abs(d-2.0) > 1e-9 {
		t.Errorf("expected distance 2 for opposite vectors, got %v", d)
	}
}

func TestCosineDistance_Orthogonal(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}

	d := CosineDistance(a, b)

	if math.Abs(d-1.0) > 1e-9 {
		t.Errorf("expected distance 1 for orthogonal vectors, got %v", d)
	}
}

func TestCosineDistance_Range(t *testing.T) {
	vectors := [][]float32{
		{1, 2, 3},
		{-1, -2, -3},
		{0.001, 100, -50},
		{3, 0, 0},
	}
	for _, a := range vectors {
		for _, b := range vectors {
			d := CosineDistance(a, b)
			if d < 0 || d > 2 {
				t.Errorf("distance %v out of [0, 2] for %v vs %v", d, a, b)
			}
		}
	}
}

func TestCosineDistance_ZeroVector(t *testing.T) {
	if d := CosineDistance([]float32{0, 0}, []float32{1, 1}); d != 2.0 {
		t.Errorf("expected max distance for zero vector, got %v", d)
	}
}

func TestCosineDistance_MismatchedLength(t *testing.T) {
	if d := CosineDistance([]float32{1}, []float32{1, 2}); d != 2.0 {
		t.Errorf("expected max distance for mismatched lengths, got %v", d)
	}
}

func TestScanMatcher_ExactMatch(t *testing.T) {
	m := NewScanMatcher(nil)
	v1 := []float32{0.1, 0.9, 0.3}
	v2 := []float32{-0.5, 0.2, 0.8}
	gallery := []Reference{
		{StudentID: "A", Embedding: v1},
		{StudentID: "B", Embedding: v2},
	}

	match, ok := m.Match(v1, gallery)

	if !ok {
		t.Fatal("expected a match")
	}
	if match.StudentID != "A" {
		t.Errorf("expected student A, got %s", match.StudentID)
	}
	if math.Abs(match.Distance) > 1e-9 {
		t.Errorf("expected distance 0, got %v", match.Distance)
	}
}

func TestScanMatcher_EmptyGallery(t *testing.T) {
	m := NewScanMatcher(nil)

	match, ok := m.Match([]float32{1, 2, 3}, nil)

	if ok {
		t.Error("expected no match for empty gallery")
	}
	if !math.IsInf(match.Distance, 1) {
		t.Errorf("expected +Inf distance, got %v", match.Distance)
	}
}

func TestScanMatcher_SkipsZeroNormEntries(t *testing.T) {
	m := NewScanMatcher(nil)
	gallery := []Reference{
		{StudentID: "zero", Embedding: []float32{0, 0, 0}},
		{StudentID: "B", Embedding: []float32{1, 0, 0}},
	}

	match, ok := m.Match([]float32{1, 0, 0}, gallery)

	if !ok {
		t.Fatal("expected a match")
	}
	if match.StudentID != "B" {
		t.Errorf("expected zero-norm entry to be skipped, got match %s", match.StudentID)
	}
}

func TestScanMatcher_AllEntriesUnusable(t *testing.T) {
	m := NewScanMatcher(nil)
	gallery := []Reference{
		{StudentID: "zero1", Embedding: []float32{0, 0}},
		{StudentID: "zero2", Embedding: []float32{0, 0}},
	}

	_, ok := m.Match([]float32{1, 0}, gallery)

	if ok {
		t.Error("expected no match when every gallery entry is unusable")
	}
}

func TestScanMatcher_TieBreakFirstWins(t *testing.T) {
	m := NewScanMatcher(nil)
	v := []float32{1, 0}
	gallery := []Reference{
		{StudentID: "first", Embedding: v},
		{StudentID: "second", Embedding: v},
	}

	match, ok := m.Match(v, gallery)

	if !ok {
		t.Fatal("expected a match")
	}
	if match.StudentID != "first" {
		t.Errorf("expected first entry to win ties, got %s", match.StudentID)
	}
}

func TestScanMatcher_PicksNearest(t *testing.T) {
	m := NewScanMatcher(nil)
	gallery := []Reference{
		{StudentID: "far", Embedding: []float32{-1, 0}},
		{StudentID: "near", Embedding: []float32{0.9, 0.1}},
		{StudentID: "mid", Embedding: []float32{0, 1}},
	}

	match, ok := m.Match([]float32{1, 0}, gallery)

	if !ok {
		t.Fatal("expected a match")
	}
	if match.StudentID != "near" {
		t.Errorf("expected nearest entry, got %s", match.StudentID)
	}
}

func TestHNSWMatcher_MatchesScanResult(t *testing.T) {
	scan := NewScanMatcher(nil)
	ann := NewHNSWMatcher()

	gallery := []Reference{
		{StudentID: "S1", Embedding: []float32{1, 0, 0, 0}},
		{StudentID: "S2", Embedding: []float32{0, 1, 0, 0}},
		{StudentID: "S3", Embedding: []float32{0, 0, 1, 0}},
		{StudentID: "S4", Embedding: []float32{0.7, 0.7, 0, 0}},
	}
	query := []float32{0.9, 0.1, 0, 0}

	want, ok1 := scan.Match(query, gallery)
	got, ok2 := ann.Match(query, gallery)

	if !ok1 || !ok2 {
		t.Fatal("expected both matchers to find a match")
	}
	if got.StudentID != want.StudentID {
		t.Errorf("HNSW matched %s, scan matched %s", got.StudentID, want.StudentID)
	}
	if math.Abs(got.Distance-want.Distance) > 1e-9 {
		t.Errorf("HNSW distance %v, scan distance %v", got.Distance, want.Distance)
	}
}

func TestHNSWMatcher_EmptyGallery(t *testing.T) {
	ann := NewHNSWMatcher()

	_, ok := ann.Match([]float32{1, 0}, nil)

	if ok {
		t.Error("expected no match for empty gallery")
	}
}

func TestHNSWMatcher_RebuildAfterGrowth(t *testing.T) {
	ann := NewHNSWMatcher()
	gallery := []Reference{
		{StudentID: "S1", Embedding: []float32{1, 0}},
	}

	if match, ok := ann.Match([]float32{1, 0}, gallery); !ok || match.StudentID != "S1" {
		t.Fatalf("expected S1, got %+v ok=%v", match, ok)
	}

	// Enrollment grows the gallery; the index must pick up the new entry.
	gallery = append(gallery, Reference{StudentID: "S2", Embedding: []float32{0, 1}})

	match, ok := ann.Match([]float32{0, 1}, gallery)
	if !ok || match.StudentID != "S2" {
		t.Errorf("expected S2 after gallery growth, got %+v ok=%v", match, ok)
	}
}

func TestHNSWMatcher_SkipsZeroNormEntries(t *testing.T) {
	ann := NewHNSWMatcher()
	gallery := []Reference{
		{StudentID: "zero", Embedding: []float32{0, 0}},
		{StudentID: "B", Embedding: []float32{0, 1}},
	}

	match, ok := ann.Match([]float32{0, 1}, gallery)

	if !ok || match.StudentID != "B" {
		t.Errorf("expected B, got %+v ok=%v", match, ok)
	}
}
