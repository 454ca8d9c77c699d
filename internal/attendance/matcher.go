package attendance

import (
	"math"

	"go.uber.org/zap"
)

// Matcher finds the nearest enrolled identity for a query embedding.
// Implementations must be safe for concurrent use; matching is a pure
// read of the gallery. The second return value is false when the
// gallery holds no usable entries.
type Matcher interface {
	Match(query []float32, gallery []Reference) (Match, bool)
}

// ScanMatcher is the default Matcher: a linear scan over the gallery
// using exact cosine distance. O(N) per query face, which is fine at
// classroom scale (tens to low thousands of identities); beyond that an
// approximate index such as HNSWMatcher is a drop-in replacement.
type ScanMatcher struct {
	log *zap.Logger
}

// NewScanMatcher creates a linear-scan matcher.
func NewScanMatcher(log *zap.Logger) *ScanMatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &ScanMatcher{log: log}
}

// Match returns the gallery entry minimizing cosine distance to the
// query. Ties keep the first entry in gallery iteration order. Entries
// with a zero-norm embedding are skipped. An empty gallery (or one with
// only unusable entries) returns no match with distance +Inf.
func (m *ScanMatcher) Match(query []float32, gallery []Reference) (Match, bool) {
	best := Match{Distance: math.Inf(1)}
	found := false

	for _, ref := range gallery {
		if isZeroVector(ref.Embedding) {
			m.log.Warn("skipping gallery entry with zero-norm embedding",
				zap.String("student_id", ref.StudentID))
			continue
		}

		d := CosineDistance(query, ref.Embedding)
		if d < best.Distance {
			best = Match{StudentID: ref.StudentID, Distance: d}
			found = true
		}
	}

	return best, found
}
