package attendance

import (
	"math"
	"sync"

	"github.com/coder/hnsw"
)

// HNSW index parameters for face embeddings.
const (
	// hnswMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	hnswMaxNeighbors = 16

	// hnswSearchK is the candidate pool requested per query. The best
	// candidate is re-scored with exact cosine distance, so a small
	// pool is enough for single-best lookup.
	hnswSearchK = 8
)

// HNSWMatcher is an approximate nearest-neighbor Matcher over the same
// contract as ScanMatcher. It keeps an in-memory HNSW graph built from
// the gallery and rebuilds it lazily whenever the gallery size changes.
// Useful once the gallery grows past a few thousand identities; below
// that the linear scan is simpler and exact.
type HNSWMatcher struct {
	mu       sync.RWMutex
	graph    *hnsw.Graph[string]
	indexed  map[string][]float32
	buildLen int
}

// NewHNSWMatcher creates an empty HNSW matcher. The index is built on
// first use and refreshed by Rebuild after enrollment changes.
func NewHNSWMatcher() *HNSWMatcher {
	return &HNSWMatcher{}
}

// Rebuild replaces the index with one built from the given gallery.
// Zero-norm embeddings are excluded, matching ScanMatcher behavior.
func (m *HNSWMatcher) Rebuild(gallery []Reference) {
	g := hnsw.NewGraph[string]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance

	indexed := make(map[string][]float32, len(gallery))
	for _, ref := range gallery {
		if isZeroVector(ref.Embedding) {
			continue
		}
		g.Add(hnsw.MakeNode(ref.StudentID, ref.Embedding))
		indexed[ref.StudentID] = ref.Embedding
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.graph = g
	m.indexed = indexed
	m.buildLen = len(gallery)
}

// Match searches the index for the nearest identity. The index is
// rebuilt when the gallery length differs from the one it was built
// from; callers that mutate the gallery in place at constant size
// should call Rebuild explicitly.
func (m *HNSWMatcher) Match(query []float32, gallery []Reference) (Match, bool) {
	m.mu.RLock()
	stale := m.graph == nil || m.buildLen != len(gallery)
	m.mu.RUnlock()

	if stale {
		m.Rebuild(gallery)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.indexed) == 0 {
		return Match{Distance: math.Inf(1)}, false
	}

	neighbors := m.graph.Search(query, hnswSearchK)
	if len(neighbors) == 0 {
		return Match{Distance: math.Inf(1)}, false
	}

	// Re-score candidates with exact float64 cosine distance so the
	// accept threshold behaves identically to the linear scan.
	best := Match{Distance: math.Inf(1)}
	for _, n := range neighbors {
		d := CosineDistance(query, n.Value)
		if d < best.Distance {
			best = Match{StudentID: n.Key, Distance: d}
		}
	}
	return best, true
}
