package memory

import (
	"math"
	"sort"
	"sync/atomic"

	"echochat/internal/domain"
)

// snapshot is an immutable view of the index contents. Readers load the
// current snapshot once and work against it; Replace publishes a fully
// built snapshot with a single pointer store, so a query never observes
// a half-rebuilt index.
type snapshot struct {
	dim   int
	items []domain.IndexedVector
	norms []float64
}

// Store is an in-memory vector index using brute-force cosine similarity.
type Store struct {
	snap atomic.Pointer[snapshot]
}

func New() *Store {
	s := &Store{}
	s.snap.Store(&snapshot{})
	return s
}

// Replace swaps the entire index contents for the given set. Duplicate
// IDs keep the last occurrence. All vectors must share one dimension.
func (s *Store) Replace(items []domain.IndexedVector) error {
	next, err := build(items)
	if err != nil {
		return err
	}
	s.snap.Store(next)
	return nil
}

// Query returns up to topK results with similarity >= minSimilarity,
// ordered by similarity descending. Similarity is cosine similarity
// rounded to three decimals; the threshold is applied to the raw value.
func (s *Store) Query(vector []float64, topK int, minSimilarity float64) ([]domain.SearchResult, error) {
	snap := s.snap.Load()
	if len(snap.items) == 0 {
		return nil, nil
	}
	if len(vector) != snap.dim {
		return nil, &domain.ShapeError{Want: snap.dim, Got: len(vector)}
	}
	qnorm := norm(vector)

	type scored struct {
		idx int
		sim float64
	}
	var hits []scored
	for i := range snap.items {
		sim := 0.0
		if qnorm > 0 && snap.norms[i] > 0 {
			sim = dot(vector, snap.items[i].Embedding) / (qnorm * snap.norms[i])
		}
		if sim >= minSimilarity {
			hits = append(hits, scored{idx: i, sim: sim})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].sim > hits[j].sim })
	if topK >= 0 && topK < len(hits) {
		hits = hits[:topK]
	}
	results := make([]domain.SearchResult, 0, len(hits))
	for _, h := range hits {
		item := snap.items[h.idx]
		results = append(results, domain.SearchResult{
			Text:       item.Text,
			Meta:       item.Meta,
			Similarity: round3(h.sim),
		})
	}
	return results, nil
}

// Count returns the number of stored vectors.
func (s *Store) Count() int {
	return len(s.snap.Load().items)
}

func build(items []domain.IndexedVector) (*snapshot, error) {
	// last occurrence of an ID wins
	byID := make(map[string]int, len(items))
	deduped := make([]domain.IndexedVector, 0, len(items))
	for _, item := range items {
		if at, ok := byID[item.ID]; ok {
			deduped[at] = item
			continue
		}
		byID[item.ID] = len(deduped)
		deduped = append(deduped, item)
	}
	next := &snapshot{items: deduped, norms: make([]float64, len(deduped))}
	for i, item := range deduped {
		if next.dim == 0 {
			next.dim = len(item.Embedding)
		}
		if len(item.Embedding) != next.dim {
			return nil, &domain.ShapeError{Want: next.dim, Got: len(item.Embedding)}
		}
		next.norms[i] = norm(item.Embedding)
	}
	return next, nil
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func norm(v []float64) float64 {
	return math.Sqrt(dot(v, v))
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
