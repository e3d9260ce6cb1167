package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"medicopilot/src/core/rag"
)

// Store is an in-process VectorStore with brute-force cosine search.
// It is used by tests and by the "memory" vectorstore backend.
type Store struct {
	mu     sync.RWMutex
	chunks []rag.Chunk // insertion order
	byID   map[string]int
	dims   int
}

var _ rag.VectorStore = (*Store)(nil)

func New() *Store {
	return &Store{byID: make(map[string]int)}
}

// Add writes all chunks or none. Chunks with an id already present replace the
// stored record in place.
func (s *Store) Add(_ context.Context, chunks []rag.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dims := s.dims
	for _, c := range chunks {
		if err := c.Validate(); err != nil {
			return err
		}
		if len(c.Vector) == 0 {
			return fmt.Errorf("chunk %s: missing vector", c.ID)
		}
		if dims == 0 {
			dims = len(c.Vector)
		}
		if len(c.Vector) != dims {
			return fmt.Errorf("chunk %s: %w: got %d, want %d", c.ID, rag.ErrDimensionMismatch, len(c.Vector), dims)
		}
	}

	s.dims = dims
	for _, c := range chunks {
		c.Vector = append([]float32(nil), c.Vector...)
		if i, ok := s.byID[c.ID]; ok {
			s.chunks[i] = c
			continue
		}
		s.byID[c.ID] = len(s.chunks)
		s.chunks = append(s.chunks, c)
	}
	return nil
}

func (s *Store) SearchSimilar(_ context.Context, vector []float32, limit int) ([]rag.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.chunks) == 0 || limit <= 0 {
		return []rag.ScoredChunk{}, nil
	}
	if len(vector) != s.dims {
		return nil, fmt.Errorf("query: %w: got %d, want %d", rag.ErrDimensionMismatch, len(vector), s.dims)
	}

	hits := make([]rag.ScoredChunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		hits = append(hits, rag.ScoredChunk{Chunk: c, Distance: CosineDistance(vector, c.Vector)})
	}
	// Stable keeps insertion order among equal distances.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *Store) GetByDocument(_ context.Context, documentID string) ([]rag.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []rag.Chunk{}
	for _, c := range s.chunks {
		if c.DocumentID == documentID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) DeleteByDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.chunks[:0]
	for _, c := range s.chunks {
		if c.DocumentID != documentID {
			kept = append(kept, c)
		}
	}
	s.chunks = kept

	s.byID = make(map[string]int, len(s.chunks))
	for i, c := range s.chunks {
		s.byID[c.ID] = i
	}
	return nil
}

func (s *Store) Stats(_ context.Context) (rag.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return rag.Stats{TotalChunks: len(s.chunks)}, nil
}

func (s *Store) Ready(_ context.Context) error {
	return nil
}

// CosineDistance returns 1 - cos(a, b). A zero vector is at distance 1 from
// everything.
func CosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
