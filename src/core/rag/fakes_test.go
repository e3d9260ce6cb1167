package rag_test

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"

	"medicopilot/src/core/rag"
)

// hashEmbedder is a bag-of-words embedder: each lower-cased word bumps one of
// 64 buckets.
type hashEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (e *hashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}

	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		v := make([]float32, 64)
		words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, w := range words {
			h := fnv.New32a()
			_, _ = h.Write([]byte(w))
			v[h.Sum32()%64]++
		}
		out = append(out, v)
	}
	return out, nil
}

// shortEmbedder drops the last vector.
type shortEmbedder struct{ hashEmbedder }

func (e *shortEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	v, err := e.hashEmbedder.Embed(ctx, texts)
	if err != nil || len(v) == 0 {
		return v, err
	}
	return v[:len(v)-1], nil
}

type fakeGenerator struct {
	answer  string
	err     error
	block   bool
	prompts []string
}

func (g *fakeGenerator) Generate(ctx context.Context, question, contextText string) (string, error) {
	g.prompts = append(g.prompts, rag.BuildPrompt(question, contextText))
	if g.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return g.answer, g.err
}

func (g *fakeGenerator) Ping(context.Context) error {
	return g.err
}

// failingStore wraps a VectorStore and injects per-operation failures.
type failingStore struct {
	rag.VectorStore
	addErr    error
	searchErr error
	getErr    error
	deleteErr error
	deleted   []string
}

func (s *failingStore) Add(ctx context.Context, chunks []rag.Chunk) error {
	if s.addErr != nil {
		// Simulate a partial write before the failure.
		_ = s.VectorStore.Add(ctx, chunks[:1])
		return s.addErr
	}
	return s.VectorStore.Add(ctx, chunks)
}

func (s *failingStore) SearchSimilar(ctx context.Context, vector []float32, limit int) ([]rag.ScoredChunk, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.VectorStore.SearchSimilar(ctx, vector, limit)
}

func (s *failingStore) GetByDocument(ctx context.Context, documentID string) ([]rag.Chunk, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.VectorStore.GetByDocument(ctx, documentID)
}

func (s *failingStore) DeleteByDocument(ctx context.Context, documentID string) error {
	s.deleted = append(s.deleted, documentID)
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.VectorStore.DeleteByDocument(ctx, documentID)
}

// timeoutError satisfies net.Error.
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }
