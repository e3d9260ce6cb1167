package weaviate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/weaviate/weaviate/entities/models"

	"medicopilot/src/core/rag"
)

const (
	DefaultClassName = "DocumentChunk"

	// maxDocumentChunks caps Get queries filtered by document id.
	maxDocumentChunks = 10000
)

var chunkFields = []string{"content", "document_id", "filename", "chunk_index", "metadata"}

// ChunkProperties is the schema of the chunk class.
func ChunkProperties() []*models.Property {
	return []*models.Property{
		{Name: "content", DataType: []string{"text"}, Description: "Chunk text"},
		// Filters on ids and file names must match the whole value.
		{Name: "document_id", DataType: []string{"text"}, Tokenization: models.PropertyTokenizationField, Description: "Owning document"},
		{Name: "filename", DataType: []string{"text"}, Tokenization: models.PropertyTokenizationField, Description: "Original file name"},
		{Name: "chunk_index", DataType: []string{"int"}, Description: "Position within the document"},
		{Name: "metadata", DataType: []string{"text"}, Description: "JSON encoded chunk metadata"},
	}
}

// ChunkStore is a rag.VectorStore backed by a Weaviate class.
type ChunkStore struct {
	sdk       *SDK
	className string

	mu          sync.Mutex
	schemaReady bool
}

var _ rag.VectorStore = (*ChunkStore)(nil)

func NewChunkStore(sdk *SDK, className string) *ChunkStore {
	if className == "" {
		className = DefaultClassName
	}
	return &ChunkStore{sdk: sdk, className: className}
}

// ensureSchema creates the class on first use. A failed attempt is retried on
// the next call.
func (s *ChunkStore) ensureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schemaReady {
		return nil
	}
	if err := s.sdk.EnsureClass(ctx, s.className, ChunkProperties()); err != nil {
		return err
	}
	s.schemaReady = true
	return nil
}

func (s *ChunkStore) Add(ctx context.Context, chunks []rag.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}

	objects := make([]VectorObject, 0, len(chunks))
	for _, c := range chunks {
		props, err := chunkToProperties(c)
		if err != nil {
			return err
		}
		objects = append(objects, VectorObject{ID: c.ID, Vector: c.Vector, Properties: props})
	}
	return s.sdk.BatchAddObjects(ctx, s.className, objects)
}

func (s *ChunkStore) SearchSimilar(ctx context.Context, vector []float32, limit int) ([]rag.ScoredChunk, error) {
	if limit <= 0 {
		return []rag.ScoredChunk{}, nil
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	results, err := s.sdk.Query(ctx, s.className, QueryConfig{
		Fields: chunkFields,
		Limit:  limit,
		Vector: vector,
	})
	if err != nil {
		return nil, err
	}

	hits := make([]rag.ScoredChunk, 0, len(results))
	for _, r := range results {
		c, err := chunkFromResult(r)
		if err != nil {
			return nil, err
		}
		hits = append(hits, rag.ScoredChunk{Chunk: c, Distance: r.Distance})
	}
	return hits, nil
}

func (s *ChunkStore) GetByDocument(ctx context.Context, documentID string) ([]rag.Chunk, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	results, err := s.sdk.Query(ctx, s.className, QueryConfig{
		Fields: chunkFields,
		Limit:  maxDocumentChunks,
		Path:   "document_id",
		Value:  documentID,
	})
	if err != nil {
		return nil, err
	}

	chunks := make([]rag.Chunk, 0, len(results))
	for _, r := range results {
		c, err := chunkFromResult(r)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

func (s *ChunkStore) DeleteByDocument(ctx context.Context, documentID string) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	_, err := s.sdk.DeleteWhere(ctx, s.className, "document_id", documentID)
	return err
}

func (s *ChunkStore) Stats(ctx context.Context) (rag.Stats, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return rag.Stats{}, err
	}
	count, err := s.sdk.Count(ctx, s.className)
	if err != nil {
		return rag.Stats{}, err
	}
	return rag.Stats{TotalChunks: count}, nil
}

func (s *ChunkStore) Ready(ctx context.Context) error {
	return s.sdk.Ready(ctx)
}

func chunkToProperties(c rag.Chunk) (map[string]interface{}, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	meta, err := json.Marshal(c.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata of chunk %s: %w", c.ID, err)
	}
	return map[string]interface{}{
		"content":     c.Content,
		"document_id": c.DocumentID,
		"filename":    c.Filename,
		"chunk_index": c.Index,
		"metadata":    string(meta),
	}, nil
}

// chunkFromResult rebuilds a chunk from a Get result. Records missing required
// properties are rejected.
func chunkFromResult(r QueryResult) (rag.Chunk, error) {
	content, _ := r.Properties["content"].(string)
	documentID, _ := r.Properties["document_id"].(string)
	filename, _ := r.Properties["filename"].(string)
	index, ok := r.Properties["chunk_index"].(float64)
	if !ok {
		return rag.Chunk{}, fmt.Errorf("object %s: chunk_index missing or has type %T", r.ID, r.Properties["chunk_index"])
	}

	c := rag.Chunk{
		ID:         r.ID,
		DocumentID: documentID,
		Filename:   filename,
		Index:      int(index),
		Content:    content,
	}
	if raw, ok := r.Properties["metadata"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &c.Metadata); err != nil {
			return rag.Chunk{}, fmt.Errorf("object %s: invalid metadata: %w", r.ID, err)
		}
	}
	if err := c.Validate(); err != nil {
		return rag.Chunk{}, err
	}
	return c, nil
}
