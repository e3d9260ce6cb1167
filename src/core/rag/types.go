package rag

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Embedder maps text to fixed-dimension vectors. Implementations must accept a
// batch and return exactly one vector per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore persists chunks together with caller supplied vectors.
type VectorStore interface {
	// Add writes all chunks. A partial failure reports failure for the whole call.
	Add(ctx context.Context, chunks []Chunk) error
	// SearchSimilar returns at most limit chunks ordered by ascending distance.
	// An empty store yields an empty slice and no error.
	SearchSimilar(ctx context.Context, vector []float32, limit int) ([]ScoredChunk, error)
	// GetByDocument returns every chunk of a document in any order.
	GetByDocument(ctx context.Context, documentID string) ([]Chunk, error)
	// DeleteByDocument removes every chunk of a document. Unknown ids are a no-op.
	DeleteByDocument(ctx context.Context, documentID string) error
	// Stats reports aggregate counts across all documents.
	Stats(ctx context.Context) (Stats, error)
	// Ready reports whether the backing store is reachable.
	Ready(ctx context.Context) error
}

// Generator produces an answer for a question given supporting context.
// An empty context asks for an answer without retrieved material.
type Generator interface {
	Generate(ctx context.Context, question, contextText string) (string, error)
	// Ping is a lightweight liveness probe.
	Ping(ctx context.Context) error
}

// ChunkMetadata is auxiliary data stored next to each chunk.
type ChunkMetadata struct {
	ChunkSize int       `json:"chunk_size"`
	CreatedAt time.Time `json:"created_at"`
}

// Chunk is the atomic unit of storage and retrieval.
type Chunk struct {
	ID         string        `json:"chunk_id"`
	DocumentID string        `json:"document_id"`
	Filename   string        `json:"filename"`
	Index      int           `json:"chunk_index"`
	Content    string        `json:"content"`
	Vector     []float32     `json:"-"`
	Metadata   ChunkMetadata `json:"metadata"`
}

// NewChunk builds a chunk and rejects records that would break the data model.
func NewChunk(documentID, filename string, index int, content string, vector []float32, createdAt time.Time) (Chunk, error) {
	switch {
	case documentID == "":
		return Chunk{}, fmt.Errorf("chunk: document id is required")
	case index < 0:
		return Chunk{}, fmt.Errorf("chunk: negative index %d", index)
	case strings.TrimSpace(content) == "":
		return Chunk{}, fmt.Errorf("chunk: content is blank")
	}

	return Chunk{
		ID:         ChunkID(documentID, index),
		DocumentID: documentID,
		Filename:   filename,
		Index:      index,
		Content:    content,
		Vector:     vector,
		Metadata: ChunkMetadata{
			ChunkSize: runeLen(content),
			CreatedAt: createdAt,
		},
	}, nil
}

// Validate checks a chunk read back from or about to be written to a store.
func (c Chunk) Validate() error {
	if c.DocumentID == "" {
		return fmt.Errorf("chunk %s: missing document id", c.ID)
	}
	if c.Index < 0 {
		return fmt.Errorf("chunk %s: negative index %d", c.ID, c.Index)
	}
	if strings.TrimSpace(c.Content) == "" {
		return fmt.Errorf("chunk %s: blank content", c.ID)
	}
	return nil
}

// ScoredChunk is a search hit. Distance is the cosine distance to the query.
type ScoredChunk struct {
	Chunk
	Distance float64 `json:"distance"`
}

// Source is a citation attached to an answer.
type Source struct {
	Filename       string  `json:"filename"`
	ChunkIndex     int     `json:"chunk_index"`
	ContentPreview string  `json:"content_preview"`
	RelevanceScore float64 `json:"relevance_score"`
	DocumentID     string  `json:"document_id"`
}

// Answer is the response envelope of a question.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
	Query   string   `json:"query"`
}

// IngestResult describes a successfully stored document.
type IngestResult struct {
	DocumentID  string  `json:"document_id"`
	Filename    string  `json:"filename"`
	Chunks      []Chunk `json:"-"`
	TotalChunks int     `json:"total_chunks"`
}

// Document status values reported by summaries.
const (
	StatusAvailable = "available"
	StatusNotFound  = "not_found"
)

// DocumentSummary aggregates the chunks of one document.
type DocumentSummary struct {
	DocumentID         string `json:"document_id"`
	Filename           string `json:"filename"`
	TotalChunks        int    `json:"total_chunks"`
	TotalContentLength int    `json:"total_content_length"`
	Status             string `json:"status"`
}

// Stats are store-wide counters.
type Stats struct {
	TotalChunks int `json:"total_chunks"`
}
