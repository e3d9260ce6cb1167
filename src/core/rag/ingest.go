package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"medicopilot/src/log"
)

// IngestionPipeline turns raw document text into stored, searchable chunks.
type IngestionPipeline struct {
	chunker  *Chunker
	embedder Embedder
	store    VectorStore

	now   func() time.Time
	newID func() string
}

func NewIngestionPipeline(chunker *Chunker, embedder Embedder, store VectorStore) *IngestionPipeline {
	if chunker == nil {
		chunker = NewChunker(DefaultChunkSize, DefaultChunkOverlap)
	}
	return &IngestionPipeline{
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.New().String() },
	}
}

// Ingest chunks, embeds and stores rawText under a fresh document id.
// Either every chunk is written or the call fails.
func (p *IngestionPipeline) Ingest(ctx context.Context, rawText, filename string) (*IngestResult, error) {
	text := strings.TrimSpace(rawText)
	if text == "" {
		return nil, Permanent(ErrExtraction, "ingest", fmt.Errorf("no text extracted from %q", filename))
	}

	documentID := p.newID()
	logger := log.WithValues("document_id", documentID, "filename", filename)

	contents := p.chunker.Split(text)
	if len(contents) == 0 {
		return nil, Permanent(ErrExtraction, "ingest", fmt.Errorf("no sentences found in %q", filename))
	}

	// One batched call for the whole document
	vectors, err := p.embedder.Embed(ctx, contents)
	if err != nil {
		logger.Error(err, "failed to embed chunks", "chunks", len(contents))
		return nil, NewError(ErrEmbedding, "ingest", fmt.Errorf("failed to embed %d chunks: %w", len(contents), err))
	}
	if len(vectors) != len(contents) {
		err := fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(contents))
		logger.Error(err, "embedding count mismatch")
		return nil, Permanent(ErrEmbedding, "ingest", err)
	}

	createdAt := p.now()
	chunks := make([]Chunk, 0, len(contents))
	for i, content := range contents {
		chunk, err := NewChunk(documentID, filename, i, content, vectors[i], createdAt)
		if err != nil {
			return nil, Permanent(ErrExtraction, "ingest", err)
		}
		chunks = append(chunks, chunk)
	}

	if err := p.store.Add(ctx, chunks); err != nil {
		logger.Error(err, "failed to store chunks", "chunks", len(chunks))
		// Drop whatever part of the batch landed so no chunk stays searchable.
		if cleanupErr := p.store.DeleteByDocument(context.WithoutCancel(ctx), documentID); cleanupErr != nil {
			logger.Error(cleanupErr, "failed to clean up partial ingestion")
		}
		return nil, NewError(ErrStorage, "ingest", fmt.Errorf("failed to store chunks: %w", err))
	}

	logger.Info("document ingested", "chunks", len(chunks))
	return &IngestResult{
		DocumentID:  documentID,
		Filename:    filename,
		Chunks:      chunks,
		TotalChunks: len(chunks),
	}, nil
}
