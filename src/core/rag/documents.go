package rag

import (
	"context"
	"fmt"
	"sort"

	"medicopilot/src/log"
)

// Documents exposes the per-document views over a VectorStore.
type Documents struct {
	store VectorStore
}

func NewDocuments(store VectorStore) *Documents {
	return &Documents{store: store}
}

// Summarize aggregates the chunks of documentID. An unknown id yields a summary
// with status not_found rather than an error.
func (d *Documents) Summarize(ctx context.Context, documentID string) (*DocumentSummary, error) {
	chunks, err := d.store.GetByDocument(ctx, documentID)
	if err != nil {
		log.Error(err, "failed to load document chunks", "document_id", documentID)
		return nil, NewError(ErrStorage, "summarize", err)
	}

	if len(chunks) == 0 {
		return &DocumentSummary{
			DocumentID: documentID,
			Filename:   "Unknown",
			Status:     StatusNotFound,
		}, nil
	}

	total := 0
	for _, c := range chunks {
		total += runeLen(c.Content)
	}
	return &DocumentSummary{
		DocumentID:         documentID,
		Filename:           chunks[0].Filename,
		TotalChunks:        len(chunks),
		TotalContentLength: total,
		Status:             StatusAvailable,
	}, nil
}

// Chunks returns the chunks of documentID ordered by index.
func (d *Documents) Chunks(ctx context.Context, documentID string) ([]Chunk, error) {
	chunks, err := d.store.GetByDocument(ctx, documentID)
	if err != nil {
		log.Error(err, "failed to load document chunks", "document_id", documentID)
		return nil, NewError(ErrStorage, "chunks", err)
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })
	return chunks, nil
}

// Delete removes every chunk of documentID. Unknown ids are not an error.
func (d *Documents) Delete(ctx context.Context, documentID string) error {
	if err := d.store.DeleteByDocument(ctx, documentID); err != nil {
		log.Error(err, "failed to delete document", "document_id", documentID)
		return NewError(ErrStorage, "delete", fmt.Errorf("failed to delete document %s: %w", documentID, err))
	}
	log.Info("document deleted", "document_id", documentID)
	return nil
}

func (d *Documents) Stats(ctx context.Context) (*Stats, error) {
	stats, err := d.store.Stats(ctx)
	if err != nil {
		log.Error(err, "failed to read store stats")
		return nil, NewError(ErrStorage, "stats", err)
	}
	return &stats, nil
}
