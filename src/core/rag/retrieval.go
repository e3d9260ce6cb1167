package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"medicopilot/src/log"
)

const (
	DefaultMaxResults        = 5
	DefaultGenerationTimeout = 30 * time.Second

	previewLength = 200
)

// ContextLabel formats the header of one retrieved block. rank is 1-based.
type ContextLabel func(rank int, filename string, chunkIndex int) string

// SpanishLabel matches the Spanish system persona.
func SpanishLabel(rank int, filename string, chunkIndex int) string {
	return fmt.Sprintf("Fuente %d: %s (fragmento %d)", rank, filename, chunkIndex)
}

// EnglishLabel renders "Source <rank>: <filename> (fragment <index>)".
func EnglishLabel(rank int, filename string, chunkIndex int) string {
	return fmt.Sprintf("Source %d: %s (fragment %d)", rank, filename, chunkIndex)
}

// RetrievalPipeline answers questions from stored chunks.
type RetrievalPipeline struct {
	embedder  Embedder
	store     VectorStore
	generator Generator

	generationTimeout time.Duration
	label             ContextLabel
}

type RetrievalOption func(*RetrievalPipeline)

// WithGenerationTimeout bounds each generator call.
func WithGenerationTimeout(d time.Duration) RetrievalOption {
	return func(p *RetrievalPipeline) {
		if d > 0 {
			p.generationTimeout = d
		}
	}
}

func WithContextLabel(label ContextLabel) RetrievalOption {
	return func(p *RetrievalPipeline) {
		if label != nil {
			p.label = label
		}
	}
}

func NewRetrievalPipeline(embedder Embedder, store VectorStore, generator Generator, opts ...RetrievalOption) *RetrievalPipeline {
	p := &RetrievalPipeline{
		embedder:          embedder,
		store:             store,
		generator:         generator,
		generationTimeout: DefaultGenerationTimeout,
		label:             SpanishLabel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Answer retrieves up to maxResults chunks for question and generates a grounded
// answer. Collaborator failures produce a canned answer instead of an error.
// Callers validate the input with ValidateQuestion first; a non-positive
// maxResults retrieves nothing.
func (p *RetrievalPipeline) Answer(ctx context.Context, question string, maxResults int) *Answer {
	logger := log.WithValues("query", question, "max_results", maxResults)
	if maxResults <= 0 {
		logger.Info("non-positive result bound, skipping retrieval")
		return emptyAnswer(question, AnswerNoInformation)
	}

	hits, err := p.retrieve(ctx, question, maxResults)
	switch Classify(err) {
	case OutcomeRetryable:
		logger.Error(err, "retrieval unavailable")
		return emptyAnswer(question, AnswerSearchUnavailable)
	case OutcomePermanent:
		logger.Error(err, "retrieval failed")
		return emptyAnswer(question, AnswerSearchFailed)
	}

	if len(hits) == 0 {
		logger.Info("no relevant chunks found")
		return emptyAnswer(question, AnswerNoInformation)
	}

	answer, err := p.generate(ctx, question, p.buildContext(hits))
	if err != nil {
		logger.Error(err, "generation failed", "outcome", Classify(err).String())
		answer = AnswerGenerationFailed
	}

	return &Answer{
		Answer:  answer,
		Sources: BuildSources(hits),
		Query:   question,
	}
}

func (p *RetrievalPipeline) retrieve(ctx context.Context, question string, limit int) ([]ScoredChunk, error) {
	vectors, err := p.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, NewError(ErrEmbedding, "answer", fmt.Errorf("failed to embed question: %w", err))
	}
	if len(vectors) != 1 {
		return nil, Permanent(ErrEmbedding, "answer", fmt.Errorf("embedder returned %d vectors for 1 question", len(vectors)))
	}

	hits, err := p.store.SearchSimilar(ctx, vectors[0], limit)
	if err != nil {
		return nil, NewError(ErrStorage, "answer", fmt.Errorf("failed to search similar chunks: %w", err))
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (p *RetrievalPipeline) generate(ctx context.Context, question, contextText string) (string, error) {
	ctx, cancel := contextWithTimeout(ctx, p.generationTimeout)
	defer cancel()

	answer, err := p.generator.Generate(ctx, question, contextText)
	if err != nil {
		return "", NewError(ErrGeneration, "answer", err)
	}
	if strings.TrimSpace(answer) == "" {
		return "", Permanent(ErrGeneration, "answer", fmt.Errorf("generator returned an empty answer"))
	}
	return strings.TrimSpace(answer), nil
}

// buildContext renders one labelled block per hit in rank order.
func (p *RetrievalPipeline) buildContext(hits []ScoredChunk) string {
	blocks := make([]string, 0, len(hits))
	for i, hit := range hits {
		blocks = append(blocks, fmt.Sprintf("%s\n%s\n", p.label(i+1, hit.Filename, hit.Index), hit.Content))
	}
	return strings.Join(blocks, "\n")
}

// BuildSources turns ranked hits into citations.
func BuildSources(hits []ScoredChunk) []Source {
	sources := make([]Source, 0, len(hits))
	for _, hit := range hits {
		sources = append(sources, Source{
			Filename:       hit.Filename,
			ChunkIndex:     hit.Index,
			ContentPreview: Preview(hit.Content),
			RelevanceScore: RelevanceScore(hit.Distance),
			DocumentID:     hit.DocumentID,
		})
	}
	return sources
}

// Preview truncates content to 200 characters and marks the cut with "...".
func Preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLength {
		return content
	}
	return string(runes[:previewLength]) + "..."
}

// RelevanceScore converts a cosine distance into a score clamped to [0, 1].
func RelevanceScore(distance float64) float64 {
	score := 1 - distance
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	}
	return score
}

func emptyAnswer(question, text string) *Answer {
	return &Answer{Answer: text, Sources: []Source{}, Query: question}
}

func contextWithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
