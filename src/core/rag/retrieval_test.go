package rag_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medicopilot/src/core/rag"
	"medicopilot/src/storage/memory"
)

func TestAnswerEmptyCorpus(t *testing.T) {
	generator := &fakeGenerator{answer: "never used"}
	pipeline := rag.NewRetrievalPipeline(&hashEmbedder{}, memory.New(), generator)

	answer := pipeline.Answer(context.Background(), "¿cuál es la capital de Marte?", 5)

	assert.Equal(t, rag.AnswerNoInformation, answer.Answer)
	assert.NotNil(t, answer.Sources)
	assert.Empty(t, answer.Sources)
	assert.Equal(t, "¿cuál es la capital de Marte?", answer.Query)
	assert.Empty(t, generator.prompts)
}

func TestAnswerNonPositiveBound(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	embedder := &hashEmbedder{}
	_, err := rag.NewIngestionPipeline(nil, embedder, store).Ingest(ctx, dosageText, "paracetamol.txt")
	require.NoError(t, err)

	for _, bound := range []int{0, -1} {
		generator := &fakeGenerator{answer: "x"}
		answer := rag.NewRetrievalPipeline(embedder, store, generator).Answer(ctx, "¿dosis?", bound)

		assert.Equal(t, rag.AnswerNoInformation, answer.Answer, "bound %d", bound)
		assert.NotNil(t, answer.Sources)
		assert.Empty(t, answer.Sources)
		assert.Empty(t, generator.prompts)
	}
}

func TestAnswerCitesIngestedDocument(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	embedder := &hashEmbedder{}

	_, err := rag.NewIngestionPipeline(rag.NewChunker(120, 30), embedder, store).Ingest(ctx, dosageText, "paracetamol.txt")
	require.NoError(t, err)
	_, err = rag.NewIngestionPipeline(nil, embedder, store).Ingest(ctx, "La vacuna se aplica en otoño. Requiere refuerzo anual.", "vacunas.txt")
	require.NoError(t, err)

	generator := &fakeGenerator{answer: "  500 mg a 1 g cada 6 a 8 horas.  "}
	pipeline := rag.NewRetrievalPipeline(embedder, store, generator)

	question := "¿dosis de paracetamol?"
	answer := pipeline.Answer(ctx, question, 3)

	assert.Equal(t, "500 mg a 1 g cada 6 a 8 horas.", answer.Answer)
	assert.Equal(t, question, answer.Query)
	require.NotEmpty(t, answer.Sources)
	assert.LessOrEqual(t, len(answer.Sources), 3)
	assert.Equal(t, "paracetamol.txt", answer.Sources[0].Filename)

	vectors, err := embedder.Embed(ctx, []string{question})
	require.NoError(t, err)
	hits, err := store.SearchSimilar(ctx, vectors[0], 3)
	require.NoError(t, err)
	for i, src := range answer.Sources {
		assert.InDelta(t, 1-hits[i].Distance, src.RelevanceScore, 1e-9)
		assert.Equal(t, hits[i].Index, src.ChunkIndex)
		assert.Equal(t, hits[i].DocumentID, src.DocumentID)
		if i > 0 {
			assert.GreaterOrEqual(t, answer.Sources[i-1].RelevanceScore, src.RelevanceScore)
		}
	}

	require.Len(t, generator.prompts, 1)
	prompt := generator.prompts[0]
	assert.Contains(t, prompt, "Contexto médico relevante:\nFuente 1: paracetamol.txt (fragmento ")
	assert.Contains(t, prompt, "Pregunta: "+question)
}

func TestAnswerContextLayout(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Add(ctx, []rag.Chunk{
		mustChunk(t, "d1", "a.txt", 0, "primero", []float32{1, 0}),
		mustChunk(t, "d2", "b.txt", 4, "segundo", []float32{1, 1}),
	}))

	var gotContext string
	generator := &contextRecorder{out: &gotContext}
	pipeline := rag.NewRetrievalPipeline(staticEmbedder{1, 0}, store, generator, rag.WithContextLabel(rag.EnglishLabel))

	pipeline.Answer(ctx, "q", 2)

	assert.Equal(t, "Source 1: a.txt (fragment 0)\nprimero\n\nSource 2: b.txt (fragment 4)\nsegundo\n", gotContext)
}

func TestAnswerDegradesOnFailures(t *testing.T) {
	ctx := context.Background()
	backing := memory.New()
	_, err := rag.NewIngestionPipeline(nil, &hashEmbedder{}, backing).Ingest(ctx, dosageText, "paracetamol.txt")
	require.NoError(t, err)

	tests := []struct {
		name        string
		embedder    rag.Embedder
		searchErr   error
		generator   *fakeGenerator
		want        string
		wantSources bool
	}{
		{name: "embedder unreachable", embedder: &hashEmbedder{err: timeoutError{}}, generator: &fakeGenerator{answer: "x"}, want: rag.AnswerSearchUnavailable},
		{name: "embedder rejects", embedder: &hashEmbedder{err: errors.New("bad model")}, generator: &fakeGenerator{answer: "x"}, want: rag.AnswerSearchFailed},
		{name: "store unreachable", embedder: &hashEmbedder{}, searchErr: timeoutError{}, generator: &fakeGenerator{answer: "x"}, want: rag.AnswerSearchUnavailable},
		{name: "store query error", embedder: &hashEmbedder{}, searchErr: errors.New("bad query"), generator: &fakeGenerator{answer: "x"}, want: rag.AnswerSearchFailed},
		{name: "generator error", embedder: &hashEmbedder{}, generator: &fakeGenerator{err: errors.New("502")}, want: rag.AnswerGenerationFailed, wantSources: true},
		{name: "generator empty", embedder: &hashEmbedder{}, generator: &fakeGenerator{answer: " \n"}, want: rag.AnswerGenerationFailed, wantSources: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &failingStore{VectorStore: backing, searchErr: tt.searchErr}
			pipeline := rag.NewRetrievalPipeline(tt.embedder, store, tt.generator)

			answer := pipeline.Answer(ctx, "¿dosis de paracetamol?", 3)

			require.NotNil(t, answer)
			assert.Equal(t, tt.want, answer.Answer)
			assert.Equal(t, "¿dosis de paracetamol?", answer.Query)
			if tt.wantSources {
				assert.NotEmpty(t, answer.Sources)
			} else {
				assert.Empty(t, answer.Sources)
			}
		})
	}
}

func TestAnswerGenerationTimeout(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	_, err := rag.NewIngestionPipeline(nil, &hashEmbedder{}, store).Ingest(ctx, dosageText, "paracetamol.txt")
	require.NoError(t, err)

	pipeline := rag.NewRetrievalPipeline(&hashEmbedder{}, store, &fakeGenerator{block: true},
		rag.WithGenerationTimeout(20*time.Millisecond))

	start := time.Now()
	answer := pipeline.Answer(ctx, "dosis de paracetamol", 2)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, rag.AnswerGenerationFailed, answer.Answer)
	assert.NotEmpty(t, answer.Sources)
}

func TestPreview(t *testing.T) {
	short := strings.Repeat("a", 200)
	long := strings.Repeat("ñ", 250)

	assert.Equal(t, short, rag.Preview(short))
	assert.Equal(t, strings.Repeat("ñ", 200)+"...", rag.Preview(long))
}

func TestRelevanceScore(t *testing.T) {
	tests := []struct {
		distance float64
		want     float64
	}{
		{distance: 0, want: 1},
		{distance: 0.25, want: 0.75},
		{distance: 1, want: 0},
		{distance: 1.7, want: 0},
		{distance: -0.1, want: 1},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, rag.RelevanceScore(tt.distance), 1e-9)
	}
}

func TestBuildPrompt(t *testing.T) {
	withContext := rag.BuildPrompt("¿dosis?", "Fuente 1: a.txt (fragmento 0)\ntexto\n")
	assert.True(t, strings.HasPrefix(withContext, "Contexto médico relevante:\nFuente 1"))
	assert.Contains(t, withContext, "\n\nPregunta: ¿dosis?\n\n")

	withoutContext := rag.BuildPrompt("¿dosis?", "")
	assert.True(t, strings.HasPrefix(withoutContext, "Pregunta médica: ¿dosis?\n\n"))
}

func TestValidateQuestion(t *testing.T) {
	tests := []struct {
		name       string
		question   string
		maxResults int
		wantErr    bool
	}{
		{name: "valid", question: "¿dosis?", maxResults: 5},
		{name: "blank", question: "  \t", maxResults: 5, wantErr: true},
		{name: "zero results", question: "¿dosis?", maxResults: 0, wantErr: true},
		{name: "negative results", question: "¿dosis?", maxResults: -3, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := rag.ValidateQuestion(tt.question, tt.maxResults)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, rag.ErrValidation)
		})
	}
}

type staticEmbedder []float32

func (e staticEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = e
	}
	return out, nil
}

type contextRecorder struct{ out *string }

func (r *contextRecorder) Generate(_ context.Context, _, contextText string) (string, error) {
	*r.out = contextText
	return "ok", nil
}

func (r *contextRecorder) Ping(context.Context) error { return nil }

func mustChunk(t *testing.T, doc, filename string, index int, content string, vector []float32) rag.Chunk {
	t.Helper()
	c, err := rag.NewChunk(doc, filename, index, content, vector, time.Now())
	require.NoError(t, err)
	return c
}
