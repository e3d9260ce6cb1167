package rag_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medicopilot/src/core/rag"
)

// sentence returns a sentence of n characters made of space separated words.
func sentence(letter string, n int) string {
	words := strings.Repeat(strings.Repeat(letter, 9)+" ", n/10+1)
	return words[:n-1] + letter
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "simple", text: "Uno. Dos. Tres.", want: []string{"Uno", "Dos", "Tres"}},
		{name: "mixed punctuation runs", text: "¿Qué dosis? Dos tabletas!! Cada 8 horas...", want: []string{"¿Qué dosis", "Dos tabletas", "Cada 8 horas"}},
		{name: "no terminal punctuation", text: "  sin punto final  ", want: []string{"sin punto final"}},
		{name: "only punctuation", text: "... !!! ???", want: []string{}},
		{name: "empty", text: "", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rag.SplitSentences(tt.text))
		})
	}
}

func TestSplitScenario(t *testing.T) {
	lengths := []int{600, 370, 600, 150, 771}
	parts := make([]string, 0, len(lengths))
	for i, n := range lengths {
		parts = append(parts, sentence(string(rune('a'+i)), n)+".")
	}
	text := strings.Join(parts, " ")
	require.Equal(t, 2500, utf8.RuneCountInString(text))

	chunks := rag.NewChunker(1000, 200).Split(text)

	require.Len(t, chunks, 3)
	assert.Equal(t, []int{971, 952, 972}, []int{len(chunks[0]), len(chunks[1]), len(chunks[2])})
	for i := 1; i < len(chunks); i++ {
		tail := strings.TrimSpace(chunks[i-1][len(chunks[i-1])-200:])
		assert.True(t, strings.HasPrefix(chunks[i], tail), "chunk %d must start with the tail of chunk %d", i, i-1)
	}
}

func TestSplitProperties(t *testing.T) {
	sentences := []string{
		sentence("a", 120), sentence("b", 300), sentence("c", 45), sentence("d", 250),
		sentence("e", 90), sentence("f", 280), sentence("g", 10), sentence("h", 199),
		sentence("i", 60), sentence("j", 230), sentence("k", 170),
	}
	text := strings.Join(sentences, ". ") + "."

	tests := []struct {
		name    string
		size    int
		overlap int
	}{
		{name: "default", size: 1000, overlap: 200},
		{name: "small chunks", size: 400, overlap: 50},
		{name: "no overlap", size: 500, overlap: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunker := rag.NewChunker(tt.size, tt.overlap)
			chunks := chunker.Split(text)
			require.NotEmpty(t, chunks)

			// Every sentence is covered.
			joined := strings.Join(chunks, " ")
			for _, s := range sentences {
				assert.Contains(t, joined, s)
			}

			for i, c := range chunks {
				assert.NotEmpty(t, strings.TrimSpace(c))
				assert.LessOrEqual(t, utf8.RuneCountInString(c), tt.size+tt.overlap, "chunk %d", i)
				if i == 0 || tt.overlap == 0 {
					continue
				}
				prev := []rune(chunks[i-1])
				n := tt.overlap
				if len(prev) < n {
					n = len(prev)
				}
				tail := strings.TrimSpace(string(prev[len(prev)-n:]))
				assert.True(t, strings.HasPrefix(c, tail), "chunk %d must start with the tail of chunk %d", i, i-1)
			}
		})
	}
}

func TestSplitBoundWithoutOverlap(t *testing.T) {
	text := strings.Repeat(sentence("m", 95)+". ", 40)
	for _, c := range rag.NewChunker(300, 0).Split(text) {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 300)
	}
}

func TestSplitCountsJoiningSpace(t *testing.T) {
	chunker := rag.NewChunker(10, 0)

	assert.Equal(t, []string{"aaaa bbbbb"}, chunker.Split("aaaa. bbbbb."))
	assert.Equal(t, []string{"aaaa", "bbbbbb"}, chunker.Split("aaaa. bbbbbb."))
}

func TestSplitOverlapTailIsNotRechecked(t *testing.T) {
	first, second := sentence("a", 500), sentence("b", 900)

	chunks := rag.NewChunker(1000, 200).Split(first + ". " + second + ".")

	require.Len(t, chunks, 2)
	assert.Equal(t, first, chunks[0])
	tail := string([]rune(first)[300:])
	assert.Equal(t, tail+" "+second, chunks[1])
	assert.Equal(t, 1101, utf8.RuneCountInString(chunks[1]))
}

func TestSplitOversizedSentence(t *testing.T) {
	long := sentence("x", 1500)
	text := "Corta. " + long + ". Otra corta."

	chunks := rag.NewChunker(1000, 0).Split(text)

	require.Len(t, chunks, 3)
	assert.Equal(t, "Corta", chunks[0])
	assert.Equal(t, long, chunks[1])
	assert.Equal(t, "Otra corta", chunks[2])
}

func TestSplitCountsCharactersNotBytes(t *testing.T) {
	// 10 two-byte characters per sentence.
	s := strings.Repeat("á", 10)
	text := strings.Repeat(s+". ", 6)

	chunks := rag.NewChunker(32, 0).Split(text)

	require.Len(t, chunks, 2)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c))
		assert.Equal(t, 32, utf8.RuneCountInString(c))
	}
}

func TestSplitEmptyText(t *testing.T) {
	assert.Empty(t, rag.NewChunker(1000, 200).Split("   \n\t "))
}

func TestNewChunkerDefaults(t *testing.T) {
	tests := []struct {
		name        string
		size        int
		overlap     int
		wantSize    int
		wantOverlap int
	}{
		{name: "explicit", size: 500, overlap: 100, wantSize: 500, wantOverlap: 100},
		{name: "zero size", size: 0, overlap: 100, wantSize: rag.DefaultChunkSize, wantOverlap: 100},
		{name: "negative overlap", size: 1000, overlap: -1, wantSize: 1000, wantOverlap: rag.DefaultChunkOverlap},
		{name: "overlap not below size", size: 100, overlap: 100, wantSize: 100, wantOverlap: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := rag.NewChunker(tt.size, tt.overlap)
			assert.Equal(t, tt.wantSize, c.Size())
			assert.Equal(t, tt.wantOverlap, c.Overlap())
		})
	}
}

func TestChunkID(t *testing.T) {
	assert.Equal(t, rag.ChunkID("doc", 1), rag.ChunkID("doc", 1))
	assert.NotEqual(t, rag.ChunkID("doc", 1), rag.ChunkID("doc", 2))
	assert.NotEqual(t, rag.ChunkID("doc", 1), rag.ChunkID("other", 1))
}
