package rag

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

var sentenceBoundary = regexp.MustCompile(`[.!?]+`)

// chunkNamespace seeds the deterministic chunk ids.
var chunkNamespace = uuid.MustParse("6f1d2c7e-4b1a-4f53-9a3e-2d8c5b7e9f10")

// ChunkID returns the stable id of the chunk at index within a document.
func ChunkID(documentID string, index int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%s/%d", documentID, index))).String()
}

// Chunker splits text into overlapping chunks that never break a sentence.
// Sizes are counted in characters (runes).
type Chunker struct {
	size    int
	overlap int
}

// NewChunker returns a Chunker. Non-positive sizes fall back to the defaults and
// an overlap that is not smaller than the size is reduced to a quarter of it.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= size {
		overlap = size / 4
	}
	return &Chunker{size: size, overlap: overlap}
}

// Size is the target chunk length.
func (c *Chunker) Size() int { return c.size }

// Overlap is the number of trailing characters carried into the next chunk.
func (c *Chunker) Overlap() int { return c.overlap }

// SplitSentences splits text at runs of sentence-terminal punctuation and
// drops blank segments. The punctuation itself is not kept.
func SplitSentences(text string) []string {
	parts := sentenceBoundary.Split(text, -1)
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// Split returns the chunk contents of text in order. A chunk is closed when the
// next sentence plus its joining space would pass the chunk size. The overlap
// tail seeds the next chunk unchecked, so a chunk can exceed the size by up to
// the overlap. A sentence longer than the chunk size is kept whole.
func (c *Chunker) Split(text string) []string {
	var (
		chunks []string
		buf    strings.Builder
		bufLen int
	)

	for _, sentence := range SplitSentences(text) {
		sentenceLen := runeLen(sentence)

		if bufLen > 0 && bufLen+1+sentenceLen > c.size {
			closed := buf.String()
			chunks = append(chunks, strings.TrimSpace(closed))

			tail := overlapTail(closed, c.overlap)
			buf.Reset()
			bufLen = 0
			if tail != "" {
				buf.WriteString(tail)
				bufLen = runeLen(tail)
			}
		}

		if bufLen > 0 {
			buf.WriteByte(' ')
			bufLen++
		}
		buf.WriteString(sentence)
		bufLen += sentenceLen
	}

	if last := strings.TrimSpace(buf.String()); last != "" {
		chunks = append(chunks, last)
	}
	return chunks
}

// overlapTail returns the last n characters of s, or all of s when shorter.
func overlapTail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[len(runes)-n:]))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
