package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"medicopilot/src/core/rag"
)

const (
	DefaultIndex = "document-chunks"

	maxDocumentChunks = 10000
	minCandidates     = 100
)

// Store is a rag.VectorStore backed by an Elasticsearch dense_vector index.
// The index is created on first write with the dimension of the first vector.
type Store struct {
	es    *elasticsearch.Client
	index string

	mu         sync.Mutex
	indexReady bool
}

var _ rag.VectorStore = (*Store)(nil)

func NewClient(addresses []string) (*elasticsearch.Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: addresses})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return es, nil
}

func NewStore(es *elasticsearch.Client, index string) *Store {
	if index == "" {
		index = DefaultIndex
	}
	return &Store{es: es, index: index}
}

type document struct {
	Content    string    `json:"content"`
	DocumentID string    `json:"document_id"`
	Filename   string    `json:"filename"`
	ChunkIndex int       `json:"chunk_index"`
	Metadata   string    `json:"metadata"`
	Vector     []float32 `json:"vector,omitempty"`
}

func indexMapping(dims int) map[string]interface{} {
	return map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"content":     map[string]interface{}{"type": "text"},
				"document_id": map[string]interface{}{"type": "keyword"},
				"filename":    map[string]interface{}{"type": "keyword"},
				"chunk_index": map[string]interface{}{"type": "integer"},
				"metadata":    map[string]interface{}{"type": "text", "index": false},
				"vector": map[string]interface{}{
					"type":       "dense_vector",
					"dims":       dims,
					"index":      true,
					"similarity": "cosine",
				},
			},
		},
	}
}

func (s *Store) ensureIndex(ctx context.Context, dims int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexReady {
		return nil
	}

	exists, err := s.indexExists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		body, err := json.Marshal(indexMapping(dims))
		if err != nil {
			return fmt.Errorf("failed to encode index mapping: %w", err)
		}
		res, err := s.es.Indices.Create(s.index,
			s.es.Indices.Create.WithBody(bytes.NewReader(body)),
			s.es.Indices.Create.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("failed to create index %s: %w", s.index, err)
		}
		defer res.Body.Close()
		if res.IsError() && !alreadyExists(res) {
			return fmt.Errorf("failed to create index %s: %s", s.index, res.String())
		}
	}

	s.indexReady = true
	return nil
}

func (s *Store) indexExists(ctx context.Context) (bool, error) {
	res, err := s.es.Indices.Exists([]string{s.index}, s.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("failed to check index %s: %w", s.index, err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("failed to check index %s: %s", s.index, res.String())
	}
}

func (s *Store) Add(ctx context.Context, chunks []rag.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := s.ensureIndex(ctx, len(chunks[0].Vector)); err != nil {
		return err
	}

	body, err := bulkBody(chunks)
	if err != nil {
		return err
	}

	res, err := s.es.Bulk(bytes.NewReader(body),
		s.es.Bulk.WithIndex(s.index),
		s.es.Bulk.WithRefresh("true"),
		s.es.Bulk.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to bulk index chunks: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("failed to bulk index chunks: %s", res.String())
	}

	var out bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	return out.err()
}

func (s *Store) SearchSimilar(ctx context.Context, vector []float32, limit int) ([]rag.ScoredChunk, error) {
	if limit <= 0 {
		return []rag.ScoredChunk{}, nil
	}

	hits, err := s.search(ctx, knnQuery(vector, limit))
	if err != nil {
		return nil, err
	}

	out := make([]rag.ScoredChunk, 0, len(hits))
	for _, h := range hits {
		c, err := h.chunk()
		if err != nil {
			return nil, err
		}
		out = append(out, rag.ScoredChunk{Chunk: c, Distance: scoreToDistance(h.Score)})
	}
	return out, nil
}

func (s *Store) GetByDocument(ctx context.Context, documentID string) ([]rag.Chunk, error) {
	hits, err := s.search(ctx, documentQuery(documentID))
	if err != nil {
		return nil, err
	}

	out := make([]rag.Chunk, 0, len(hits))
	for _, h := range hits {
		c, err := h.chunk()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Store) DeleteByDocument(ctx context.Context, documentID string) error {
	body, err := json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{"term": map[string]interface{}{"document_id": documentID}},
	})
	if err != nil {
		return err
	}

	res, err := s.es.DeleteByQuery([]string{s.index}, bytes.NewReader(body),
		s.es.DeleteByQuery.WithRefresh(true),
		s.es.DeleteByQuery.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to delete chunks of %s: %w", documentID, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	if res.IsError() {
		return fmt.Errorf("failed to delete chunks of %s: %s", documentID, res.String())
	}
	return nil
}

func (s *Store) Stats(ctx context.Context) (rag.Stats, error) {
	res, err := s.es.Count(s.es.Count.WithIndex(s.index), s.es.Count.WithContext(ctx))
	if err != nil {
		return rag.Stats{}, fmt.Errorf("failed to count chunks: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return rag.Stats{}, nil
	}
	if res.IsError() {
		return rag.Stats{}, fmt.Errorf("failed to count chunks: %s", res.String())
	}

	var out struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return rag.Stats{}, fmt.Errorf("failed to decode count response: %w", err)
	}
	return rag.Stats{TotalChunks: out.Count}, nil
}

func (s *Store) Ready(ctx context.Context) error {
	res, err := s.es.Ping(s.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to ping elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch is not ready: %s", res.Status())
	}
	return nil
}

func (s *Store) search(ctx context.Context, query map[string]interface{}) ([]searchHit, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to encode search: %w", err)
	}

	res, err := s.es.Search(
		s.es.Search.WithIndex(s.index),
		s.es.Search.WithBody(bytes.NewReader(body)),
		s.es.Search.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer res.Body.Close()

	// Nothing has been written yet.
	if res.StatusCode == http.StatusNotFound {
		return []searchHit{}, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("failed to search chunks: %s", res.String())
	}
	return decodeHits(res.Body)
}

func bulkBody(chunks []rag.Chunk) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, c := range chunks {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode metadata of chunk %s: %w", c.ID, err)
		}
		action := map[string]interface{}{"index": map[string]interface{}{"_id": c.ID}}
		if err := enc.Encode(action); err != nil {
			return nil, err
		}
		if err := enc.Encode(document{
			Content:    c.Content,
			DocumentID: c.DocumentID,
			Filename:   c.Filename,
			ChunkIndex: c.Index,
			Metadata:   string(meta),
			Vector:     c.Vector,
		}); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

var sourceFields = []string{"content", "document_id", "filename", "chunk_index", "metadata"}

func knnQuery(vector []float32, limit int) map[string]interface{} {
	candidates := limit * 10
	if candidates < minCandidates {
		candidates = minCandidates
	}
	return map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   vector,
			"k":              limit,
			"num_candidates": candidates,
		},
		"size":    limit,
		"_source": sourceFields,
	}
}

func documentQuery(documentID string) map[string]interface{} {
	return map[string]interface{}{
		"query":   map[string]interface{}{"term": map[string]interface{}{"document_id": documentID}},
		"size":    maxDocumentChunks,
		"_source": sourceFields,
		"sort":    []interface{}{map[string]interface{}{"chunk_index": "asc"}},
	}
}

// scoreToDistance inverts the cosine score Elasticsearch reports, (1+cos)/2,
// into the cosine distance 1-cos.
func scoreToDistance(score float64) float64 {
	return 2 * (1 - score)
}

type searchHit struct {
	ID     string   `json:"_id"`
	Score  float64  `json:"_score"`
	Source document `json:"_source"`
}

func (h searchHit) chunk() (rag.Chunk, error) {
	c := rag.Chunk{
		ID:         h.ID,
		DocumentID: h.Source.DocumentID,
		Filename:   h.Source.Filename,
		Index:      h.Source.ChunkIndex,
		Content:    h.Source.Content,
	}
	if h.Source.Metadata != "" {
		if err := json.Unmarshal([]byte(h.Source.Metadata), &c.Metadata); err != nil {
			return rag.Chunk{}, fmt.Errorf("document %s: invalid metadata: %w", h.ID, err)
		}
	}
	if err := c.Validate(); err != nil {
		return rag.Chunk{}, err
	}
	return c, nil
}

func decodeHits(r io.Reader) ([]searchHit, error) {
	var out struct {
		Hits struct {
			Hits []searchHit `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	if out.Hits.Hits == nil {
		return []searchHit{}, nil
	}
	return out.Hits.Hits, nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// err reports the first rejected item. A partial failure fails the batch.
func (b bulkResponse) err() error {
	if !b.Errors {
		return nil
	}
	failed := 0
	var first string
	for _, item := range b.Items {
		for _, result := range item {
			if result.Error == nil {
				continue
			}
			if failed == 0 {
				first = fmt.Sprintf("%s: %s: %s", result.ID, result.Error.Type, result.Error.Reason)
			}
			failed++
		}
	}
	return fmt.Errorf("bulk rejected %d chunks, first: %s", failed, first)
}

func alreadyExists(res *esapi.Response) bool {
	if res.StatusCode != http.StatusBadRequest {
		return false
	}
	var out struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return false
	}
	return out.Error.Type == "resource_already_exists_exception"
}
