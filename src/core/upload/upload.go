package upload

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"medicopilot/src/core/extract"
	"medicopilot/src/core/rag"
	"medicopilot/src/log"
)

// DefaultMaxBytes is the largest accepted upload.
const DefaultMaxBytes = 10 << 20

// ErrTooLarge marks uploads above the size limit. It is reported inside a
// rag.ErrValidation error.
var ErrTooLarge = errors.New("file too large")

// Stager holds uploaded bytes between receipt and ingestion. Implemented by a
// local directory and by a MinIO bucket.
type Stager interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Extractor turns file bytes into text.
type Extractor interface {
	Extract(ctx context.Context, filename string, content []byte) (string, error)
}

// Ingester stores the text of one document.
type Ingester interface {
	Ingest(ctx context.Context, rawText, filename string) (*rag.IngestResult, error)
}

// Service validates, stages, extracts and ingests uploads. Staged bytes are
// removed once processing ends, whatever the outcome.
type Service struct {
	stager    Stager
	extractor Extractor
	ingester  Ingester
	maxBytes  int64
}

func NewService(stager Stager, extractor Extractor, ingester Ingester, maxBytes int64) *Service {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Service{stager: stager, extractor: extractor, ingester: ingester, maxBytes: maxBytes}
}

// MaxBytes is the upload size limit.
func (s *Service) MaxBytes() int64 { return s.maxBytes }

// Validate checks the file name and size before anything is read or stored.
func (s *Service) Validate(filename string, size int64) error {
	if strings.TrimSpace(filename) == "" {
		return rag.Permanent(rag.ErrValidation, "upload", fmt.Errorf("filename is required"))
	}
	if !extract.IsSupported(filename) {
		return rag.Permanent(rag.ErrValidation, "upload", fmt.Errorf(
			"unsupported file type %q, allowed: %s",
			filepath.Ext(filename), strings.Join(extract.SupportedExtensions(), ", ")))
	}
	if size <= 0 {
		return rag.Permanent(rag.ErrValidation, "upload", fmt.Errorf("file is empty"))
	}
	if size > s.maxBytes {
		return rag.Permanent(rag.ErrValidation, "upload", fmt.Errorf(
			"%w: %d bytes, limit is %d bytes", ErrTooLarge, size, s.maxBytes))
	}
	return nil
}

// Stage validates and stores an upload and returns its staging key.
func (s *Service) Stage(ctx context.Context, filename string, content []byte) (string, error) {
	if err := s.Validate(filename, int64(len(content))); err != nil {
		return "", err
	}

	key := uuid.New().String() + strings.ToLower(filepath.Ext(filename))
	if err := s.stager.Put(ctx, key, content); err != nil {
		log.Error(err, "failed to stage upload", "filename", filename)
		return "", rag.NewError(rag.ErrStorage, "stage", err)
	}
	return key, nil
}

// Process extracts and ingests a staged upload, then drops the staged bytes.
func (s *Service) Process(ctx context.Context, key, filename string) (*rag.IngestResult, error) {
	defer func() {
		if err := s.stager.Delete(context.WithoutCancel(ctx), key); err != nil {
			log.Error(err, "failed to remove staged upload", "key", key)
		}
	}()

	content, err := s.stager.Get(ctx, key)
	if err != nil {
		return nil, rag.NewError(rag.ErrStorage, "process", fmt.Errorf("failed to load staged upload: %w", err))
	}

	text, err := s.extractor.Extract(ctx, filename, content)
	if err != nil {
		log.Error(err, "failed to extract text", "filename", filename)
		return nil, err
	}

	return s.ingester.Ingest(ctx, text, filename)
}

// Ingest runs Stage and Process in one call.
func (s *Service) Ingest(ctx context.Context, filename string, content []byte) (*rag.IngestResult, error) {
	key, err := s.Stage(ctx, filename, content)
	if err != nil {
		return nil, err
	}
	return s.Process(ctx, key, filename)
}

// Discard drops a staged upload that will not be processed.
func (s *Service) Discard(ctx context.Context, key string) {
	if err := s.stager.Delete(ctx, key); err != nil {
		log.Error(err, "failed to remove staged upload", "key", key)
	}
}
