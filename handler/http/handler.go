package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"medicopilot/src/core/rag"
	"medicopilot/src/core/upload"
	"medicopilot/src/infrastructure/job"
	"medicopilot/src/log"
)

// Uploads validates, stages and ingests uploaded files.
type Uploads interface {
	MaxBytes() int64
	Validate(filename string, size int64) error
	Stage(ctx context.Context, filename string, content []byte) (string, error)
	Process(ctx context.Context, key, filename string) (*rag.IngestResult, error)
	Discard(ctx context.Context, key string)
}

// Documents reads and removes stored documents.
type Documents interface {
	Summarize(ctx context.Context, documentID string) (*rag.DocumentSummary, error)
	Chunks(ctx context.Context, documentID string) ([]rag.Chunk, error)
	Delete(ctx context.Context, documentID string) error
	Stats(ctx context.Context) (*rag.Stats, error)
}

// Answerer answers questions from stored documents.
type Answerer interface {
	Answer(ctx context.Context, question string, maxResults int) *rag.Answer
}

// Jobs queues uploads for background ingestion.
type Jobs interface {
	EnqueueIngestion(ctx context.Context, stagingKey, filename string) (*job.Job, error)
	Get(ctx context.Context, id int64) (*job.Job, error)
}

type readiness interface {
	Ready(ctx context.Context) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Info describes the service on the root endpoint.
type Info struct {
	Name    string
	Version string
}

type Handler struct {
	uploads    Uploads
	documents  Documents
	answerer   Answerer
	store      readiness
	generator  pinger
	jobs       Jobs
	info       Info
	maxResults int
	now        func() time.Time
}

// NewHandler wires the HTTP surface. jobs may be nil, in which case async
// uploads are rejected.
func NewHandler(uploads Uploads, documents Documents, answerer Answerer, store rag.VectorStore, generator rag.Generator, jobs Jobs, info Info) *Handler {
	return &Handler{
		uploads:    uploads,
		documents:  documents,
		answerer:   answerer,
		store:      store,
		generator:  generator,
		jobs:       jobs,
		info:       info,
		maxResults: rag.DefaultMaxResults,
		now:        time.Now,
	}
}

// SetDefaultMaxResults changes the result bound used when a query omits one.
func (h *Handler) SetDefaultMaxResults(n int) {
	if n > 0 {
		h.maxResults = n
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	documents := r.Group("/documents")
	documents.POST("/upload", h.Upload)
	documents.GET("/stats", h.Stats)
	documents.GET("/:id/summary", h.Summary)
	documents.GET("/:id/chunks", h.Chunks)
	documents.DELETE("/:id", h.Delete)

	r.POST("/query", h.Query)
	r.POST("/query/", h.Query)
	r.GET("/query/health", h.QueryHealth)

	r.GET("/jobs/:id", h.GetJob)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Code:    "NOT_FOUND",
			Message: "endpoint " + c.Request.URL.Path + " was not found",
		})
	})
}

// Common error response structure
type ErrorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func sendError(c *gin.Context, err error) {
	var code string
	var status int
	switch {
	case errors.Is(err, upload.ErrTooLarge):
		code = "FILE_TOO_LARGE"
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, rag.ErrValidation):
		code = "VALIDATION_ERROR"
		status = http.StatusBadRequest
	case errors.Is(err, rag.ErrExtraction):
		code = "EXTRACTION_ERROR"
		status = http.StatusUnprocessableEntity
	case errors.Is(err, job.ErrJobNotFound):
		code = "NOT_FOUND"
		status = http.StatusNotFound
	case rag.Classify(err) == rag.OutcomeRetryable:
		code = "SERVICE_UNAVAILABLE"
		status = http.StatusServiceUnavailable
	case errors.Is(err, rag.ErrEmbedding), errors.Is(err, rag.ErrGeneration):
		code = "UPSTREAM_ERROR"
		status = http.StatusBadGateway
	case errors.Is(err, rag.ErrStorage):
		code = "STORAGE_ERROR"
		status = http.StatusInternalServerError
	default:
		code = "INTERNAL_ERROR"
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError {
		log.Error(err, "request failed", "method", c.Request.Method, "path", c.FullPath(), "status", status)
	}

	c.JSON(status, ErrorResponse{
		Code:    code,
		Message: err.Error(),
	})
}

func sendJSON(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}
