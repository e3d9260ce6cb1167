package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"medicopilot/src/core/rag"
	"medicopilot/src/core/upload"
	"medicopilot/src/log"
)

// multipartOverhead is allowed on top of the file size limit for form fields
// and boundaries.
const multipartOverhead = 1 << 20

type uploadResponse struct {
	DocumentID    string `json:"document_id"`
	Filename      string `json:"filename"`
	ChunksCreated int    `json:"chunks_created"`
	Message       string `json:"message"`
}

type asyncUploadResponse struct {
	JobID    int64  `json:"job_id,string"`
	Status   string `json:"status"`
	Filename string `json:"filename"`
	Message  string `json:"message"`
}

type chunksResponse struct {
	DocumentID string      `json:"document_id"`
	Chunks     []rag.Chunk `json:"chunks"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func validationError(format string, args ...interface{}) error {
	return rag.Permanent(rag.ErrValidation, "request", fmt.Errorf(format, args...))
}

// Upload accepts a multipart "file" field and ingests it. With async=true the
// file is staged and a job id is returned instead.
func (h *Handler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.uploads.MaxBytes()+multipartOverhead)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			sendError(c, rag.Permanent(rag.ErrValidation, "upload", fmt.Errorf(
				"%w: limit is %d bytes", upload.ErrTooLarge, h.uploads.MaxBytes())))
			return
		}
		sendError(c, validationError("no file uploaded"))
		return
	}
	defer file.Close()

	if err := h.uploads.Validate(header.Filename, header.Size); err != nil {
		sendError(c, err)
		return
	}

	content, err := io.ReadAll(io.LimitReader(file, h.uploads.MaxBytes()+1))
	if err != nil {
		sendError(c, validationError("failed to read upload: %v", err))
		return
	}

	async, _ := strconv.ParseBool(c.DefaultQuery("async", c.PostForm("async")))
	if async {
		h.uploadAsync(c, header.Filename, content)
		return
	}

	ctx := c.Request.Context()
	key, err := h.uploads.Stage(ctx, header.Filename, content)
	if err != nil {
		sendError(c, err)
		return
	}
	result, err := h.uploads.Process(ctx, key, header.Filename)
	if err != nil {
		sendError(c, err)
		return
	}

	log.Info("document uploaded", "document_id", result.DocumentID, "filename", result.Filename, "chunks", result.TotalChunks)
	sendJSON(c, http.StatusOK, uploadResponse{
		DocumentID:    result.DocumentID,
		Filename:      result.Filename,
		ChunksCreated: result.TotalChunks,
		Message:       fmt.Sprintf("Document '%s' processed successfully with %d chunks", result.Filename, result.TotalChunks),
	})
}

func (h *Handler) uploadAsync(c *gin.Context, filename string, content []byte) {
	if h.jobs == nil {
		sendError(c, validationError("async ingestion is not enabled"))
		return
	}

	ctx := c.Request.Context()
	key, err := h.uploads.Stage(ctx, filename, content)
	if err != nil {
		sendError(c, err)
		return
	}

	j, err := h.jobs.EnqueueIngestion(ctx, key, filename)
	if err != nil {
		h.uploads.Discard(ctx, key)
		sendError(c, rag.NewError(rag.ErrStorage, "enqueue", err))
		return
	}

	sendJSON(c, http.StatusAccepted, asyncUploadResponse{
		JobID:    j.ID,
		Status:   string(j.Status),
		Filename: filename,
		Message:  fmt.Sprintf("Document '%s' queued for processing", filename),
	})
}

func (h *Handler) Summary(c *gin.Context) {
	summary, err := h.documents.Summarize(c.Request.Context(), c.Param("id"))
	if err != nil {
		sendError(c, err)
		return
	}
	sendJSON(c, http.StatusOK, summary)
}

func (h *Handler) Chunks(c *gin.Context) {
	id := c.Param("id")
	chunks, err := h.documents.Chunks(c.Request.Context(), id)
	if err != nil {
		sendError(c, err)
		return
	}
	if chunks == nil {
		chunks = []rag.Chunk{}
	}
	sendJSON(c, http.StatusOK, chunksResponse{DocumentID: id, Chunks: chunks})
}

func (h *Handler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.documents.Delete(c.Request.Context(), id); err != nil {
		sendError(c, err)
		return
	}
	sendJSON(c, http.StatusOK, messageResponse{Message: fmt.Sprintf("Document %s deleted successfully", id)})
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.documents.Stats(c.Request.Context())
	if err != nil {
		sendError(c, err)
		return
	}
	sendJSON(c, http.StatusOK, stats)
}
