package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"medicopilot/src/core/rag"
	"medicopilot/src/log"
)

// healthProbeTimeout bounds each dependency probe.
const healthProbeTimeout = 10 * time.Second

type queryRequest struct {
	Question   string `json:"question"`
	MaxResults *int   `json:"max_results"`
}

type queryResponse struct {
	*rag.Answer
	Timestamp time.Time `json:"timestamp"`
}

type queryHealthResponse struct {
	Status                string    `json:"status"`
	LLMConnection         string    `json:"llm_connection"`
	VectorstoreConnection string    `json:"vectorstore_connection"`
	Timestamp             time.Time `json:"timestamp"`
}

// Query answers a question. A missing max_results uses the default bound; an
// explicit non-positive one is rejected.
func (h *Handler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, validationError("invalid request body: %v", err))
		return
	}

	maxResults := h.maxResults
	if req.MaxResults != nil {
		maxResults = *req.MaxResults
	}
	if err := rag.ValidateQuestion(req.Question, maxResults); err != nil {
		sendError(c, err)
		return
	}

	answer := h.answerer.Answer(c.Request.Context(), req.Question, maxResults)
	log.Debug("query answered", "sources", len(answer.Sources), "max_results", maxResults)

	sendJSON(c, http.StatusOK, queryResponse{Answer: answer, Timestamp: h.now()})
}

// QueryHealth probes the generator and the vector store.
func (h *Handler) QueryHealth(c *gin.Context) {
	llm, store := h.probe(c.Request.Context())
	sendJSON(c, http.StatusOK, queryHealthResponse{
		Status:                overall(llm, store),
		LLMConnection:         llm,
		VectorstoreConnection: store,
		Timestamp:             h.now(),
	})
}

// probe returns "ok" or "error" for the generator and the store.
func (h *Handler) probe(ctx context.Context) (llm, store string) {
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	llm, store = "ok", "ok"
	if h.generator == nil {
		llm = "error"
	} else if err := h.generator.Ping(ctx); err != nil {
		log.Error(err, "generator health check failed")
		llm = "error"
	}
	if h.store == nil {
		store = "error"
	} else if err := h.store.Ready(ctx); err != nil {
		log.Error(err, "vector store health check failed")
		store = "error"
	}
	return llm, store
}

func overall(statuses ...string) string {
	for _, s := range statuses {
		if s != "ok" {
			return "unhealthy"
		}
	}
	return "healthy"
}
