package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

type healthResponse struct {
	Status         string    `json:"status"`
	VectorDBStatus string    `json:"vectordb_status"`
	LLMStatus      string    `json:"llm_status"`
	APIStatus      string    `json:"api_status"`
	Timestamp      time.Time `json:"timestamp"`
}

// Root describes the service and its main endpoints.
func (h *Handler) Root(c *gin.Context) {
	sendJSON(c, http.StatusOK, gin.H{
		"name":        h.info.Name,
		"version":     h.info.Version,
		"description": "Asistente médico de nueva generación con RAG",
		"endpoints": gin.H{
			"health": "/health",
			"upload": "/documents/upload",
			"query":  "/query",
			"stats":  "/documents/stats",
			"jobs":   "/jobs/:id",
		},
	})
}

// Health is healthy only when both the vector store and the generator respond.
func (h *Handler) Health(c *gin.Context) {
	llm, store := h.probe(c.Request.Context())
	sendJSON(c, http.StatusOK, healthResponse{
		Status:         overall(llm, store),
		VectorDBStatus: store,
		LLMStatus:      llm,
		APIStatus:      "ok",
		Timestamp:      h.now(),
	})
}

func (h *Handler) GetJob(c *gin.Context) {
	if h.jobs == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Code: "NOT_FOUND", Message: "async ingestion is not enabled"})
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		sendError(c, validationError("invalid job id %q", c.Param("id")))
		return
	}

	j, err := h.jobs.Get(c.Request.Context(), id)
	if err != nil {
		sendError(c, err)
		return
	}
	sendJSON(c, http.StatusOK, j)
}
