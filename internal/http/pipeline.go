package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"safeheads/internal/resolver"
)

// PipelineHandler serves the in-memory state of the plate pipeline.
type PipelineHandler struct {
	resolver *resolver.Resolver
	log      zerolog.Logger
}

func NewPipelineHandler(res *resolver.Resolver, log zerolog.Logger) *PipelineHandler {
	return &PipelineHandler{
		resolver: res,
		log:      log,
	}
}

func (h *PipelineHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/pipeline")
	{
		group.GET("/records", h.records)
		group.GET("/stats", h.stats)
	}
}

func (h *PipelineHandler) records(c *gin.Context) {
	records := h.resolver.Records()

	limit := len(records)
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed >= 0 && parsed < limit {
			limit = parsed
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"total":   len(records),
		"records": records[len(records)-limit:],
	})
}

func (h *PipelineHandler) stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"processed_artifacts": h.resolver.ProcessedCount(),
		"distinct_plates":     h.resolver.SeenPlates(),
		"records_in_memory":   len(h.resolver.Records()),
	})
}
