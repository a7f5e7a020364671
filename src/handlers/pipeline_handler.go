package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/callsight/callsight/src/models"
)

// Pipeline batches are heavier than embedding batches (each item fans out
// to several backends), so the cap is lower.
const maxPipelineBatchSize = 50

// PipelineService is the coordinator surface the pipeline endpoints need.
type PipelineService interface {
	ProcessCall(ctx context.Context, record *models.CallRecord) *models.ProcessingResult
	ProcessBatch(ctx context.Context, records []*models.CallRecord) []*models.ProcessingResult
	IntelligentSearch(ctx context.Context, params models.SearchParams) *models.SearchResponse
	HealthCheck(ctx context.Context) map[string]any
	GetStats(ctx context.Context) map[string]any
}

type PipelineHandler struct {
	service PipelineService
}

func NewPipelineHandler(service PipelineService) *PipelineHandler {
	return &PipelineHandler{service: service}
}

func (h *PipelineHandler) HandleProcessCall(c *gin.Context) {
	var record models.CallRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	result := h.service.ProcessCall(c.Request.Context(), &record)
	c.JSON(http.StatusOK, result)
}

type processBatchRequest struct {
	Calls []*models.CallRecord `json:"calls" binding:"required,min=1"`
}

func (h *PipelineHandler) HandleProcessBatch(c *gin.Context) {
	var req processBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	if len(req.Calls) > maxPipelineBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   models.ErrCapacityExceeded.Error(),
			"max":     maxPipelineBatchSize,
		})
		return
	}

	results := h.service.ProcessBatch(c.Request.Context(), req.Calls)

	succeeded := 0
	for _, r := range results {
		if r != nil && r.Success {
			succeeded++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"total":     len(results),
		"succeeded": succeeded,
		"failed":    len(results) - succeeded,
		"results":   results,
	})
}

func (h *PipelineHandler) HandleSearch(c *gin.Context) {
	var params models.SearchParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	response := h.service.IntelligentSearch(c.Request.Context(), params)
	c.JSON(http.StatusOK, response)
}

func (h *PipelineHandler) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.GetStats(c.Request.Context()))
}

func (h *PipelineHandler) HandleHealth(c *gin.Context) {
	health := h.service.HealthCheck(c.Request.Context())
	status := http.StatusOK
	if health["status"] == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, health)
}

// HandleServiceHealth is the top-level liveness probe.
func HandleServiceHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "callsight",
		"timestamp": time.Now(),
	})
}
