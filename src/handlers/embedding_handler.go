package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/callsight/callsight/src/models"
)

// The API layer rejects embedding batches above this size before any
// backend work starts.
const maxEmbeddingBatchSize = 100

// EmbeddingService is the embedding client surface the endpoints need.
type EmbeddingService interface {
	Embed(ctx context.Context, text string, preprocess bool) (*models.EmbeddingResult, error)
	EmbedBatch(ctx context.Context, texts []string, preprocess bool) ([]*models.EmbeddingResult, error)
	SearchSimilar(ctx context.Context, query string, k int, threshold float64) ([]models.IndexHit, error)
	HealthCheck(ctx context.Context) bool
	GetStats() map[string]any
}

type EmbeddingHandler struct {
	service EmbeddingService
}

func NewEmbeddingHandler(service EmbeddingService) *EmbeddingHandler {
	return &EmbeddingHandler{service: service}
}

type embedRequest struct {
	Text       string `json:"text" binding:"required"`
	Preprocess *bool  `json:"preprocess"`
}

func (h *EmbeddingHandler) HandleGenerate(c *gin.Context) {
	var req embedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	preprocess := true
	if req.Preprocess != nil {
		preprocess = *req.Preprocess
	}

	result, err := h.service.Embed(c.Request.Context(), req.Text, preprocess)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

type embedBatchRequest struct {
	Texts      []string `json:"texts" binding:"required,min=1"`
	Preprocess *bool    `json:"preprocess"`
}

func (h *EmbeddingHandler) HandleBatch(c *gin.Context) {
	var req embedBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	if len(req.Texts) > maxEmbeddingBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   models.ErrCapacityExceeded.Error(),
			"max":     maxEmbeddingBatchSize,
		})
		return
	}

	preprocess := true
	if req.Preprocess != nil {
		preprocess = *req.Preprocess
	}

	results, err := h.service.EmbedBatch(c.Request.Context(), req.Texts, preprocess)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"total":   len(results),
		"results": results,
	})
}

type similarityRequest struct {
	Query     string  `json:"query" binding:"required"`
	K         int     `json:"k"`
	Threshold float64 `json:"threshold"`
}

func (h *EmbeddingHandler) HandleSearch(c *gin.Context) {
	var req similarityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	k := req.K
	if k <= 0 {
		k = 10
	}
	threshold := req.Threshold
	if threshold == 0 {
		threshold = 0.5
	}

	hits, err := h.service.SearchSimilar(c.Request.Context(), req.Query, k, threshold)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"total":   len(hits),
		"results": hits,
	})
}

func (h *EmbeddingHandler) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.GetStats())
}
