package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/callsight/callsight/src/models"
)

type VectorHandler struct {
	store models.VectorStore
}

func NewVectorHandler(store models.VectorStore) *VectorHandler {
	return &VectorHandler{store: store}
}

func (h *VectorHandler) HandleAdd(c *gin.Context) {
	var record models.CallRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	if err := h.store.Insert(c.Request.Context(), &record); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "call_id": record.CallID})
}

type batchAddRequest struct {
	Records []*models.CallRecord `json:"records" binding:"required,min=1"`
}

func (h *VectorHandler) HandleBatchAdd(c *gin.Context) {
	var req batchAddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	result := h.store.BatchInsert(c.Request.Context(), req.Records)
	c.JSON(http.StatusOK, result)
}

func (h *VectorHandler) HandleSearch(c *gin.Context) {
	var params models.SearchParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	hits, err := h.store.SemanticSearch(c.Request.Context(), params)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"query":   params.Query,
		"total":   len(hits),
		"results": hits,
	})
}

func (h *VectorHandler) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.GetStats(c.Request.Context()))
}
