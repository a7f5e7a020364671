package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/callsight/callsight/src/models"
)

const defaultBatchSummarizeConcurrency = 5

// LLMService is the orchestrator surface the LLM endpoints need.
type LLMService interface {
	Generate(ctx context.Context, req *models.InferenceRequest) (*models.GenerateResult, error)
	SummarizeCall(ctx context.Context, transcription, language string) *models.SummaryResult
	BatchSummarize(ctx context.Context, items []models.BatchSummarizeItem, maxConcurrent int) []*models.SummaryResult
	GetStats(ctx context.Context) map[string]any
	ClearCache(ctx context.Context) error
	HealthCheck(ctx context.Context) map[string]any
}

type LLMHandler struct {
	service LLMService
}

func NewLLMHandler(service LLMService) *LLMHandler {
	return &LLMHandler{service: service}
}

type generateRequest struct {
	Prompt       string  `json:"prompt" binding:"required"`
	SystemPrompt string  `json:"system_prompt"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`
	PreferLocal  *bool   `json:"prefer_local"`
}

func (h *LLMHandler) HandleGenerate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	// prefer_local defaults to true when absent.
	preferLocal := true
	if req.PreferLocal != nil {
		preferLocal = *req.PreferLocal
	}

	result, err := h.service.Generate(c.Request.Context(), &models.InferenceRequest{
		Prompt:       req.Prompt,
		SystemPrompt: req.SystemPrompt,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
		PreferLocal:  preferLocal,
	})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, result)
		return
	}

	c.JSON(http.StatusOK, result)
}

type summarizeRequest struct {
	Transcription string `json:"transcription" binding:"required"`
	Language      string `json:"language"`
}

func (h *LLMHandler) HandleSummarize(c *gin.Context) {
	var req summarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	language := req.Language
	if language == "" {
		language = "hebrew"
	}

	result := h.service.SummarizeCall(c.Request.Context(), req.Transcription, language)
	c.JSON(http.StatusOK, result)
}

type batchSummarizeRequest struct {
	Items         []models.BatchSummarizeItem `json:"items" binding:"required,min=1"`
	MaxConcurrent int                         `json:"max_concurrent"`
}

func (h *LLMHandler) HandleBatchSummarize(c *gin.Context) {
	var req batchSummarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	maxConcurrent := req.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultBatchSummarizeConcurrency
	}

	results := h.service.BatchSummarize(c.Request.Context(), req.Items, maxConcurrent)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"total":   len(results),
		"results": results,
	})
}

func (h *LLMHandler) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.GetStats(c.Request.Context()))
}

func (h *LLMHandler) HandleCacheClear(c *gin.Context) {
	if err := h.service.ClearCache(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *LLMHandler) HandleHealth(c *gin.Context) {
	health := h.service.HealthCheck(c.Request.Context())
	status := http.StatusOK
	if health["status"] == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, health)
}
