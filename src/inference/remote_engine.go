package inference

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/callsight/callsight/src/config"
	"github.com/callsight/callsight/src/models"
	"github.com/callsight/callsight/src/utils"
)

// RemoteEngine calls a hosted OpenAI-compatible chat endpoint. It serves
// English traffic and acts as the fallback when the local backend fails.
type RemoteEngine struct {
	config     *config.RemoteConfig
	client     *openai.Client
	workerPool chan struct{}
}

func NewRemoteEngine(cfg *config.RemoteConfig) (*RemoteEngine, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("remote LLM API key is empty (check REMOTE_LLM_API_KEY environment variable)")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}

	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	return &RemoteEngine{
		config:     cfg,
		client:     openai.NewClientWithConfig(clientConfig),
		workerPool: make(chan struct{}, maxConcurrent),
	}, nil
}

func (e *RemoteEngine) Name() string { return "remote" }

func (e *RemoteEngine) Generate(ctx context.Context, req *models.InferenceRequest) (*models.InferenceResponse, error) {
	select {
	case e.workerPool <- struct{}{}:
		defer func() { <-e.workerPool }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	maxTokens := e.config.MaxTokens
	if req.MaxTokens > 0 && req.MaxTokens < maxTokens {
		maxTokens = req.MaxTokens
	}

	resp, err := e.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:       e.config.Model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   maxTokens,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, &models.BackendCallError{
				Backend: e.Name(),
				Status:  apiErr.HTTPStatusCode,
				Message: apiErr.Message,
			}
		}
		return nil, classifyBackendError(e.Name(), err)
	}
	if len(resp.Choices) == 0 {
		return nil, &models.BackendCallError{Backend: e.Name(), Message: "empty response"}
	}

	content := CleanResponse(resp.Choices[0].Message.Content, expectedLanguage(req.HasHebrew()))

	tokensUsed := resp.Usage.TotalTokens
	if tokensUsed == 0 {
		tokensUsed = utils.EstimateTokenCount(req.Prompt) + utils.EstimateTokenCount(content)
	}

	return &models.InferenceResponse{
		Content:        content,
		Model:          e.config.Model,
		TokensUsed:     tokensUsed,
		ProcessingTime: time.Since(start),
		Timestamp:      time.Now(),
	}, nil
}

func (e *RemoteEngine) HealthCheck(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := e.client.ListModels(probeCtx)
	return err == nil
}
