package inference

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/callsight/callsight/src/config"
	"github.com/callsight/callsight/src/models"
	"github.com/callsight/callsight/src/utils"
)

// Hebrew generation needs a much larger raw-token budget than English for
// the same amount of content, and Hebrew-tuned models run slower.
const (
	hebrewTokenMultiplier = 5
	hebrewTokenCap        = 2048
	hebrewTimeoutFactor   = 2
)

type modelCandidate struct {
	model   string
	timeout time.Duration
}

// OllamaEngine runs inference against a local Ollama server through
// langchaingo. It is the primary backend for Hebrew traffic.
type OllamaEngine struct {
	config     *config.OllamaConfig
	llm        *ollama.LLM
	workerPool chan struct{}
}

func NewOllamaEngine(cfg *config.OllamaConfig) (*OllamaEngine, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama model is empty in config")
	}

	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}

	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	return &OllamaEngine{
		config:     cfg,
		llm:        llm,
		workerPool: make(chan struct{}, maxConcurrent),
	}, nil
}

func (e *OllamaEngine) Name() string { return "ollama" }

func (e *OllamaEngine) Generate(ctx context.Context, req *models.InferenceRequest) (*models.InferenceResponse, error) {
	select {
	case e.workerPool <- struct{}{}:
		defer func() { <-e.workerPool }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	start := time.Now()
	hebrew := req.HasHebrew()
	options := e.buildOptions(req, hebrew)
	messages := buildMessages(req)

	var lastErr error
	for _, candidate := range e.candidates(hebrew) {
		// The caller's deadline wins when set; the per-candidate timeout
		// only guards direct calls without one.
		callCtx := ctx
		cancel := context.CancelFunc(func() {})
		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			callCtx, cancel = context.WithTimeout(ctx, candidate.timeout)
		}
		resp, err := e.llm.GenerateContent(callCtx, messages,
			append(options, llms.WithModel(candidate.model))...)
		cancel()

		if err != nil {
			if isModelNotFound(err) {
				// The Hebrew-tuned model may not be pulled on this host;
				// the default model is the next candidate.
				lastErr = err
				continue
			}
			return nil, classifyBackendError(e.Name(), err)
		}
		if len(resp.Choices) == 0 {
			return nil, &models.BackendCallError{Backend: e.Name(), Message: "empty response"}
		}

		content := CleanResponse(resp.Choices[0].Content, expectedLanguage(hebrew))

		return &models.InferenceResponse{
			Content:        content,
			Model:          candidate.model,
			TokensUsed:     utils.EstimateTokenCount(req.Prompt) + utils.EstimateTokenCount(content),
			ProcessingTime: time.Since(start),
			Timestamp:      time.Now(),
			Metadata:       map[string]any{"hebrew": hebrew},
		}, nil
	}

	return nil, &models.BackendUnavailableError{Backend: e.Name(), Err: lastErr}
}

// candidates returns the ordered (model, timeout) attempts for a request.
// Hebrew requests try the Hebrew-tuned model first with a longer timeout.
func (e *OllamaEngine) candidates(hebrew bool) []modelCandidate {
	if hebrew && e.config.HebrewModel != "" {
		return []modelCandidate{
			{model: e.config.HebrewModel, timeout: e.config.Timeout * hebrewTimeoutFactor},
			{model: e.config.Model, timeout: e.config.Timeout},
		}
	}
	return []modelCandidate{{model: e.config.Model, timeout: e.config.Timeout}}
}

func (e *OllamaEngine) buildOptions(req *models.InferenceRequest, hebrew bool) []llms.CallOption {
	temperature := e.config.Temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}
	maxTokens := e.config.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	topP := 0.9
	repeatPenalty := 1.2
	stopWords := []string{"<|eot_id|>", "</s>", "Human:", "User:"}

	if hebrew {
		// Aggressive sampling constraints make Hebrew models loop; relax
		// them and budget raw tokens for the denser script.
		if temperature < 0.8 {
			temperature = 0.8
		}
		topP = 0.95
		repeatPenalty = 1.1
		stopWords = []string{"<|eot_id|>"}
		maxTokens *= hebrewTokenMultiplier
		if maxTokens > hebrewTokenCap {
			maxTokens = hebrewTokenCap
		}
	}

	return []llms.CallOption{
		llms.WithTemperature(temperature),
		llms.WithMaxTokens(maxTokens),
		llms.WithTopP(topP),
		llms.WithRepetitionPenalty(repeatPenalty),
		llms.WithStopWords(stopWords),
	}
}

func (e *OllamaEngine) HealthCheck(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := e.llm.GenerateContent(probeCtx,
		[]llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, "ping")},
		llms.WithMaxTokens(1),
	)
	return err == nil || isModelNotFound(err)
}

func buildMessages(req *models.InferenceRequest) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt))
	}
	return append(messages, llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt))
}

func expectedLanguage(hebrew bool) string {
	if hebrew {
		return "he"
	}
	return "en"
}

func isModelNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "no such model")
}

// classifyBackendError maps transport failures to BackendUnavailableError
// (eligible for fallback) and everything else to BackendCallError.
func classifyBackendError(backend string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.As(err, &netErr) ||
		strings.Contains(err.Error(), "connection refused") {
		return &models.BackendUnavailableError{Backend: backend, Err: err}
	}
	return &models.BackendCallError{Backend: backend, Message: err.Error()}
}
