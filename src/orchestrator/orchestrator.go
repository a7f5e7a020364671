package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/callsight/callsight/src/config"
	"github.com/callsight/callsight/src/models"
)

// Responses under this threshold count as fast in the latency buckets.
const fastResponseThreshold = 5 * time.Second

const fallbackSummaryChars = 200

// Orchestrator routes inference requests between the local and remote
// backends, applies complexity-adaptive timeouts, and falls back to the
// secondary backend only after the primary has failed.
type Orchestrator struct {
	config        *config.OrchestratorConfig
	local         models.LLMBackend
	remote        models.LLMBackend
	cache         models.InferenceCache
	localModel    string
	hebrewModel   string
	remoteModel   string
	localTimeout  time.Duration
	remoteTimeout time.Duration

	mu    sync.Mutex
	stats orchestratorStats
}

type orchestratorStats struct {
	totalRequests  int64
	backendCounts  map[string]int64
	fallbacks      int64
	fastResponses  int64
	slowResponses  int64
	totalErrors    int64
	cacheHits      int64
}

// NewOrchestrator wires the backends together. remote and cache may be nil
// when disabled in config.
func NewOrchestrator(cfg *config.Config, local, remote models.LLMBackend, cache models.InferenceCache) *Orchestrator {
	return &Orchestrator{
		config:        &cfg.Orchestrator,
		local:         local,
		remote:        remote,
		cache:         cache,
		localModel:    cfg.Ollama.Model,
		hebrewModel:   cfg.Ollama.HebrewModel,
		remoteModel:   cfg.Remote.Model,
		localTimeout:  cfg.Ollama.Timeout,
		remoteTimeout: cfg.Remote.Timeout,
		stats: orchestratorStats{
			backendCounts: make(map[string]int64),
		},
	}
}

// Generate routes the request to the primary backend with an adaptive
// timeout, then tries the fallback backend once on unavailability. Errors
// accumulate in attempt order.
func (o *Orchestrator) Generate(ctx context.Context, req *models.InferenceRequest) (*models.GenerateResult, error) {
	start := time.Now()

	o.mu.Lock()
	o.stats.totalRequests++
	o.mu.Unlock()

	primary, fallback := o.route(req)
	primaryModel := o.backendModel(req, primary)

	if cached := o.cacheGet(ctx, req, primaryModel); cached != nil {
		return &models.GenerateResult{
			Success:        true,
			Content:        cached.Content,
			Service:        primary.Name(),
			Model:          cached.Model,
			TokensUsed:     cached.TokensUsed,
			ProcessingTime: time.Since(start),
			Metadata:       map[string]any{"cache_hit": true},
		}, nil
	}

	tier := estimateComplexity(req.Prompt)
	base := o.localTimeout
	if o.remote != nil && primary == o.remote {
		base = o.remoteTimeout
	}
	timeout := time.Duration(float64(base) * timeoutMultiplier(tier))

	var attemptErrors []string

	primaryCtx, cancel := context.WithTimeout(ctx, timeout)
	resp, err := primary.Generate(primaryCtx, req)
	cancel()

	if err == nil {
		o.recordSuccess(primary.Name(), time.Since(start))
		o.cacheSet(ctx, req, primaryModel, resp)
		return o.buildResult(resp, primary.Name(), start, false), nil
	}

	attemptErrors = append(attemptErrors, fmt.Sprintf("%s: %v", primary.Name(), err))

	if fallback != nil && o.config.FallbackEnabled && ctx.Err() == nil {
		if models.IsUnavailable(err) {
			log.Printf("primary backend %s unavailable, falling back to %s", primary.Name(), fallback.Name())
		} else {
			log.Printf("primary backend %s failed, falling back to %s", primary.Name(), fallback.Name())
		}

		o.mu.Lock()
		o.stats.fallbacks++
		o.mu.Unlock()

		// The fallback backend enforces its own fixed, shorter timeout.
		fbResp, fbErr := fallback.Generate(ctx, req)
		if fbErr == nil {
			o.recordSuccess(fallback.Name(), time.Since(start))
			o.cacheSet(ctx, req, o.backendModel(req, fallback), fbResp)
			return o.buildResult(fbResp, fallback.Name(), start, true), nil
		}
		attemptErrors = append(attemptErrors, fmt.Sprintf("%s: %v", fallback.Name(), fbErr))
	}

	o.mu.Lock()
	o.stats.totalErrors++
	o.mu.Unlock()

	return &models.GenerateResult{
		Success:        false,
		ProcessingTime: time.Since(start),
		Errors:         attemptErrors,
	}, fmt.Errorf("all backends failed: %v", attemptErrors)
}

// route picks the primary backend and the fallback. Hebrew traffic stays
// local because the Hebrew-tuned model only exists there; English traffic
// defaults to local too, unless the caller opts out with prefer_local=false.
func (o *Orchestrator) route(req *models.InferenceRequest) (primary, fallback models.LLMBackend) {
	if req.HasHebrew() && o.config.HebrewRouting {
		return o.local, o.remote
	}
	if !req.PreferLocal && o.remote != nil {
		return o.remote, o.local
	}
	return o.local, o.remote
}

func (o *Orchestrator) buildResult(resp *models.InferenceResponse, service string, start time.Time, usedFallback bool) *models.GenerateResult {
	metadata := resp.Metadata
	if usedFallback {
		if metadata == nil {
			metadata = make(map[string]any)
		}
		metadata["fallback"] = true
	}
	return &models.GenerateResult{
		Success:        true,
		Content:        resp.Content,
		Service:        service,
		Model:          resp.Model,
		TokensUsed:     resp.TokensUsed,
		ProcessingTime: time.Since(start),
		Metadata:       metadata,
	}
}

// SummarizeCall produces a structured summary of a call transcription. It
// never returns an error: when every backend or the parser fails, the
// result carries a deterministic fallback summary with Success=false.
func (o *Orchestrator) SummarizeCall(ctx context.Context, transcription, language string) *models.SummaryResult {
	start := time.Now()

	systemPrompt, userPrompt := buildSummaryPrompts(transcription, language)

	result, err := o.Generate(ctx, &models.InferenceRequest{
		Prompt:       userPrompt,
		SystemPrompt: systemPrompt,
		Temperature:  0.3,
	})
	if err != nil {
		return &models.SummaryResult{
			Success:         false,
			FallbackSummary: fallbackSummary(transcription),
			Error:           err.Error(),
			ProcessingTime:  time.Since(start),
		}
	}

	summary, parseErr := parseSummary(result.Content)
	if parseErr != nil {
		log.Printf("summary parse failed on %s output: %v", result.Service, parseErr)
		return &models.SummaryResult{
			Success:         false,
			FallbackSummary: fallbackSummary(transcription),
			Service:         result.Service,
			Error:           parseErr.Error(),
			ProcessingTime:  time.Since(start),
		}
	}

	return &models.SummaryResult{
		Success:        true,
		Summary:        summary,
		Service:        result.Service,
		ProcessingTime: time.Since(start),
		Metadata:       result.Metadata,
	}
}

// BatchSummarize fans items out under a counting semaphore. Individual
// failures are captured per item; the batch itself never aborts.
func (o *Orchestrator) BatchSummarize(ctx context.Context, items []models.BatchSummarizeItem, maxConcurrent int) []*models.SummaryResult {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	results := make([]*models.SummaryResult, len(items))
	semaphore := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		go func(index int, item models.BatchSummarizeItem) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			result := o.SummarizeCall(ctx, item.Text, item.Language)
			result.Index = index
			results[index] = result
		}(i, item)
	}

	wg.Wait()
	return results
}

// GetStats snapshots the counters with derived percentages.
func (o *Orchestrator) GetStats(ctx context.Context) map[string]any {
	o.mu.Lock()
	defer o.mu.Unlock()

	total := o.stats.totalRequests
	completed := o.stats.fastResponses + o.stats.slowResponses

	percent := func(n int64) float64 {
		if completed == 0 {
			return 0
		}
		return float64(n) / float64(completed) * 100
	}

	backends := make(map[string]int64, len(o.stats.backendCounts))
	for name, count := range o.stats.backendCounts {
		backends[name] = count
	}

	stats := map[string]any{
		"total_requests": total,
		"backends":       backends,
		"fallbacks":      o.stats.fallbacks,
		"fast_responses": o.stats.fastResponses,
		"slow_responses": o.stats.slowResponses,
		"fast_percent":   percent(o.stats.fastResponses),
		"slow_percent":   percent(o.stats.slowResponses),
		"total_errors":   o.stats.totalErrors,
		"cache_hits":     o.stats.cacheHits,
	}

	if o.cache != nil {
		stats["cache"] = o.cache.Stats(ctx)
	}
	return stats
}

// ClearCache drops every cached inference response. A no-op without a cache.
func (o *Orchestrator) ClearCache(ctx context.Context) error {
	if o.cache == nil {
		return nil
	}
	return o.cache.Clear(ctx)
}

// HealthCheck probes every configured backend; the service is healthy as
// long as at least one can answer.
func (o *Orchestrator) HealthCheck(ctx context.Context) map[string]any {
	localOK := o.local.HealthCheck(ctx)
	remoteOK := false
	if o.remote != nil {
		remoteOK = o.remote.HealthCheck(ctx)
	}

	status := "unhealthy"
	if localOK || remoteOK {
		status = "healthy"
	}

	return map[string]any{
		"status": status,
		"backends": map[string]bool{
			o.local.Name(): localOK,
			"remote":       remoteOK,
		},
	}
}

func (o *Orchestrator) recordSuccess(backend string, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.stats.backendCounts[backend]++
	if elapsed < fastResponseThreshold {
		o.stats.fastResponses++
	} else {
		o.stats.slowResponses++
	}
}

// backendModel resolves the concrete model id a backend would serve this
// request with. Cache entries key on the model id; keying on the backend
// name would let a model swap in config serve stale answers until the TTL.
func (o *Orchestrator) backendModel(req *models.InferenceRequest, backend models.LLMBackend) string {
	if o.remote != nil && backend == o.remote {
		return o.remoteModel
	}
	if req.HasHebrew() && o.hebrewModel != "" {
		return o.hebrewModel
	}
	return o.localModel
}

func (o *Orchestrator) cacheKey(req *models.InferenceRequest, model string) models.CacheKey {
	key := models.CacheKey{
		Prompt:       req.Prompt,
		SystemPrompt: req.SystemPrompt,
		Model:        model,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
	}
	// Hebrew requests get different sampling parameters inside the engine,
	// so the same prompt can produce a differently shaped answer.
	if req.HasHebrew() {
		key.ContextFlags = append(key.ContextFlags, "hebrew")
	}
	return key
}

func (o *Orchestrator) cacheGet(ctx context.Context, req *models.InferenceRequest, model string) *models.InferenceResponse {
	if o.cache == nil {
		return nil
	}
	cached, err := o.cache.Get(ctx, o.cacheKey(req, model))
	if err != nil {
		log.Printf("cache lookup failed: %v", err)
		return nil
	}
	if cached != nil {
		o.mu.Lock()
		o.stats.cacheHits++
		o.mu.Unlock()
	}
	return cached
}

func (o *Orchestrator) cacheSet(ctx context.Context, req *models.InferenceRequest, model string, resp *models.InferenceResponse) {
	if o.cache == nil {
		return
	}
	if err := o.cache.Set(ctx, o.cacheKey(req, model), resp); err != nil {
		log.Printf("cache store failed: %v", err)
	}
}

// fallbackSummary is the deterministic stand-in used when no backend could
// produce a structured summary. Callers can always render something.
func fallbackSummary(transcription string) *models.CallSummary {
	runes := []rune(transcription)
	summary := transcription
	if len(runes) > fallbackSummaryChars {
		summary = string(runes[:fallbackSummaryChars]) + "..."
	}

	return &models.CallSummary{
		Summary:     summary,
		KeyPoints:   []string{"Call transcription available"},
		Sentiment:   "neutral",
		ActionItems: []string{"Manual review required"},
	}
}

func buildSummaryPrompts(transcription, language string) (systemPrompt, userPrompt string) {
	if language == "he" || language == "hebrew" || models.ContainsHebrew(transcription) {
		systemPrompt = "אתה מנתח שיחות שירות לקוחות של חברת תקשורת. " +
			"החזר אך ורק JSON תקין, ללא טקסט נוסף. כל הערכים חייבים להיות בעברית."
		userPrompt = fmt.Sprintf(`נתח את תמליל השיחה הבא והחזר JSON במבנה:
{"summary": "...", "key_points": ["..."], "sentiment": "positive/negative/neutral", "products_mentioned": ["..."], "main_issue": "...", "call_type": "...", "action_items": ["..."], "customer_satisfaction": "...", "issue_resolved": true/false}

תמליל:
%s`, transcription)
		return systemPrompt, userPrompt
	}

	systemPrompt = "You analyze customer service calls for a telecom provider. " +
		"Respond with valid JSON only, no extra text."
	userPrompt = fmt.Sprintf(`Analyze the following call transcription and return JSON shaped as:
{"summary": "...", "key_points": ["..."], "sentiment": "positive/negative/neutral", "products_mentioned": ["..."], "main_issue": "...", "call_type": "...", "action_items": ["..."], "customer_satisfaction": "...", "issue_resolved": true/false}

Transcription:
%s`, transcription)
	return systemPrompt, userPrompt
}
