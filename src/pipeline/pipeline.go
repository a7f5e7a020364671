package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/callsight/callsight/src/config"
	"github.com/callsight/callsight/src/models"
)

// Product keywords matched against transcriptions. The customer base is
// Hebrew-speaking, so the catalog is Hebrew-first with English aliases.
var productKeywords = map[string][]string{
	"internet":    {"אינטרנט", "internet", "wifi", "וויפיי"},
	"television":  {"טלוויזיה", "television", "tv"},
	"phone":       {"טלפון", "phone"},
	"package":     {"חביל", "package", "bundle"},
	"device":      {"מכשיר", "device"},
	"router":      {"ראוטר", "router"},
	"iphone":      {"אייפון", "iphone"},
	"samsung":     {"סמסונג", "samsung"},
	"computer":    {"מחשב", "computer"},
	"tablet":      {"טאבלט", "tablet"},
	"application": {"אפליקציה", "app"},
}

type pipelineStats struct {
	processed int64
	succeeded int64
	failed    int64
	batches   int64
}

// Pipeline coordinates embedding, summarization, vector persistence and
// product analysis for incoming call transcriptions.
type Pipeline struct {
	config     *config.PipelineConfig
	embedder   models.EmbeddingProvider
	summarizer models.CallSummarizer
	store      models.VectorStore

	mu    sync.Mutex
	stats pipelineStats
}

func NewPipeline(cfg *config.PipelineConfig, embedder models.EmbeddingProvider, summarizer models.CallSummarizer, store models.VectorStore) *Pipeline {
	return &Pipeline{
		config:     cfg,
		embedder:   embedder,
		summarizer: summarizer,
		store:      store,
	}
}

// ProcessCall runs the enabled stages for one call. Embedding and
// summarization run concurrently; vector persistence follows so it can
// carry whatever analysis fields the summary produced. A stage failure is
// recorded and never stops the other stages.
func (p *Pipeline) ProcessCall(ctx context.Context, record *models.CallRecord) *models.ProcessingResult {
	start := time.Now()

	result := &models.ProcessingResult{
		CallID:  record.CallID,
		Results: make(map[string]any),
	}

	var (
		resultMu      sync.Mutex
		wg            sync.WaitGroup
		summaryResult *models.SummaryResult
	)

	addError := func(stage string, err error) {
		resultMu.Lock()
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", stage, err))
		resultMu.Unlock()
	}

	if p.config.EnableEmbeddings {
		wg.Add(1)
		go func() {
			defer wg.Done()

			embedding, err := p.embedder.Embed(ctx, record.TranscriptionText, true)
			if err != nil {
				addError("embedding", err)
				return
			}

			// Make the call findable by the in-process index half of
			// IntelligentSearch. The vector is already cached, so this
			// costs no second backend round-trip.
			if err := p.embedder.AddToIndex(ctx, []string{record.TranscriptionText}, []map[string]any{{
				"callId":     record.CallID,
				"customerId": record.CustomerID,
				"language":   record.Language,
			}}); err != nil {
				addError("index", err)
			}

			resultMu.Lock()
			result.Results["embedding"] = map[string]any{
				"model":       embedding.ModelName,
				"dimension":   len(embedding.Vector),
				"fingerprint": embedding.TextHash,
			}
			resultMu.Unlock()
		}()
	}

	if p.config.EnableLLM {
		wg.Add(1)
		go func() {
			defer wg.Done()

			summary := p.summarizer.SummarizeCall(ctx, record.TranscriptionText, record.Language)
			resultMu.Lock()
			summaryResult = summary
			if summary.Success {
				result.Results["summary"] = summary.Summary
			} else {
				result.Results["summary"] = summary.FallbackSummary
				result.Errors = append(result.Errors, fmt.Sprintf("summary: %s", summary.Error))
			}
			resultMu.Unlock()
		}()
	}

	wg.Wait()

	products := AnalyzeProducts(record.TranscriptionText)
	result.Results["product_analysis"] = map[string]any{
		"products_mentioned": products,
		"count":              len(products),
	}

	if p.config.EnableVectorStorage {
		enriched := *record
		if summaryResult != nil && summaryResult.Success {
			enriched.Sentiment = summaryResult.Summary.Sentiment
			enriched.KeyPoints = summaryResult.Summary.KeyPoints
			if enriched.CallType == "" {
				enriched.CallType = summaryResult.Summary.CallType
			}
		}
		if len(enriched.ProductsMentioned) == 0 {
			enriched.ProductsMentioned = products
		}

		if err := p.store.Insert(ctx, &enriched); err != nil {
			addError("vector_storage", err)
		} else {
			result.Results["vector_storage"] = "stored"
		}
	}

	// Partial-success rule: a run counts as successful when nothing
	// failed, or when more stages produced output than failed.
	result.Success = len(result.Errors) == 0 || len(result.Results) > len(result.Errors)
	result.ProcessingTime = time.Since(start)

	p.mu.Lock()
	p.stats.processed++
	if result.Success {
		p.stats.succeeded++
	} else {
		p.stats.failed++
	}
	p.mu.Unlock()

	return result
}

// ProcessBatch fans records out under a semaphore sized by config. Each
// record is isolated: a failure or even a panic in one slot becomes a
// failed result for that slot only.
func (p *Pipeline) ProcessBatch(ctx context.Context, records []*models.CallRecord) []*models.ProcessingResult {
	concurrency := p.config.BatchSize
	if concurrency <= 0 {
		concurrency = 1
	}

	results := make([]*models.ProcessingResult, len(records))
	semaphore := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, record := range records {
		wg.Add(1)
		go func(index int, record *models.CallRecord) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[index] = &models.ProcessingResult{
						Success: false,
						CallID:  record.CallID,
						Results: make(map[string]any),
						Errors:  []string{fmt.Sprintf("panic: %v", r)},
					}
				}
			}()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			results[index] = p.ProcessCall(ctx, record)
		}(i, record)
	}

	wg.Wait()

	p.mu.Lock()
	p.stats.batches++
	p.mu.Unlock()

	return results
}

// AnalyzeProducts extracts the product categories mentioned in a
// transcription, in catalog order.
func AnalyzeProducts(transcription string) []string {
	text := strings.ToLower(transcription)

	var mentioned []string
	for _, product := range productOrder {
		for _, keyword := range productKeywords[product] {
			if strings.Contains(text, keyword) {
				mentioned = append(mentioned, product)
				break
			}
		}
	}
	return mentioned
}

// productOrder keeps AnalyzeProducts deterministic; map iteration is not.
var productOrder = []string{
	"internet", "television", "phone", "package", "device",
	"router", "iphone", "samsung", "computer", "tablet", "application",
}

// HealthCheck probes the enabled stages only: healthy when every enabled
// component is up, degraded when only some answer, unhealthy otherwise.
// A disabled component cannot make the pipeline unhealthy.
func (p *Pipeline) HealthCheck(ctx context.Context) map[string]any {
	components := make(map[string]any)
	probed := 0
	healthy := 0

	if p.config.EnableLLM {
		llmHealth := p.summarizer.HealthCheck(ctx)
		components["llm"] = llmHealth
		probed++
		if llmHealth["status"] == "healthy" {
			healthy++
		}
	}
	if p.config.EnableEmbeddings {
		ok := p.embedder.HealthCheck(ctx)
		components["embeddings"] = ok
		probed++
		if ok {
			healthy++
		}
	}
	if p.config.EnableVectorStorage {
		ok := p.store.HealthCheck(ctx)
		components["vector_store"] = ok
		probed++
		if ok {
			healthy++
		}
	}

	status := "unhealthy"
	switch {
	case healthy == probed:
		status = "healthy"
	case healthy > 0:
		status = "degraded"
	}

	return map[string]any{
		"status":     status,
		"components": components,
	}
}

func (p *Pipeline) GetStats(ctx context.Context) map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := map[string]any{
		"calls_processed": p.stats.processed,
		"succeeded":       p.stats.succeeded,
		"failed":          p.stats.failed,
		"batches":         p.stats.batches,
	}
	if store := p.store.GetStats(ctx); store != nil {
		stats["vector_store"] = store
	}
	return stats
}
