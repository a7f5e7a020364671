package embedding

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/callsight/callsight/src/config"
	"github.com/callsight/callsight/src/models"
)

const defaultBatchSize = 32

// openAIBackend calls an OpenAI-compatible embeddings endpoint. Ollama
// exposes one at /v1, so the same backend serves local and hosted models.
type openAIBackend struct {
	client *openai.Client
	model  string
}

func NewOpenAIBackend(cfg *config.EmbeddingConfig) models.EmbeddingBackend {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}
	return &openAIBackend{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
	}
}

func (b *openAIBackend) ModelName() string { return b.model }

func (b *openAIBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := b.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(b.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding backend returned %d vectors for %d texts", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

type clientStats struct {
	embeddingsGenerated int64
	cacheHits           int64
	batchOperations     int64
	totalTime           time.Duration
}

// Client produces normalized embeddings with an in-process FIFO cache and
// maintains the process-local similarity index.
type Client struct {
	config  *config.EmbeddingConfig
	backend models.EmbeddingBackend
	index   *similarityIndex

	mu         sync.Mutex
	cache      map[string]*models.EmbeddingResult
	cacheOrder []string
	stats      clientStats
}

func NewClient(cfg *config.EmbeddingConfig, backend models.EmbeddingBackend) *Client {
	return &Client{
		config:  cfg,
		backend: backend,
		index:   newSimilarityIndex(),
		cache:   make(map[string]*models.EmbeddingResult),
	}
}

// Embed returns the normalized embedding for one text. Cache hits return a
// copy with zero processing time.
func (c *Client) Embed(ctx context.Context, text string, preprocess bool) (*models.EmbeddingResult, error) {
	start := time.Now()

	processed := text
	if preprocess {
		processed = normalizeText(text)
	}
	fp := fingerprint(processed)

	if cached := c.cacheLookup(fp); cached != nil {
		return cached, nil
	}

	vectors, err := c.backend.Embed(ctx, []string{processed})
	if err != nil {
		return nil, err
	}

	result := &models.EmbeddingResult{
		Text:           processed,
		Vector:         l2Normalize(vectors[0]),
		ModelName:      c.backend.ModelName(),
		TextHash:       fp,
		ProcessingTime: time.Since(start),
		Timestamp:      time.Now(),
	}

	c.mu.Lock()
	c.cacheStoreLocked(fp, result)
	c.stats.embeddingsGenerated++
	c.stats.totalTime += result.ProcessingTime
	c.mu.Unlock()

	return result, nil
}

// EmbedBatch embeds many texts at once. Cached texts are served locally;
// the rest go to the backend in batch-size chunks embedded concurrently.
// Results always come back in caller order, whatever order the chunks
// finish in.
func (c *Client) EmbedBatch(ctx context.Context, texts []string, preprocess bool) ([]*models.EmbeddingResult, error) {
	start := time.Now()

	type pending struct {
		index     int
		processed string
		fp        string
	}

	results := make([]*models.EmbeddingResult, len(texts))
	var uncached []pending

	for i, text := range texts {
		processed := text
		if preprocess {
			processed = normalizeText(text)
		}
		fp := fingerprint(processed)
		if cached := c.cacheLookup(fp); cached != nil {
			results[i] = cached
			continue
		}
		uncached = append(uncached, pending{index: i, processed: processed, fp: fp})
	}

	batchSize := c.config.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	chunkCount := (len(uncached) + batchSize - 1) / batchSize
	errCh := make(chan error, chunkCount)
	var wg sync.WaitGroup

	for chunkStart := 0; chunkStart < len(uncached); chunkStart += batchSize {
		chunkEnd := chunkStart + batchSize
		if chunkEnd > len(uncached) {
			chunkEnd = len(uncached)
		}

		wg.Add(1)
		go func(chunk []pending) {
			defer wg.Done()

			chunkTexts := make([]string, len(chunk))
			for j, p := range chunk {
				chunkTexts[j] = p.processed
			}

			vectors, err := c.backend.Embed(ctx, chunkTexts)
			if err != nil {
				errCh <- err
				return
			}

			elapsed := time.Since(start)
			for j, p := range chunk {
				result := &models.EmbeddingResult{
					Text:           p.processed,
					Vector:         l2Normalize(vectors[j]),
					ModelName:      c.backend.ModelName(),
					TextHash:       p.fp,
					ProcessingTime: elapsed,
					Timestamp:      time.Now(),
				}
				// Slots are index-addressed, so chunk completion order
				// cannot scramble the output.
				results[p.index] = result

				c.mu.Lock()
				c.cacheStoreLocked(p.fp, result)
				c.mu.Unlock()
			}
		}(uncached[chunkStart:chunkEnd])
	}

	wg.Wait()
	close(errCh)
	if err := <-errCh; err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.stats.batchOperations++
	c.stats.embeddingsGenerated += int64(len(uncached))
	c.stats.totalTime += time.Since(start)
	c.mu.Unlock()

	return results, nil
}

// AddToIndex embeds texts and appends them to the similarity index with
// order-aligned metadata.
func (c *Client) AddToIndex(ctx context.Context, texts []string, metadata []map[string]any) error {
	results, err := c.EmbedBatch(ctx, texts, true)
	if err != nil {
		return err
	}

	vectors := make([][]float32, len(results))
	indexed := make([]string, len(results))
	for i, r := range results {
		vectors[i] = r.Vector
		indexed[i] = r.Text
	}

	c.index.Add(vectors, indexed, metadata)
	return nil
}

// SearchSimilar embeds the query and returns the top-k indexed texts with
// cosine similarity at or above threshold.
func (c *Client) SearchSimilar(ctx context.Context, query string, k int, threshold float64) ([]models.IndexHit, error) {
	result, err := c.Embed(ctx, query, true)
	if err != nil {
		return nil, err
	}
	return c.index.Search(result.Vector, k, threshold), nil
}

// Vector returns just the normalized query vector. The vector store uses
// this to embed search queries and documents.
func (c *Client) Vector(ctx context.Context, text string) ([]float32, error) {
	result, err := c.Embed(ctx, text, true)
	if err != nil {
		return nil, err
	}
	return result.Vector, nil
}

func (c *Client) HealthCheck(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := c.backend.Embed(probeCtx, []string{"ping"})
	return err == nil
}

func (c *Client) GetStats() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	return map[string]any{
		"model":                 c.backend.ModelName(),
		"embeddings_generated":  c.stats.embeddingsGenerated,
		"cache_hits":            c.stats.cacheHits,
		"batch_operations":      c.stats.batchOperations,
		"total_processing_time": c.stats.totalTime.Seconds(),
		"cache_size":            len(c.cache),
		"indexed_count":         c.index.Size(),
	}
}

// cacheLookup returns a fresh copy of the cached result so callers can't
// mutate the stored entry; hits carry zero processing time.
func (c *Client) cacheLookup(fp string) *models.EmbeddingResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached, ok := c.cache[fp]
	if !ok {
		return nil
	}
	c.stats.cacheHits++

	copied := *cached
	copied.ProcessingTime = 0
	copied.Timestamp = time.Now()
	return &copied
}

func (c *Client) cacheStoreLocked(fp string, result *models.EmbeddingResult) {
	if _, exists := c.cache[fp]; exists {
		return
	}

	maxSize := c.config.CacheSize
	if maxSize <= 0 {
		return
	}

	for len(c.cache) >= maxSize && len(c.cacheOrder) > 0 {
		oldest := c.cacheOrder[0]
		c.cacheOrder = c.cacheOrder[1:]
		delete(c.cache, oldest)
	}

	stored := *result
	c.cache[fp] = &stored
	c.cacheOrder = append(c.cacheOrder, fp)
}

func normalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func fingerprint(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// l2Normalize scales the vector to unit length so inner products are
// cosine similarities.
func l2Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}

	norm := float32(math.Sqrt(sum))
	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = v / norm
	}
	return normalized
}
