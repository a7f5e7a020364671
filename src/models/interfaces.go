package models

import (
	"context"
)

// LLMBackend is one inference backend (local server or hosted endpoint).
type LLMBackend interface {
	Name() string
	Generate(ctx context.Context, req *InferenceRequest) (*InferenceResponse, error)
	HealthCheck(ctx context.Context) bool
}

// InferenceCache deduplicates LLM calls by their full request shape.
type InferenceCache interface {
	Get(ctx context.Context, key CacheKey) (*InferenceResponse, error)
	Set(ctx context.Context, key CacheKey, response *InferenceResponse) error
	Stats(ctx context.Context) CacheStats
	Clear(ctx context.Context) error
	Close() error
}

// EmbeddingBackend is the raw text-to-vector function. Implementations may
// return vectors that are not yet normalized.
type EmbeddingBackend interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}

// EmbeddingProvider is the embedding client surface the pipeline consumes.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string, preprocess bool) (*EmbeddingResult, error)
	EmbedBatch(ctx context.Context, texts []string, preprocess bool) ([]*EmbeddingResult, error)
	AddToIndex(ctx context.Context, texts []string, metadata []map[string]any) error
	SearchSimilar(ctx context.Context, query string, k int, threshold float64) ([]IndexHit, error)
	HealthCheck(ctx context.Context) bool
}

// Vectorizer produces a single normalized query vector.
type Vectorizer interface {
	Vector(ctx context.Context, text string) ([]float32, error)
}

// CallSummarizer produces a structured summary and never returns an error:
// total backend failure yields a fallback summary with Success=false.
type CallSummarizer interface {
	SummarizeCall(ctx context.Context, transcription, language string) *SummaryResult
	HealthCheck(ctx context.Context) map[string]any
}

// VectorStore wraps the vector database used for call persistence and
// semantic search.
type VectorStore interface {
	EnsureSchema(ctx context.Context) error
	Insert(ctx context.Context, record *CallRecord) error
	BatchInsert(ctx context.Context, records []*CallRecord) *BatchInsertResult
	SemanticSearch(ctx context.Context, params SearchParams) ([]SearchHit, error)
	GetStats(ctx context.Context) *StoreStats
	HealthCheck(ctx context.Context) bool
}
