package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/callsight/callsight/src/models"
)

// MockLLMBackend implements models.LLMBackend
type MockLLMBackend struct {
	mock.Mock
	BackendName string
}

func (m *MockLLMBackend) Name() string {
	if m.BackendName != "" {
		return m.BackendName
	}
	return "mock"
}

func (m *MockLLMBackend) Generate(ctx context.Context, req *models.InferenceRequest) (*models.InferenceResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InferenceResponse), args.Error(1)
}

func (m *MockLLMBackend) HealthCheck(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

// MockInferenceCache implements models.InferenceCache
type MockInferenceCache struct {
	mock.Mock
}

func (m *MockInferenceCache) Get(ctx context.Context, key models.CacheKey) (*models.InferenceResponse, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InferenceResponse), args.Error(1)
}

func (m *MockInferenceCache) Set(ctx context.Context, key models.CacheKey, response *models.InferenceResponse) error {
	args := m.Called(ctx, key, response)
	return args.Error(0)
}

func (m *MockInferenceCache) Stats(ctx context.Context) models.CacheStats {
	args := m.Called(ctx)
	return args.Get(0).(models.CacheStats)
}

func (m *MockInferenceCache) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockInferenceCache) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockEmbeddingBackend implements models.EmbeddingBackend
type MockEmbeddingBackend struct {
	mock.Mock
}

func (m *MockEmbeddingBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *MockEmbeddingBackend) ModelName() string {
	args := m.Called()
	return args.String(0)
}

// MockEmbeddingProvider implements models.EmbeddingProvider
type MockEmbeddingProvider struct {
	mock.Mock
}

func (m *MockEmbeddingProvider) Embed(ctx context.Context, text string, preprocess bool) (*models.EmbeddingResult, error) {
	args := m.Called(ctx, text, preprocess)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EmbeddingResult), args.Error(1)
}

func (m *MockEmbeddingProvider) EmbedBatch(ctx context.Context, texts []string, preprocess bool) ([]*models.EmbeddingResult, error) {
	args := m.Called(ctx, texts, preprocess)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.EmbeddingResult), args.Error(1)
}

func (m *MockEmbeddingProvider) AddToIndex(ctx context.Context, texts []string, metadata []map[string]any) error {
	args := m.Called(ctx, texts, metadata)
	return args.Error(0)
}

func (m *MockEmbeddingProvider) SearchSimilar(ctx context.Context, query string, k int, threshold float64) ([]models.IndexHit, error) {
	args := m.Called(ctx, query, k, threshold)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.IndexHit), args.Error(1)
}

func (m *MockEmbeddingProvider) HealthCheck(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

// MockCallSummarizer implements models.CallSummarizer
type MockCallSummarizer struct {
	mock.Mock
}

func (m *MockCallSummarizer) SummarizeCall(ctx context.Context, transcription, language string) *models.SummaryResult {
	args := m.Called(ctx, transcription, language)
	return args.Get(0).(*models.SummaryResult)
}

func (m *MockCallSummarizer) HealthCheck(ctx context.Context) map[string]any {
	args := m.Called(ctx)
	return args.Get(0).(map[string]any)
}

// MockVectorStore implements models.VectorStore
type MockVectorStore struct {
	mock.Mock
}

func (m *MockVectorStore) EnsureSchema(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockVectorStore) Insert(ctx context.Context, record *models.CallRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockVectorStore) BatchInsert(ctx context.Context, records []*models.CallRecord) *models.BatchInsertResult {
	args := m.Called(ctx, records)
	return args.Get(0).(*models.BatchInsertResult)
}

func (m *MockVectorStore) SemanticSearch(ctx context.Context, params models.SearchParams) ([]models.SearchHit, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SearchHit), args.Error(1)
}

func (m *MockVectorStore) GetStats(ctx context.Context) *models.StoreStats {
	args := m.Called(ctx)
	return args.Get(0).(*models.StoreStats)
}

func (m *MockVectorStore) HealthCheck(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}
