package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/callsight/callsight/src/mocks"
	"github.com/callsight/callsight/src/models"
)

func TestMergeSearchResults_DedupPrefersVectorSource(t *testing.T) {
	vectorHits := []models.SearchHit{
		{CallID: "c-1", TranscriptionText: "slow internet complaint", SimilarityScore: 0.8, Distance: 0.2},
	}
	indexHits := []models.IndexHit{
		{Text: "slow internet complaint", Score: 0.95, Metadata: map[string]any{"callId": "c-1"}},
		{Text: "television package question", Score: 0.7, Metadata: map[string]any{"callId": "c-2"}},
	}

	merged := mergeSearchResults(vectorHits, indexHits)

	require.Len(t, merged, 2)

	// The duplicate kept the vector-store entry despite the index's
	// higher raw score.
	assert.Equal(t, "vector", merged[0].SearchSource)
	assert.Equal(t, "c-1", merged[0].CallID)
	assert.InDelta(t, 0.8, merged[0].RankScore, 1e-9)

	// Index hits keep their raw similarity score; the only vector-store
	// preference is on dedup collisions.
	assert.Equal(t, "index", merged[1].SearchSource)
	assert.Equal(t, "c-2", merged[1].CallID)
	assert.InDelta(t, 0.7, merged[1].RankScore, 1e-9)
}

func TestMergeSearchResults_DedupByTextPrefixWithoutID(t *testing.T) {
	longText := "a customer called to complain about recurring disconnections in the evening hours every single day"

	vectorHits := []models.SearchHit{
		{TranscriptionText: longText, SimilarityScore: 0.82},
	}
	indexHits := []models.IndexHit{
		// Same first 50 characters, different tail.
		{Text: longText + " and asked for a technician visit", Score: 0.9},
	}

	merged := mergeSearchResults(vectorHits, indexHits)

	require.Len(t, merged, 1)
	assert.Equal(t, "vector", merged[0].SearchSource)
}

func TestMergeSearchResults_SortedByRankScore(t *testing.T) {
	vectorHits := []models.SearchHit{
		{CallID: "low", SimilarityScore: 0.5},
		{CallID: "high", SimilarityScore: 0.95},
		{CallID: "below-mid", SimilarityScore: 0.78},
	}
	indexHits := []models.IndexHit{
		{Text: "middle", Score: 0.8, Metadata: map[string]any{"callId": "mid"}},
	}

	merged := mergeSearchResults(vectorHits, indexHits)

	// Sources interleave by similarity score alone; an index hit outranks
	// a vector-store hit with a lower score.
	require.Len(t, merged, 4)
	assert.Equal(t, "high", merged[0].CallID)
	assert.Equal(t, "mid", merged[1].CallID)
	assert.Equal(t, "below-mid", merged[2].CallID)
	assert.Equal(t, "low", merged[3].CallID)
}

func TestIntelligentSearch_SurvivesOneFailingSource(t *testing.T) {
	embedder := new(mocks.MockEmbeddingProvider)
	summarizer := new(mocks.MockCallSummarizer)
	store := new(mocks.MockVectorStore)

	store.On("SemanticSearch", mock.Anything, mock.Anything).
		Return(nil, errors.New("qdrant unavailable"))
	embedder.On("SearchSimilar", mock.Anything, "billing", 10, 0.0).
		Return([]models.IndexHit{{Text: "billing dispute call", Score: 0.88}}, nil)

	p := NewPipeline(allStagesConfig(), embedder, summarizer, store)

	response := p.IntelligentSearch(context.Background(), models.SearchParams{Query: "billing"})

	assert.True(t, response.Success)
	require.Len(t, response.Results, 1)
	assert.Equal(t, "index", response.Results[0].SearchSource)
	assert.Empty(t, response.Error)
}

func TestIntelligentSearch_BothSourcesFail(t *testing.T) {
	embedder := new(mocks.MockEmbeddingProvider)
	summarizer := new(mocks.MockCallSummarizer)
	store := new(mocks.MockVectorStore)

	store.On("SemanticSearch", mock.Anything, mock.Anything).
		Return(nil, errors.New("qdrant unavailable"))
	embedder.On("SearchSimilar", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("embedding backend down"))

	p := NewPipeline(allStagesConfig(), embedder, summarizer, store)

	response := p.IntelligentSearch(context.Background(), models.SearchParams{Query: "billing"})

	assert.False(t, response.Success)
	assert.NotEmpty(t, response.Error)
	assert.Empty(t, response.Results)
	assert.Greater(t, response.ProcessingTime, time.Duration(0))
}
