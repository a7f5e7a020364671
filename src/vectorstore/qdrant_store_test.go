package vectorstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/callsight/callsight/src/config"
	"github.com/callsight/callsight/src/models"
)

type fakeVectorizer struct {
	failFor string
}

func (f *fakeVectorizer) Vector(ctx context.Context, text string) ([]float32, error) {
	if f.failFor != "" && text == f.failFor {
		return nil, errors.New("embedding backend down")
	}
	return []float32{0.6, 0.8}, nil
}

type fakeQdrantAPI struct {
	collectionErr   error
	createCalls     int
	fieldIndexCalls int

	upsertErrs  []error
	upsertCalls int

	lastQuery   *qdrant.QueryPoints
	queryResult []*qdrant.ScoredPoint

	countResult uint64
	countErr    error
	healthErr   error
}

func (f *fakeQdrantAPI) GetCollectionInfo(ctx context.Context, collectionName string) (*qdrant.CollectionInfo, error) {
	return nil, f.collectionErr
}

func (f *fakeQdrantAPI) CreateCollection(ctx context.Context, req *qdrant.CreateCollection) error {
	f.createCalls++
	return nil
}

func (f *fakeQdrantAPI) CreateFieldIndex(ctx context.Context, req *qdrant.CreateFieldIndexCollection) (*qdrant.UpdateResult, error) {
	f.fieldIndexCalls++
	return nil, nil
}

func (f *fakeQdrantAPI) Upsert(ctx context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error) {
	call := f.upsertCalls
	f.upsertCalls++
	if call < len(f.upsertErrs) {
		return nil, f.upsertErrs[call]
	}
	return nil, nil
}

func (f *fakeQdrantAPI) Query(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	f.lastQuery = req
	return f.queryResult, nil
}

func (f *fakeQdrantAPI) Count(ctx context.Context, req *qdrant.CountPoints) (uint64, error) {
	return f.countResult, f.countErr
}

func (f *fakeQdrantAPI) HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error) {
	return nil, f.healthErr
}

func testStore(api *fakeQdrantAPI, vectorizer models.Vectorizer) *QdrantStore {
	return &QdrantStore{
		config:     &config.QdrantConfig{Collection: "call_transcriptions"},
		api:        api,
		vectorizer: vectorizer,
		dimension:  2,
		retryDelay: time.Millisecond,
	}
}

func TestEnsureSchema_CreatesMissingCollection(t *testing.T) {
	api := &fakeQdrantAPI{collectionErr: status.Error(codes.NotFound, "missing")}
	store := testStore(api, &fakeVectorizer{})

	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.Equal(t, 1, api.createCalls)
	assert.Equal(t, 1, api.fieldIndexCalls)
}

func TestEnsureSchema_IdempotentWhenExists(t *testing.T) {
	api := &fakeQdrantAPI{}
	store := testStore(api, &fakeVectorizer{})

	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.Equal(t, 0, api.createCalls)
}

func TestEnsureSchema_PropagatesOtherErrors(t *testing.T) {
	api := &fakeQdrantAPI{collectionErr: status.Error(codes.PermissionDenied, "nope")}
	store := testStore(api, &fakeVectorizer{})

	assert.Error(t, store.EnsureSchema(context.Background()))
	assert.Equal(t, 0, api.createCalls)
}

func TestInsert_RetriesTransientFailures(t *testing.T) {
	api := &fakeQdrantAPI{
		upsertErrs: []error{status.Error(codes.Unavailable, "restarting")},
	}
	store := testStore(api, &fakeVectorizer{})

	err := store.Insert(context.Background(), &models.CallRecord{
		CallID:            "c-1",
		TranscriptionText: "the internet is down again",
	})

	require.NoError(t, err)
	assert.Equal(t, 2, api.upsertCalls)
}

func TestInsert_GivesUpAfterMaxAttempts(t *testing.T) {
	api := &fakeQdrantAPI{
		upsertErrs: []error{
			status.Error(codes.Unavailable, "restarting"),
			status.Error(codes.DeadlineExceeded, "slow"),
			status.Error(codes.Unavailable, "still restarting"),
		},
	}
	store := testStore(api, &fakeVectorizer{})

	err := store.Insert(context.Background(), &models.CallRecord{
		CallID:            "c-1",
		TranscriptionText: "text",
	})

	require.Error(t, err)
	assert.Equal(t, insertMaxAttempts, api.upsertCalls)
}

func TestInsert_InvalidArgumentFailsImmediately(t *testing.T) {
	api := &fakeQdrantAPI{
		upsertErrs: []error{status.Error(codes.InvalidArgument, "wrong vector size")},
	}
	store := testStore(api, &fakeVectorizer{})

	err := store.Insert(context.Background(), &models.CallRecord{
		CallID:            "c-1",
		TranscriptionText: "text",
	})

	require.Error(t, err)
	assert.Equal(t, 1, api.upsertCalls)
}

func TestBatchInsert_PerItemOutcomes(t *testing.T) {
	api := &fakeQdrantAPI{}
	store := testStore(api, &fakeVectorizer{failFor: "unembeddable"})

	result := store.BatchInsert(context.Background(), []*models.CallRecord{
		{CallID: "c-1", TranscriptionText: "fine"},
		{CallID: "c-2", TranscriptionText: "unembeddable"},
		{CallID: "c-3", TranscriptionText: "also fine"},
	})

	assert.False(t, result.Success)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.Successful)
	assert.Equal(t, 1, result.Errors)
	require.Len(t, result.Messages, 1)
	assert.Contains(t, result.Messages[0], "c-2")
}

func TestSemanticSearch_BuildsConjunctiveFilter(t *testing.T) {
	api := &fakeQdrantAPI{
		queryResult: []*qdrant.ScoredPoint{
			{
				Score: 0.92,
				Payload: qdrant.NewValueMap(map[string]any{
					"callId":            "c-9",
					"customerId":        "cust-1",
					"transcriptionText": "the router keeps rebooting",
					"language":          "he",
					"durationSeconds":   int64(340),
				}),
			},
		},
	}
	store := testStore(api, &fakeVectorizer{})

	hits, err := store.SemanticSearch(context.Background(), models.SearchParams{
		Query:      "router problems",
		CustomerID: "cust-1",
		Limit:      5,
		Certainty:  0.75,
		Filters: &models.SearchFilters{
			Language: "he",
			CallType: "support",
			DateFrom: "2026-01-01",
			DateTo:   "2026-06-30",
		},
	})

	require.NoError(t, err)
	require.NotNil(t, api.lastQuery)

	assert.Equal(t, "call_transcriptions", api.lastQuery.CollectionName)
	assert.Equal(t, uint64(5), *api.lastQuery.Limit)
	assert.Equal(t, float32(0.75), *api.lastQuery.ScoreThreshold)

	// customerId + language + callType + one date-range condition.
	require.NotNil(t, api.lastQuery.Filter)
	assert.Len(t, api.lastQuery.Filter.Must, 4)

	require.Len(t, hits, 1)
	assert.Equal(t, "c-9", hits[0].CallID)
	assert.Equal(t, "the router keeps rebooting", hits[0].TranscriptionText)
	assert.Equal(t, 340, hits[0].DurationSeconds)
	assert.InDelta(t, 0.92, hits[0].SimilarityScore, 1e-6)
	assert.InDelta(t, 0.08, hits[0].Distance, 1e-6)
}

func TestSemanticSearch_DefaultsWithoutFilters(t *testing.T) {
	api := &fakeQdrantAPI{}
	store := testStore(api, &fakeVectorizer{})

	_, err := store.SemanticSearch(context.Background(), models.SearchParams{Query: "anything"})

	require.NoError(t, err)
	assert.Equal(t, uint64(defaultSearchLimit), *api.lastQuery.Limit)
	assert.Equal(t, float32(defaultSearchCertainty), *api.lastQuery.ScoreThreshold)
	assert.Nil(t, api.lastQuery.Filter)
}

func TestGetStats_NeverErrors(t *testing.T) {
	api := &fakeQdrantAPI{countErr: status.Error(codes.Unavailable, "down")}
	store := testStore(api, &fakeVectorizer{})

	stats := store.GetStats(context.Background())

	assert.False(t, stats.Connected)
	assert.Equal(t, "call_transcriptions", stats.Collection)
	assert.NotEmpty(t, stats.Error)

	api.countErr = nil
	api.countResult = 128

	stats = store.GetStats(context.Background())
	assert.True(t, stats.Connected)
	assert.Equal(t, uint64(128), stats.TotalObjects)
}

func TestHealthCheck(t *testing.T) {
	api := &fakeQdrantAPI{}
	store := testStore(api, &fakeVectorizer{})
	assert.True(t, store.HealthCheck(context.Background()))

	api.healthErr = status.Error(codes.Unavailable, "down")
	assert.False(t, store.HealthCheck(context.Background()))
}
