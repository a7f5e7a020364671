package vectorstore

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/callsight/callsight/src/config"
	"github.com/callsight/callsight/src/models"
)

const (
	insertMaxAttempts = 3
	insertRetryDelay  = time.Second

	defaultSearchLimit     = 10
	defaultSearchCertainty = 0.7
)

// qdrantAPI is the slice of the qdrant client the store uses; tests swap
// in a fake.
type qdrantAPI interface {
	GetCollectionInfo(ctx context.Context, collectionName string) (*qdrant.CollectionInfo, error)
	CreateCollection(ctx context.Context, req *qdrant.CreateCollection) error
	CreateFieldIndex(ctx context.Context, req *qdrant.CreateFieldIndexCollection) (*qdrant.UpdateResult, error)
	Upsert(ctx context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Count(ctx context.Context, req *qdrant.CountPoints) (uint64, error)
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
}

// QdrantStore persists call transcriptions as vectors in Qdrant. Qdrant
// does not vectorize server-side, so the store embeds documents and
// queries through the provided Vectorizer.
type QdrantStore struct {
	config     *config.QdrantConfig
	api        qdrantAPI
	vectorizer models.Vectorizer
	dimension  int
	retryDelay time.Duration
}

func NewQdrantStore(cfg *config.QdrantConfig, dimension int, vectorizer models.Vectorizer) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.Host,
		Port: cfg.Port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &QdrantStore{
		config:     cfg,
		api:        client,
		vectorizer: vectorizer,
		dimension:  dimension,
		retryDelay: insertRetryDelay,
	}, nil
}

// EnsureSchema creates the collection on first run and is a no-op when it
// already exists.
func (s *QdrantStore) EnsureSchema(ctx context.Context) error {
	_, err := s.api.GetCollectionInfo(ctx, s.config.Collection)
	if err == nil {
		return nil
	}
	if status.Code(err) != codes.NotFound {
		return fmt.Errorf("failed to inspect collection %s: %w", s.config.Collection, err)
	}

	err = s.api.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.config.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", s.config.Collection, err)
	}

	// Date-range filters need a payload index on the numeric timestamp.
	// Search still works without it, so index failure is not fatal.
	_, err = s.api.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.config.Collection,
		FieldName:      "callTimestamp",
		FieldType:      qdrant.FieldType_FieldTypeInteger.Enum(),
	})
	if err != nil {
		log.Printf("failed to index callTimestamp on %s: %v", s.config.Collection, err)
	}

	return nil
}

// Insert embeds the transcription and upserts it with the full record as
// payload. Transient qdrant failures are retried; malformed requests are
// not.
func (s *QdrantStore) Insert(ctx context.Context, record *models.CallRecord) error {
	vector, err := s.vectorizer.Vector(ctx, record.TranscriptionText)
	if err != nil {
		return fmt.Errorf("failed to embed transcription for call %s: %w", record.CallID, err)
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(uuid.New().String()),
		Vectors: qdrant.NewVectors(vector...),
		Payload: qdrant.NewValueMap(recordPayload(record)),
	}

	var lastErr error
	for attempt := 1; attempt <= insertMaxAttempts; attempt++ {
		_, err := s.api.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.config.Collection,
			Points:         []*qdrant.PointStruct{point},
		})
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return fmt.Errorf("failed to insert call %s: %w", record.CallID, err)
		}

		lastErr = err
		if attempt < insertMaxAttempts {
			select {
			case <-time.After(s.retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("failed to insert call %s after %d attempts: %w", record.CallID, insertMaxAttempts, lastErr)
}

// BatchInsert inserts records one by one and reports per-item outcomes;
// a failing record never aborts the rest.
func (s *QdrantStore) BatchInsert(ctx context.Context, records []*models.CallRecord) *models.BatchInsertResult {
	result := &models.BatchInsertResult{Total: len(records)}

	for _, record := range records {
		if err := s.Insert(ctx, record); err != nil {
			result.Errors++
			result.Messages = append(result.Messages, err.Error())
			continue
		}
		result.Successful++
	}

	result.Success = result.Errors == 0
	return result
}

// SemanticSearch embeds the query and runs a filtered similarity search.
func (s *QdrantStore) SemanticSearch(ctx context.Context, params models.SearchParams) ([]models.SearchHit, error) {
	vector, err := s.vectorizer.Vector(ctx, params.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed search query: %w", err)
	}

	limit := uint64(params.Limit)
	if limit == 0 {
		limit = defaultSearchLimit
	}
	certainty := float32(params.Certainty)
	if certainty == 0 {
		certainty = defaultSearchCertainty
	}

	query := &qdrant.QueryPoints{
		CollectionName: s.config.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		ScoreThreshold: &certainty,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if conditions := buildFilterConditions(params); len(conditions) > 0 {
		query.Filter = &qdrant.Filter{Must: conditions}
	}

	points, err := s.api.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("semantic search failed: %w", err)
	}

	hits := make([]models.SearchHit, 0, len(points))
	for _, point := range points {
		score := float64(point.GetScore())
		hits = append(hits, models.SearchHit{
			CallID:            payloadString(point.GetPayload(), "callId"),
			CustomerID:        payloadString(point.GetPayload(), "customerId"),
			SubscriberID:      payloadString(point.GetPayload(), "subscriberId"),
			TranscriptionText: payloadString(point.GetPayload(), "transcriptionText"),
			Language:          payloadString(point.GetPayload(), "language"),
			CallDate:          payloadString(point.GetPayload(), "callDate"),
			DurationSeconds:   int(payloadInt(point.GetPayload(), "durationSeconds")),
			SimilarityScore:   score,
			Distance:          1 - score,
		})
	}
	return hits, nil
}

// GetStats reports connectivity and point count. It never returns an
// error; an unreachable backend yields Connected=false.
func (s *QdrantStore) GetStats(ctx context.Context) *models.StoreStats {
	count, err := s.api.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.config.Collection,
	})
	if err != nil {
		return &models.StoreStats{
			Connected:  false,
			Collection: s.config.Collection,
			Error:      err.Error(),
		}
	}

	return &models.StoreStats{
		Connected:    true,
		TotalObjects: count,
		Collection:   s.config.Collection,
	}
}

func (s *QdrantStore) HealthCheck(ctx context.Context) bool {
	_, err := s.api.HealthCheck(ctx)
	return err == nil
}

func buildFilterConditions(params models.SearchParams) []*qdrant.Condition {
	var conditions []*qdrant.Condition

	if params.CustomerID != "" {
		conditions = append(conditions, qdrant.NewMatch("customerId", params.CustomerID))
	}
	if params.Filters == nil {
		return conditions
	}

	if params.Filters.Language != "" {
		conditions = append(conditions, qdrant.NewMatch("language", params.Filters.Language))
	}
	if params.Filters.CallType != "" {
		conditions = append(conditions, qdrant.NewMatch("callType", params.Filters.CallType))
	}

	dateRange := &qdrant.Range{}
	ranged := false
	if from, err := time.Parse("2006-01-02", params.Filters.DateFrom); err == nil && params.Filters.DateFrom != "" {
		dateRange.Gte = qdrant.PtrOf(float64(from.Unix()))
		ranged = true
	}
	if to, err := time.Parse("2006-01-02", params.Filters.DateTo); err == nil && params.Filters.DateTo != "" {
		// Inclusive end of day.
		dateRange.Lte = qdrant.PtrOf(float64(to.Add(24*time.Hour - time.Second).Unix()))
		ranged = true
	}
	if ranged {
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key:   "callTimestamp",
					Range: dateRange,
				},
			},
		})
	}

	return conditions
}

func recordPayload(record *models.CallRecord) map[string]any {
	payload := map[string]any{
		"callId":            record.CallID,
		"transcriptionText": record.TranscriptionText,
	}

	if record.CustomerID != "" {
		payload["customerId"] = record.CustomerID
	}
	if record.SubscriberID != "" {
		payload["subscriberId"] = record.SubscriberID
	}
	if record.Language != "" {
		payload["language"] = record.Language
	}
	if record.AgentID != "" {
		payload["agentId"] = record.AgentID
	}
	if record.CallType != "" {
		payload["callType"] = record.CallType
	}
	if record.Sentiment != "" {
		payload["sentiment"] = record.Sentiment
	}
	if record.DurationSeconds > 0 {
		payload["durationSeconds"] = int64(record.DurationSeconds)
	}
	if !record.CallDate.IsZero() {
		payload["callDate"] = record.CallDate.Format(time.RFC3339)
		payload["callTimestamp"] = record.CallDate.Unix()
	}
	if len(record.ProductsMentioned) > 0 {
		payload["productsMentioned"] = toAnySlice(record.ProductsMentioned)
	}
	if len(record.KeyPoints) > 0 {
		payload["keyPoints"] = toAnySlice(record.KeyPoints)
	}

	return payload
}

// toAnySlice converts string slices for qdrant's value map, which only
// accepts []any for list payloads.
func toAnySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func isTransient(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	default:
		return false
	}
}

func payloadString(payload map[string]*qdrant.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func payloadInt(payload map[string]*qdrant.Value, key string) int64 {
	if v, ok := payload[key]; ok {
		return v.GetIntegerValue()
	}
	return 0
}
