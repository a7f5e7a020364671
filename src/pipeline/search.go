package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/callsight/callsight/src/models"
)

const searchDedupPrefixLen = 50

// IntelligentSearch queries the vector store and the in-process index
// concurrently and merges the hits into one ranked list. One source
// failing degrades the result set instead of failing the search.
func (p *Pipeline) IntelligentSearch(ctx context.Context, params models.SearchParams) *models.SearchResponse {
	start := time.Now()

	var (
		wg         sync.WaitGroup
		vectorHits []models.SearchHit
		indexHits  []models.IndexHit
		vectorErr  error
		indexErr   error
	)

	limit := params.Limit
	if limit <= 0 {
		limit = 10
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		vectorHits, vectorErr = p.store.SemanticSearch(ctx, params)
	}()
	go func() {
		defer wg.Done()
		indexHits, indexErr = p.embedder.SearchSimilar(ctx, params.Query, limit, params.Certainty)
	}()
	wg.Wait()

	response := &models.SearchResponse{
		Query: params.Query,
	}

	if vectorErr != nil && indexErr != nil {
		response.Error = vectorErr.Error()
		response.ProcessingTime = time.Since(start)
		return response
	}

	merged := mergeSearchResults(vectorHits, indexHits)
	if len(merged) > limit {
		merged = merged[:limit]
	}

	response.Success = true
	response.Results = merged
	response.TotalFound = len(merged)
	response.ProcessingTime = time.Since(start)
	return response
}

// mergeSearchResults combines both sources, deduplicates by call id (or a
// text prefix when no id exists) preferring the vector-store entry, and
// ranks best first.
func mergeSearchResults(vectorHits []models.SearchHit, indexHits []models.IndexHit) []models.MergedHit {
	seen := make(map[string]bool)
	merged := make([]models.MergedHit, 0, len(vectorHits)+len(indexHits))

	for _, hit := range vectorHits {
		key := dedupKey(hit.CallID, hit.TranscriptionText)
		if seen[key] {
			continue
		}
		seen[key] = true

		merged = append(merged, models.MergedHit{
			CallID:            hit.CallID,
			TranscriptionText: hit.TranscriptionText,
			RankScore:         hit.SimilarityScore,
			SearchSource:      "vector",
			Distance:          hit.Distance,
			Metadata: map[string]any{
				"customerId": hit.CustomerID,
				"language":   hit.Language,
				"callDate":   hit.CallDate,
			},
		})
	}

	for _, hit := range indexHits {
		callID := ""
		if id, ok := hit.Metadata["callId"].(string); ok {
			callID = id
		}
		key := dedupKey(callID, hit.Text)
		if seen[key] {
			continue
		}
		seen[key] = true

		merged = append(merged, models.MergedHit{
			CallID:            callID,
			TranscriptionText: hit.Text,
			RankScore:         hit.Score,
			SearchSource:      "index",
			Metadata:          hit.Metadata,
		})
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].RankScore > merged[j].RankScore
	})
	return merged
}

func dedupKey(callID, text string) string {
	if callID != "" {
		return "id:" + callID
	}
	runes := []rune(text)
	if len(runes) > searchDedupPrefixLen {
		runes = runes[:searchDedupPrefixLen]
	}
	return "text:" + string(runes)
}
