package models

import "time"

type InferenceRequest struct {
	Prompt       string  `json:"prompt" binding:"required"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
	PreferLocal  bool    `json:"prefer_local,omitempty"`
}

// HasHebrew reports whether the prompt contains Hebrew script. It drives
// routing and backend sampling parameters.
func (r *InferenceRequest) HasHebrew() bool {
	return ContainsHebrew(r.Prompt)
}

type InferenceResponse struct {
	Content        string         `json:"content"`
	Model          string         `json:"model"`
	TokensUsed     int            `json:"tokens_used"`
	ProcessingTime time.Duration  `json:"processing_time"`
	Timestamp      time.Time      `json:"timestamp"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// CacheKey captures every request-shaping input of an inference call.
// ContextFlags must include backend-side configuration that changes answers
// for an identical prompt (e.g. auxiliary classification data loaded).
type CacheKey struct {
	Prompt       string   `json:"prompt"`
	SystemPrompt string   `json:"system_prompt"`
	Model        string   `json:"model"`
	Temperature  float64  `json:"temperature"`
	MaxTokens    int      `json:"max_tokens"`
	ContextFlags []string `json:"context_flags,omitempty"`
}

type CacheStats struct {
	Enabled bool  `json:"enabled"`
	Size    int64 `json:"size"`
	MaxSize int64 `json:"max_size"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

type EmbeddingResult struct {
	Text           string        `json:"text"`
	Vector         []float32     `json:"vector"`
	ModelName      string        `json:"model"`
	TextHash       string        `json:"fingerprint"`
	ProcessingTime time.Duration `json:"processing_time"`
	Timestamp      time.Time     `json:"timestamp"`
}

type IndexHit struct {
	Text     string         `json:"text"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
	Index    int            `json:"index"`
}

// CallRecord is the call-transcription shape persisted to the vector store.
type CallRecord struct {
	CallID            string    `json:"callId"`
	CustomerID        string    `json:"customerId,omitempty"`
	SubscriberID      string    `json:"subscriberId,omitempty"`
	TranscriptionText string    `json:"transcriptionText" binding:"required"`
	Language          string    `json:"language,omitempty"`
	CallDate          time.Time `json:"callDate,omitempty"`
	DurationSeconds   int       `json:"durationSeconds,omitempty"`
	AgentID           string    `json:"agentId,omitempty"`
	CallType          string    `json:"callType,omitempty"`
	Sentiment         string    `json:"sentiment,omitempty"`
	ProductsMentioned []string  `json:"productsMentioned,omitempty"`
	KeyPoints         []string  `json:"keyPoints,omitempty"`
}

// CallSummary is the structured analysis extracted from a transcription.
type CallSummary struct {
	Summary              string   `json:"summary"`
	KeyPoints            []string `json:"key_points,omitempty"`
	Sentiment            string   `json:"sentiment,omitempty"`
	ProductsMentioned    []string `json:"products_mentioned,omitempty"`
	MainIssue            string   `json:"main_issue,omitempty"`
	CallType             string   `json:"call_type,omitempty"`
	ActionItems          []string `json:"action_items,omitempty"`
	CustomerSatisfaction string   `json:"customer_satisfaction,omitempty"`
	IssueResolved        bool     `json:"issue_resolved,omitempty"`
}

type GenerateResult struct {
	Success        bool           `json:"success"`
	Content        string         `json:"content,omitempty"`
	Service        string         `json:"service,omitempty"`
	Model          string         `json:"model,omitempty"`
	TokensUsed     int            `json:"tokens_used,omitempty"`
	ProcessingTime time.Duration  `json:"processing_time"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Errors         []string       `json:"errors,omitempty"`
}

type SummaryResult struct {
	Success         bool           `json:"success"`
	Summary         *CallSummary   `json:"summary,omitempty"`
	FallbackSummary *CallSummary   `json:"fallback_summary,omitempty"`
	Service         string         `json:"service,omitempty"`
	Error           string         `json:"error,omitempty"`
	ProcessingTime  time.Duration  `json:"processing_time"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	Index           int            `json:"index,omitempty"`
}

type BatchSummarizeItem struct {
	Text     string `json:"text" binding:"required"`
	Language string `json:"language,omitempty"`
}

// ProcessingResult aggregates per-stage outcomes of one pipeline run.
// Errors holds stage failures in the order they occurred; Success follows
// the partial-success rule (no errors, or more results than errors).
type ProcessingResult struct {
	Success        bool           `json:"success"`
	CallID         string         `json:"call_id"`
	ProcessingTime time.Duration  `json:"processing_time"`
	Results        map[string]any `json:"results"`
	Errors         []string       `json:"errors"`
}

type SearchHit struct {
	CallID            string         `json:"callId"`
	CustomerID        string         `json:"customerId,omitempty"`
	SubscriberID      string         `json:"subscriberId,omitempty"`
	TranscriptionText string         `json:"transcriptionText"`
	Language          string         `json:"language,omitempty"`
	CallDate          string         `json:"callDate,omitempty"`
	DurationSeconds   int            `json:"durationSeconds,omitempty"`
	SimilarityScore   float64        `json:"similarity_score"`
	Distance          float64        `json:"distance"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// MergedHit is one entry of a cross-source search result after dedup.
type MergedHit struct {
	CallID            string         `json:"callId,omitempty"`
	TranscriptionText string         `json:"transcriptionText,omitempty"`
	RankScore         float64        `json:"rank_score"`
	SearchSource      string         `json:"search_source"`
	Distance          float64        `json:"distance,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

type SearchFilters struct {
	Language string `json:"language,omitempty"`
	CallType string `json:"call_type,omitempty"`
	DateFrom string `json:"date_from,omitempty"`
	DateTo   string `json:"date_to,omitempty"`
}

type SearchParams struct {
	Query      string         `json:"query" binding:"required"`
	CustomerID string         `json:"customer_id,omitempty"`
	Limit      int            `json:"limit,omitempty"`
	Certainty  float64        `json:"certainty,omitempty"`
	Filters    *SearchFilters `json:"filters,omitempty"`
}

type BatchInsertResult struct {
	Success    bool     `json:"success"`
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Errors     int      `json:"errors"`
	Messages   []string `json:"messages,omitempty"`
}

type StoreStats struct {
	Connected    bool   `json:"connected"`
	TotalObjects uint64 `json:"total_objects"`
	Collection   string `json:"collection"`
	Error        string `json:"error,omitempty"`
}

type SearchResponse struct {
	Success        bool          `json:"success"`
	Query          string        `json:"query"`
	Results        []MergedHit   `json:"results"`
	TotalFound     int           `json:"total_found"`
	ProcessingTime time.Duration `json:"processing_time"`
	Error          string        `json:"error,omitempty"`
}

// ContainsHebrew reports whether s has any codepoint in the Hebrew block
// U+0590..U+05FF.
func ContainsHebrew(s string) bool {
	for _, r := range s {
		if r >= 0x0590 && r <= 0x05FF {
			return true
		}
	}
	return false
}
