package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/callsight/callsight/src/config"
	"github.com/callsight/callsight/src/mocks"
	"github.com/callsight/callsight/src/models"
)

func testConfig() *config.Config {
	return &config.Config{
		Ollama: config.OllamaConfig{
			Model:       "mistral:7b-instruct",
			HebrewModel: "dictalm2.0-instruct:Q4_K_M",
			Timeout:     15 * time.Second,
		},
		Remote: config.RemoteConfig{
			Model:   "meta-llama/Llama-3.1-70B-Instruct",
			Timeout: 40 * time.Second,
		},
		Orchestrator: config.OrchestratorConfig{
			HebrewRouting:   true,
			FallbackEnabled: true,
		},
	}
}

func testOrchestrator(local, remote models.LLMBackend) *Orchestrator {
	return NewOrchestrator(testConfig(), local, remote, nil)
}

const validSummaryJSON = `{"summary": "Customer reported slow internet", "key_points": ["slow connection"], "sentiment": "negative", "call_type": "support", "issue_resolved": true}`

func TestGenerate_PrimarySuccess_NoFallback(t *testing.T) {
	local := &mocks.MockLLMBackend{BackendName: "ollama"}
	remote := &mocks.MockLLMBackend{BackendName: "remote"}

	local.On("Generate", mock.Anything, mock.Anything).Return(&models.InferenceResponse{
		Content: "fine answer",
		Model:   "mistral:7b-instruct",
	}, nil)

	o := testOrchestrator(local, remote)

	result, err := o.Generate(context.Background(), &models.InferenceRequest{
		Prompt:      "summarize the last call",
		PreferLocal: true,
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "fine answer", result.Content)
	assert.Equal(t, "ollama", result.Service)
	remote.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestGenerate_FallbackAfterPrimaryFailure(t *testing.T) {
	local := &mocks.MockLLMBackend{BackendName: "ollama"}
	remote := &mocks.MockLLMBackend{BackendName: "remote"}

	local.On("Generate", mock.Anything, mock.Anything).
		Return(nil, &models.BackendUnavailableError{Backend: "ollama", Err: context.DeadlineExceeded})
	remote.On("Generate", mock.Anything, mock.Anything).Return(&models.InferenceResponse{
		Content: "fallback answer",
		Model:   "Llama-3.1-70B-Instruct",
	}, nil)

	o := testOrchestrator(local, remote)

	result, err := o.Generate(context.Background(), &models.InferenceRequest{
		Prompt:      "summarize the last call",
		PreferLocal: true,
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "remote", result.Service)
	assert.Equal(t, true, result.Metadata["fallback"])

	stats := o.GetStats(context.Background())
	assert.Equal(t, int64(1), stats["fallbacks"])

	local.AssertNumberOfCalls(t, "Generate", 1)
	remote.AssertNumberOfCalls(t, "Generate", 1)
}

func TestGenerate_AllBackendsFail_OrderedErrors(t *testing.T) {
	local := &mocks.MockLLMBackend{BackendName: "ollama"}
	remote := &mocks.MockLLMBackend{BackendName: "remote"}

	local.On("Generate", mock.Anything, mock.Anything).
		Return(nil, &models.BackendUnavailableError{Backend: "ollama", Err: context.DeadlineExceeded})
	remote.On("Generate", mock.Anything, mock.Anything).
		Return(nil, &models.BackendCallError{Backend: "remote", Status: 503, Message: "overloaded"})

	o := testOrchestrator(local, remote)

	result, err := o.Generate(context.Background(), &models.InferenceRequest{
		Prompt:      "summarize the last call",
		PreferLocal: true,
	})

	require.Error(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "ollama")
	assert.Contains(t, result.Errors[1], "remote")
}

func TestGenerate_HebrewStaysLocal(t *testing.T) {
	local := &mocks.MockLLMBackend{BackendName: "ollama"}
	remote := &mocks.MockLLMBackend{BackendName: "remote"}

	local.On("Generate", mock.Anything, mock.Anything).Return(&models.InferenceResponse{
		Content: "תשובה",
		Model:   "dictalm2.0-instruct:Q4_K_M",
	}, nil)

	o := testOrchestrator(local, remote)

	// Hebrew prompt, even with prefer_local=false, must route local first.
	result, err := o.Generate(context.Background(), &models.InferenceRequest{
		Prompt:      "סכם את השיחה האחרונה",
		PreferLocal: false,
	})

	require.NoError(t, err)
	assert.Equal(t, "ollama", result.Service)
	remote.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestGenerate_PreferLocalFalse_RoutesRemoteFirst(t *testing.T) {
	local := &mocks.MockLLMBackend{BackendName: "ollama"}
	remote := &mocks.MockLLMBackend{BackendName: "remote"}

	remote.On("Generate", mock.Anything, mock.Anything).Return(&models.InferenceResponse{
		Content: "remote answer",
		Model:   "Llama-3.1-70B-Instruct",
	}, nil)

	o := testOrchestrator(local, remote)

	result, err := o.Generate(context.Background(), &models.InferenceRequest{
		Prompt:      "summarize the last call",
		PreferLocal: false,
	})

	require.NoError(t, err)
	assert.Equal(t, "remote", result.Service)
	local.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestGenerate_CacheHitSkipsBackends(t *testing.T) {
	local := &mocks.MockLLMBackend{BackendName: "ollama"}
	cache := new(mocks.MockInferenceCache)

	cache.On("Get", mock.Anything, mock.Anything).Return(&models.InferenceResponse{
		Content: "cached answer",
		Model:   "mistral:7b-instruct",
	}, nil)

	o := NewOrchestrator(testConfig(), local, nil, cache)

	result, err := o.Generate(context.Background(), &models.InferenceRequest{
		Prompt:      "summarize the last call",
		PreferLocal: true,
	})

	require.NoError(t, err)
	assert.Equal(t, "cached answer", result.Content)
	assert.Equal(t, true, result.Metadata["cache_hit"])
	local.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestSummarizeCall_ParsesStructuredOutput(t *testing.T) {
	local := &mocks.MockLLMBackend{BackendName: "ollama"}

	local.On("Generate", mock.Anything, mock.Anything).Return(&models.InferenceResponse{
		Content: validSummaryJSON,
		Model:   "mistral:7b-instruct",
	}, nil)

	o := testOrchestrator(local, nil)

	result := o.SummarizeCall(context.Background(), "Customer said the internet is slow since Monday.", "en")

	assert.True(t, result.Success)
	require.NotNil(t, result.Summary)
	assert.Equal(t, "Customer reported slow internet", result.Summary.Summary)
	assert.Equal(t, "negative", result.Summary.Sentiment)
	assert.True(t, result.Summary.IssueResolved)
	assert.Nil(t, result.FallbackSummary)
}

func TestSummarizeCall_FallbackSummaryOnTotalFailure(t *testing.T) {
	local := &mocks.MockLLMBackend{BackendName: "ollama"}

	local.On("Generate", mock.Anything, mock.Anything).
		Return(nil, &models.BackendUnavailableError{Backend: "ollama", Err: context.DeadlineExceeded})

	o := testOrchestrator(local, nil)

	transcription := strings.Repeat("הלקוח מתלונן על האינטרנט ", 20)
	result := o.SummarizeCall(context.Background(), transcription, "he")

	// Never an error: a deterministic fallback summary instead.
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	require.NotNil(t, result.FallbackSummary)

	fb := result.FallbackSummary
	assert.Equal(t, string([]rune(transcription)[:200])+"...", fb.Summary)
	assert.Equal(t, []string{"Call transcription available"}, fb.KeyPoints)
	assert.Equal(t, "neutral", fb.Sentiment)
	assert.Equal(t, []string{"Manual review required"}, fb.ActionItems)
}

func TestSummarizeCall_FallbackSummaryKeepsShortTranscription(t *testing.T) {
	local := &mocks.MockLLMBackend{BackendName: "ollama"}
	local.On("Generate", mock.Anything, mock.Anything).
		Return(nil, &models.BackendUnavailableError{Backend: "ollama", Err: context.DeadlineExceeded})

	o := testOrchestrator(local, nil)

	result := o.SummarizeCall(context.Background(), "short call", "en")

	require.NotNil(t, result.FallbackSummary)
	assert.Equal(t, "short call", result.FallbackSummary.Summary)
}

func TestBatchSummarize_IndexedResults(t *testing.T) {
	local := &mocks.MockLLMBackend{BackendName: "ollama"}
	local.On("Generate", mock.Anything, mock.Anything).Return(&models.InferenceResponse{
		Content: validSummaryJSON,
		Model:   "mistral:7b-instruct",
	}, nil)

	o := testOrchestrator(local, nil)

	items := []models.BatchSummarizeItem{
		{Text: "first call about billing"},
		{Text: "second call about internet"},
		{Text: "third call about a new phone"},
	}

	results := o.BatchSummarize(context.Background(), items, 2)

	require.Len(t, results, 3)
	for i, r := range results {
		require.NotNil(t, r, "result %d missing", i)
		assert.Equal(t, i, r.Index)
		assert.True(t, r.Success)
	}
}

func TestGetStats_Percentages(t *testing.T) {
	local := &mocks.MockLLMBackend{BackendName: "ollama"}
	local.On("Generate", mock.Anything, mock.Anything).Return(&models.InferenceResponse{
		Content: "answer",
	}, nil)

	o := testOrchestrator(local, nil)

	for i := 0; i < 4; i++ {
		_, err := o.Generate(context.Background(), &models.InferenceRequest{
			Prompt:      "hello there",
			PreferLocal: true,
		})
		require.NoError(t, err)
	}

	stats := o.GetStats(context.Background())
	assert.Equal(t, int64(4), stats["total_requests"])
	assert.Equal(t, int64(4), stats["fast_responses"])
	assert.Equal(t, 100.0, stats["fast_percent"])
	assert.Equal(t, 0.0, stats["slow_percent"])
	assert.Equal(t, int64(4), stats["backends"].(map[string]int64)["ollama"])
}

func TestHealthCheck_HealthyIfAnyBackendUp(t *testing.T) {
	local := &mocks.MockLLMBackend{BackendName: "ollama"}
	remote := &mocks.MockLLMBackend{BackendName: "remote"}

	local.On("HealthCheck", mock.Anything).Return(false)
	remote.On("HealthCheck", mock.Anything).Return(true)

	o := testOrchestrator(local, remote)

	health := o.HealthCheck(context.Background())
	assert.Equal(t, "healthy", health["status"])

	backends := health["backends"].(map[string]bool)
	assert.False(t, backends["ollama"])
	assert.True(t, backends["remote"])
}

func TestHealthCheck_UnhealthyWhenAllDown(t *testing.T) {
	local := &mocks.MockLLMBackend{BackendName: "ollama"}
	local.On("HealthCheck", mock.Anything).Return(false)

	o := testOrchestrator(local, nil)

	health := o.HealthCheck(context.Background())
	assert.Equal(t, "unhealthy", health["status"])
}

func TestGenerate_CacheKeyCarriesModelID(t *testing.T) {
	local := &mocks.MockLLMBackend{BackendName: "ollama"}
	cache := new(mocks.MockInferenceCache)

	var getKey, setKey models.CacheKey
	cache.On("Get", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		getKey = args.Get(1).(models.CacheKey)
	}).Return(nil, nil)
	cache.On("Set", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		setKey = args.Get(1).(models.CacheKey)
	}).Return(nil)

	local.On("Generate", mock.Anything, mock.Anything).Return(&models.InferenceResponse{
		Content: "סיכום",
		Model:   "dictalm2.0-instruct:Q4_K_M",
	}, nil)

	o := NewOrchestrator(testConfig(), local, nil, cache)

	_, err := o.Generate(context.Background(), &models.InferenceRequest{
		Prompt:      "סכם את השיחה האחרונה",
		PreferLocal: true,
	})
	require.NoError(t, err)

	// Keys carry the concrete model id, not the backend name, so a model
	// swap in config never serves stale answers from before the swap.
	assert.Equal(t, "dictalm2.0-instruct:Q4_K_M", getKey.Model)
	assert.Equal(t, getKey, setKey)
	assert.Contains(t, getKey.ContextFlags, "hebrew")
}

func TestGenerate_CacheKeyUsesRemoteModelWhenRemotePrimary(t *testing.T) {
	local := &mocks.MockLLMBackend{BackendName: "ollama"}
	remote := &mocks.MockLLMBackend{BackendName: "remote"}
	cache := new(mocks.MockInferenceCache)

	var setKey models.CacheKey
	cache.On("Get", mock.Anything, mock.Anything).Return(nil, nil)
	cache.On("Set", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		setKey = args.Get(1).(models.CacheKey)
	}).Return(nil)

	remote.On("Generate", mock.Anything, mock.Anything).Return(&models.InferenceResponse{
		Content: "answer",
		Model:   "meta-llama/Llama-3.1-70B-Instruct",
	}, nil)

	o := NewOrchestrator(testConfig(), local, remote, cache)

	_, err := o.Generate(context.Background(), &models.InferenceRequest{
		Prompt:      "compare last week's complaint volumes",
		PreferLocal: false,
	})
	require.NoError(t, err)

	assert.Equal(t, "meta-llama/Llama-3.1-70B-Instruct", setKey.Model)
	assert.Empty(t, setKey.ContextFlags)
	local.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestGenerate_AdaptiveTimeoutUsesRoutedBackendBase(t *testing.T) {
	local := &mocks.MockLLMBackend{BackendName: "ollama"}
	remote := &mocks.MockLLMBackend{BackendName: "remote"}

	var remaining time.Duration
	remote.On("Generate", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		if deadline, ok := args.Get(0).(context.Context).Deadline(); ok {
			remaining = time.Until(deadline)
		}
	}).Return(&models.InferenceResponse{Content: "hi"}, nil)

	o := testOrchestrator(local, remote)

	// A greeting keeps the multiplier at 1.0, so the deadline reflects the
	// base timeout of whichever backend routed primary.
	_, err := o.Generate(context.Background(), &models.InferenceRequest{
		Prompt:      "hello",
		PreferLocal: false,
	})
	require.NoError(t, err)

	// Remote base is 40s; the local base of 15s would leave far less.
	assert.Greater(t, remaining, 20*time.Second)
	assert.LessOrEqual(t, remaining, 40*time.Second)
}
