package utils

import "strings"

// EstimateTokenCount estimates token count from text (rough approximation).
// More accurate tokenizers are backend-specific; ~1 token per 4 characters
// is close enough for budgeting and stats.
func EstimateTokenCount(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}

	tokenCount := len(text) / 4

	// Add some buffer for special tokens
	if tokenCount < 10 {
		tokenCount = 10
	}

	return tokenCount
}
