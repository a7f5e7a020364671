package orchestrator

import "strings"

// Query complexity tiers. Higher tiers get proportionally longer inference
// timeouts: a greeting answered in one token must not wait as long as a
// full analytical summary before fallback kicks in.
const (
	tierGreeting = iota + 1
	tierCount
	tierList
	tierAnalytical
)

var tierMultipliers = [...]float64{
	tierGreeting:   1.0,
	tierCount:      1.5,
	tierList:       2.0,
	tierAnalytical: 2.5,
}

var analyticalKeywords = []string{
	"summarize", "summary", "analyze", "explain", "compare", "why",
	"סכם", "סיכום", "נתח", "הסבר", "השווה", "מדוע", "למה",
}

var listKeywords = []string{
	"list", "show", "display", "all the", "which calls",
	"רשימה", "הצג", "הראה", "פרט",
}

var countKeywords = []string{
	"how many", "count", "number of",
	"כמה", "מספר", "ספור",
}

var greetingKeywords = []string{
	"hello", "hi", "hey", "thanks", "thank you", "goodbye", "bye",
	"שלום", "היי", "תודה", "להתראות",
}

// estimateComplexity classifies a prompt into a tier by keyword, from the
// most specific tier down, then by length when nothing matches.
func estimateComplexity(prompt string) int {
	p := strings.ToLower(prompt)

	for _, kw := range analyticalKeywords {
		if strings.Contains(p, kw) {
			return tierAnalytical
		}
	}
	for _, kw := range listKeywords {
		if strings.Contains(p, kw) {
			return tierList
		}
	}
	for _, kw := range countKeywords {
		if strings.Contains(p, kw) {
			return tierCount
		}
	}
	for _, kw := range greetingKeywords {
		if strings.Contains(p, kw) {
			return tierGreeting
		}
	}

	switch n := len(p); {
	case n < 20:
		return tierGreeting
	case n < 100:
		return tierCount
	case n < 300:
		return tierList
	default:
		return tierAnalytical
	}
}

func timeoutMultiplier(tier int) float64 {
	if tier < tierGreeting || tier > tierAnalytical {
		return 1.0
	}
	return tierMultipliers[tier]
}
