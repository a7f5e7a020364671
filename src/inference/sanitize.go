package inference

import (
	"log"
	"strings"

	"github.com/callsight/callsight/src/models"
)

// Chat-template control tokens that local models occasionally leak into
// their output.
var controlTokens = []string{
	"<|eot_id|>",
	"<|start_header_id|>",
	"<|end_header_id|>",
	"<|begin_of_text|>",
	"<|end_of_text|>",
}

// Outputs longer than this many words are checked for degenerate
// repetition loops; short answers legitimately repeat phrases.
const repetitionGuardMinWords = 20

// Any 3-word phrase repeated more than this many times marks the output
// as a generation loop.
const repetitionLimit = 5

// CleanResponse strips leaked control tokens, truncates degenerate
// repetition loops, and logs (without altering the text) when the output
// language does not match the expected one.
func CleanResponse(content, expectedLanguage string) string {
	cleaned := content
	for _, token := range controlTokens {
		cleaned = strings.ReplaceAll(cleaned, token, "")
	}
	cleaned = strings.TrimSpace(cleaned)
	cleaned = truncateRepetition(cleaned)

	checkLanguage(cleaned, expectedLanguage)

	return cleaned
}

// truncateRepetition cuts the output at the point where a runaway loop
// starts repeating itself. Detection is by 3-word phrases: only phrases
// that occur more than repetitionLimit times mark the text as degenerate,
// and the cut lands on the first re-occurrence of such a phrase.
func truncateRepetition(text string) string {
	words := strings.Fields(text)
	if len(words) <= repetitionGuardMinWords {
		return text
	}

	trigram := func(i int) string {
		return strings.ToLower(words[i] + " " + words[i+1] + " " + words[i+2])
	}

	counts := make(map[string]int)
	for i := 0; i+2 < len(words); i++ {
		counts[trigram(i)]++
	}

	degenerate := false
	for _, c := range counts {
		if c > repetitionLimit {
			degenerate = true
			break
		}
	}
	if !degenerate {
		return text
	}

	seen := make(map[string]bool)
	for i := 0; i+2 < len(words); i++ {
		t := trigram(i)
		if counts[t] > repetitionLimit && seen[t] {
			log.Printf("repetition loop detected, truncating response at word %d of %d", i, len(words))
			return strings.TrimSpace(strings.Join(words[:i], " "))
		}
		seen[t] = true
	}

	return text
}

func checkLanguage(text, expectedLanguage string) {
	if text == "" || expectedLanguage == "" {
		return
	}

	hasHebrew := models.ContainsHebrew(text)
	switch strings.ToLower(expectedLanguage) {
	case "he", "hebrew":
		if !hasHebrew {
			log.Printf("language mismatch: expected Hebrew output, got non-Hebrew text")
		}
	case "en", "english":
		if hasHebrew {
			log.Printf("language mismatch: expected English output, got Hebrew text")
		}
	}
}
