package orchestrator

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/callsight/callsight/src/models"
)

var (
	// First '{' to last '}' across lines; LLMs wrap JSON in prose.
	jsonSpanRe = regexp.MustCompile(`(?s)\{.*\}`)

	// Unescaped gershayim inside Hebrew abbreviations (ח"כ, צה"ל) break
	// JSON string values. A quote between two Hebrew letters is never a
	// legitimate string delimiter.
	hebrewQuoteRe = regexp.MustCompile(`([\x{05D0}-\x{05EA}])"([\x{05D0}-\x{05EA}])`)

	// Adjacent fields with the separating comma dropped by the model.
	missingCommaRe = regexp.MustCompile(`"(\s*\n\s*)"`)
)

// parseSummary coerces raw LLM output into a CallSummary, trying
// progressively harsher repairs before giving up with a ParseError that
// keeps the raw text for diagnosis.
func parseSummary(raw string) (*models.CallSummary, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, &models.ParseError{Raw: raw, Err: errors.New("empty output")}
	}

	var summary models.CallSummary
	if err := json.Unmarshal([]byte(trimmed), &summary); err == nil {
		return &summary, nil
	}

	span := jsonSpanRe.FindString(stripCodeFences(trimmed))
	if span == "" {
		return nil, &models.ParseError{Raw: raw, Err: errors.New("no JSON object found")}
	}

	if err := json.Unmarshal([]byte(span), &summary); err == nil {
		return &summary, nil
	}

	repaired := repairHebrewJSON(span)
	if err := json.Unmarshal([]byte(repaired), &summary); err != nil {
		return nil, &models.ParseError{Raw: raw, Err: err}
	}
	return &summary, nil
}

func stripCodeFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	return strings.ReplaceAll(s, "```", "")
}

func repairHebrewJSON(s string) string {
	s = hebrewQuoteRe.ReplaceAllString(s, `$1\"$2`)
	return missingCommaRe.ReplaceAllString(s, `",$1"`)
}
