package agent

import (
	"strings"

	"docqa/internal/models"
)

// Analysis is the parsed output of the analysis prompt. Defaulted names the
// fields that were missing or invalid and fell back to their defaults.
type Analysis struct {
	Intent      models.Intent
	KeyConcepts []string
	QueryType   models.QueryType
	Defaulted   []string
}

const (
	fieldIntent    = "intent"
	fieldConcepts  = "key_concepts"
	fieldQueryType = "query_type"
)

// ParseAnalysis reads "Label: value" lines in any order. Labels are matched
// case-insensitively and may carry list numbering or bullets.
func ParseAnalysis(raw string) Analysis {
	var (
		intent, queryType string
		concepts          []string
		seenConcepts      bool
	)
	for _, line := range strings.Split(stripCodeFence(raw), "\n") {
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = stripBrackets(strings.TrimSpace(value))
		switch normalizeLabel(label) {
		case "intent":
			if intent == "" {
				intent = strings.ToLower(value)
			}
		case "concepts", "key concepts":
			if !seenConcepts {
				seenConcepts = true
				concepts = splitConcepts(value)
			}
		case "type", "query type":
			if queryType == "" {
				queryType = strings.ToLower(value)
			}
		}
	}

	a := Analysis{
		Intent:      models.Intent(intent),
		KeyConcepts: concepts,
		QueryType:   models.QueryType(queryType),
	}
	if !isIntent(a.Intent) {
		a.Intent = models.IntentFactual
		a.Defaulted = append(a.Defaulted, fieldIntent)
	}
	if !seenConcepts {
		a.Defaulted = append(a.Defaulted, fieldConcepts)
	}
	if a.KeyConcepts == nil {
		a.KeyConcepts = []string{}
	}
	if !isQueryType(a.QueryType) {
		a.QueryType = models.QueryTypeSimple
		a.Defaulted = append(a.Defaulted, fieldQueryType)
	}
	return a
}

func normalizeLabel(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "-*•#0123456789.) ")
	s = strings.Trim(s, "*_ ")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func stripBrackets(s string) string {
	s = strings.Trim(s, "*_ ")
	if len(s) >= 2 && s[0] == '[' && s[len(s)-1] == ']' {
		s = s[1 : len(s)-1]
	}
	return strings.TrimSpace(s)
}

func splitConcepts(s string) []string {
	out := make([]string, 0, 4)
	for _, c := range strings.Split(s, ",") {
		c = strings.Trim(strings.TrimSpace(c), `"'`)
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```text")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}

func isIntent(x models.Intent) bool {
	switch x {
	case models.IntentFactual, models.IntentComparison, models.IntentExplanation, models.IntentDefinition:
		return true
	default:
		return false
	}
}

func isQueryType(x models.QueryType) bool {
	switch x {
	case models.QueryTypeSimple, models.QueryTypeComplex, models.QueryTypeMultiPart:
		return true
	default:
		return false
	}
}
