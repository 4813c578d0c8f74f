package agent

import (
	"testing"

	"docqa/internal/models"

	"github.com/stretchr/testify/require"
)

func TestParseAnalysis(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		intent    models.Intent
		concepts  []string
		queryType models.QueryType
		defaulted []string
	}{
		{
			name:      "well formed",
			raw:       "Intent: definition\nConcepts: photosynthesis, chlorophyll\nType: simple",
			intent:    models.IntentDefinition,
			concepts:  []string{"photosynthesis", "chlorophyll"},
			queryType: models.QueryTypeSimple,
		},
		{
			name:      "numbered labels brackets and mixed case",
			raw:       "1. **Intent**: [Comparison]\n2. Key Concepts: [cats, dogs]\n3. Query Type: Complex",
			intent:    models.IntentComparison,
			concepts:  []string{"cats", "dogs"},
			queryType: models.QueryTypeComplex,
		},
		{
			name:      "order independent",
			raw:       "Type: multi-part\nIntent: explanation\nConcepts: tides",
			intent:    models.IntentExplanation,
			concepts:  []string{"tides"},
			queryType: models.QueryTypeMultiPart,
		},
		{
			name:      "empty output",
			raw:       "",
			intent:    models.IntentFactual,
			concepts:  []string{},
			queryType: models.QueryTypeSimple,
			defaulted: []string{fieldIntent, fieldConcepts, fieldQueryType},
		},
		{
			name:      "unknown intent only",
			raw:       "Intent: curiosity\nConcepts: sky\nType: simple",
			intent:    models.IntentFactual,
			concepts:  []string{"sky"},
			queryType: models.QueryTypeSimple,
			defaulted: []string{fieldIntent},
		},
		{
			name:      "invalid type only",
			raw:       "Intent: factual\nConcepts: sky\nType: elaborate",
			intent:    models.IntentFactual,
			concepts:  []string{"sky"},
			queryType: models.QueryTypeSimple,
			defaulted: []string{fieldQueryType},
		},
		{
			name:      "missing concepts line",
			raw:       "Intent: factual\nType: simple",
			intent:    models.IntentFactual,
			concepts:  []string{},
			queryType: models.QueryTypeSimple,
			defaulted: []string{fieldConcepts},
		},
		{
			name:      "prose without labels",
			raw:       "The user wants to know about the sky.",
			intent:    models.IntentFactual,
			concepts:  []string{},
			queryType: models.QueryTypeSimple,
			defaulted: []string{fieldIntent, fieldConcepts, fieldQueryType},
		},
		{
			name:      "code fenced",
			raw:       "```\nIntent: factual\nConcepts: water\nType: simple\n```",
			intent:    models.IntentFactual,
			concepts:  []string{"water"},
			queryType: models.QueryTypeSimple,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAnalysis(tt.raw)
			require.Equal(t, tt.intent, got.Intent)
			require.Equal(t, tt.concepts, got.KeyConcepts)
			require.Equal(t, tt.queryType, got.QueryType)
			require.Equal(t, tt.defaulted, got.Defaulted)
		})
	}
}

func TestChooseStrategyIsTotal(t *testing.T) {
	intents := []models.Intent{models.IntentFactual, models.IntentComparison, models.IntentExplanation, models.IntentDefinition}
	types := []models.QueryType{models.QueryTypeSimple, models.QueryTypeComplex, models.QueryTypeMultiPart}
	for _, qt := range types {
		for _, in := range intents {
			strategy, params := ChooseStrategy(qt, in)
			switch {
			case qt == models.QueryTypeComplex:
				require.Equal(t, models.StrategyHybridSemanticFirst, strategy)
				require.Equal(t, models.SearchParams{Limit: 10, SemanticWeight: 0.7}, params)
			case in == models.IntentDefinition:
				require.Equal(t, models.StrategySemanticFocused, strategy)
				require.Equal(t, models.SearchParams{Limit: 5, SemanticWeight: 0.9}, params)
			default:
				require.Equal(t, models.StrategyBalancedHybrid, strategy)
				require.Equal(t, models.SearchParams{Limit: 7, SemanticWeight: 0.5}, params)
			}
		}
	}
}

func TestDocumentContextKeepsRankOrder(t *testing.T) {
	got := DocumentContext([]models.SearchResult{
		{Filename: "b.txt", Content: "second doc"},
		{Filename: "a.txt", Content: "first doc"},
	})
	require.Equal(t, "Source: b.txt\nContent: second doc\n\nSource: a.txt\nContent: first doc", got)
}
