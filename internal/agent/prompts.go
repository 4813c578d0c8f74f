package agent

import (
	"strings"

	"docqa/internal/models"
)

const AnalysisPromptTemplate = `Analyze this user query and provide:
1. Intent (factual, comparison, explanation, definition)
2. Key concepts (important terms/entities)
3. Query type (simple, complex, multi-part)

Query: {query}
Context: {context}

Respond in format:
Intent: [intent]
Concepts: [concept1, concept2, ...]
Type: [type]`

const SynthesisPromptTemplate = `Based on the retrieved documents and conversation context, provide a comprehensive answer.

Query: {query}
Intent: {intent}
Key Concepts: {key_concepts}

Previous Context: {context}

Retrieved Documents:
{doc_context}

Provide a clear, well-sourced answer that addresses the user's query.`

func BuildAnalysisPrompt(query, conversationContext string) string {
	return strings.NewReplacer(
		"{query}", query,
		"{context}", conversationContext,
	).Replace(AnalysisPromptTemplate)
}

func BuildSynthesisPrompt(st *models.QueryState) string {
	intent := ""
	if st.Intent != nil {
		intent = string(*st.Intent)
	}
	return strings.NewReplacer(
		"{query}", st.OriginalQuery,
		"{intent}", intent,
		"{key_concepts}", strings.Join(st.KeyConcepts, ", "),
		"{context}", st.ConversationContext,
		"{doc_context}", DocumentContext(st.RetrievedChunks),
	).Replace(SynthesisPromptTemplate)
}

// DocumentContext lists retrieved chunks in rank order, one block per chunk.
func DocumentContext(results []models.SearchResult) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, "Source: "+r.Filename+"\nContent: "+r.Content)
	}
	return strings.Join(blocks, "\n\n")
}
