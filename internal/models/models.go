package models

import "time"

const (
	FormatPDF  = "pdf"
	FormatDOCX = "docx"
	FormatText = "text"
)

type Document struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	RawFormat  string `json:"raw_format"`
}

type Chunk struct {
	ChunkID    string    `json:"chunk_id"`
	DocumentID string    `json:"document_id"`
	Filename   string    `json:"filename"`
	Ordinal    int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"-"`
}

type ConversationTurn struct {
	TurnID    string    `json:"interaction_id"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Sources   []string  `json:"sources"`
}

type SearchResult struct {
	Content        string  `json:"content"`
	Filename       string  `json:"filename"`
	DocumentID     string  `json:"document_id"`
	ChunkIndex     int     `json:"chunk_index"`
	RelevanceScore float64 `json:"relevance_score"`
}

type Intent string

const (
	IntentFactual     Intent = "factual"
	IntentComparison  Intent = "comparison"
	IntentExplanation Intent = "explanation"
	IntentDefinition  Intent = "definition"
)

type QueryType string

const (
	QueryTypeSimple    QueryType = "simple"
	QueryTypeComplex   QueryType = "complex"
	QueryTypeMultiPart QueryType = "multi-part"
)

type Strategy string

const (
	StrategyHybridSemanticFirst Strategy = "hybrid_semantic_first"
	StrategySemanticFocused     Strategy = "semantic_focused"
	StrategyBalancedHybrid      Strategy = "balanced_hybrid"
)

type SearchParams struct {
	Limit          int     `json:"limit"`
	SemanticWeight float64 `json:"semantic_weight"`
}

// QueryState is owned by a single in-flight query. Pointer fields stay nil
// until the stage that fills them has run.
type QueryState struct {
	OriginalQuery       string
	SessionID           string
	ConversationContext string
	Intent              *Intent
	KeyConcepts         []string
	QueryType           *QueryType
	SearchStrategy      *Strategy
	SearchParams        SearchParams
	RetrievedChunks     []SearchResult
	FinalAnswer         *string
	Sources             []string
	ProcessingSteps     []string
}

type AgentAnalysis struct {
	Intent         Intent   `json:"intent"`
	KeyConcepts    []string `json:"key_concepts"`
	SearchStrategy Strategy `json:"search_strategy"`
}

type Answer struct {
	Answer          string        `json:"answer"`
	SessionID       string        `json:"session_id"`
	ProcessingSteps []string      `json:"processing_steps"`
	AgentAnalysis   AgentAnalysis `json:"agent_analysis"`
	Sources         []string      `json:"sources"`
	Degraded        []string      `json:"degraded,omitempty"`
}
