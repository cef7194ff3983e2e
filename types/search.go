package types

// SearchMode selects lexical substring matching or semantic vector search.
type SearchMode string

const (
	SearchLexical  SearchMode = "lexical"
	SearchSemantic SearchMode = "semantic"
)

// SearchOptions is the orchestrator input. Entity is an optional hint that
// narrows the candidate set to snippets linked to one ticket/asset/site.
type SearchOptions struct {
	Query          string
	Mode           SearchMode
	Limit          int
	Threshold      float64
	Entity         *EntityRef
	IncludeContent bool
}

// SearchResult has the same shape regardless of which backend served the
// query. Content and Score are nil when the serving path has no value for
// them (lexical mode, content excluded).
type SearchResult struct {
	ID      int64    `json:"id"`
	Title   string   `json:"title"`
	Content *string  `json:"content"`
	Score   *float64 `json:"similarity_score"`
}

// SearchStats describes how a semantic query was served.
type SearchStats struct {
	TotalResults    int    `json:"total_results"`
	SearchTimeMs    int64  `json:"search_time_ms"`
	EmbeddingModel  string `json:"embedding_model,omitempty"`
	Provider        string `json:"provider,omitempty"`
	VectorDimension int    `json:"vector_dimension,omitempty"`
	UsedFallback    bool   `json:"used_fallback"`
}
