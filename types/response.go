package types

// DataResponse is the common HTTP envelope.
type DataResponse struct {
	Status  bool        `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// IngestResult reports what one ingestion request produced.
type IngestResult struct {
	AttachmentID     int64  `json:"attachment_id,omitempty"`
	DocumentID       int64  `json:"document_id,omitempty"`
	SnippetIDs       []int64 `json:"snippet_ids"`
	SnippetCount     int    `json:"snippet_count"`
	ExtractedChars   int    `json:"extracted_chars"`
	EmbeddingModel   string `json:"embedding_model,omitempty"`
	Provider         string `json:"provider,omitempty"`
	Hash             string `json:"hash,omitempty"`
	DuplicateOfDocID int64  `json:"duplicate_of_document_id,omitempty"`
	VectorIndexed    bool   `json:"vector_indexed"`
}

// SearchResponse pairs results with serving stats.
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Stats   *SearchStats   `json:"stats,omitempty"`
}
