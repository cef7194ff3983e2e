package types

// IngestMetadata is the caller-supplied description of an uploaded file or
// fetched page.
type IngestMetadata struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	RelatedTo   EntityRef `json:"related_to"`
}

// IngestURLRequest ingests the text content of a web page.
type IngestURLRequest struct {
	URL      string         `json:"url"`
	Metadata IngestMetadata `json:"metadata"`
}

// IngestTextRequest indexes a manually authored note.
type IngestTextRequest struct {
	Content   string     `json:"content"`
	Label     string     `json:"label,omitempty"`
	RelatedTo *EntityRef `json:"related_to,omitempty"`
}

// SearchRequest is the query-string shape of the search endpoint.
type SearchRequest struct {
	Query      string  `form:"q"`
	Mode       string  `form:"mode,default=semantic"`
	Limit      int     `form:"limit,default=20"`
	Threshold  float64 `form:"threshold"`
	EntityType string  `form:"entity_type"`
	EntityID   int64   `form:"entity_id"`
	Content    bool    `form:"content"`
}
