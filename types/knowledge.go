package types

import "time"

// EntityType names the domain entities a document can be linked to.
type EntityType string

const (
	EntityTicket EntityType = "ticket"
	EntityAsset  EntityType = "asset"
	EntityVendor EntityType = "vendor"
	EntitySite   EntityType = "site"
)

// ValidEntityType reports whether t is one of the known entity types.
func ValidEntityType(t EntityType) bool {
	switch t {
	case EntityTicket, EntityAsset, EntityVendor, EntitySite:
		return true
	}
	return false
}

// EntityRef points at a single domain entity.
type EntityRef struct {
	Type EntityType `json:"type"`
	ID   int64      `json:"id"`
}

// Snippet source kinds. A snippet either belongs to a document produced by
// ingestion, was indexed directly against an entity, or was authored by hand.
const (
	SourceDocument = "document"
	SourceTicket   = "ticket"
	SourceAsset    = "asset"
	SourceManual   = "manual"
)

// Snippet is one chunk of extracted text plus its optional embedding vector.
// The embedding fields stay zero until a vector is computed; embedding bytes
// are little-endian float32.
type Snippet struct {
	ID             int64     `db:"snippet_id" json:"id"`
	SourceKind     string    `db:"source_kind" json:"source_kind"`
	SourceID       int64     `db:"source_id" json:"source_id"`
	Label          string    `db:"label" json:"label"`
	Content        string    `db:"content" json:"content"`
	Embedding      []byte    `db:"embedding" json:"-"`
	EmbeddingModel string    `db:"embedding_model" json:"embedding_model,omitempty"`
	EmbeddingDim   int       `db:"embedding_dim" json:"embedding_dim,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Document is the logical unit for one ingested source item (file or URL).
type Document struct {
	ID           int64     `db:"document_id" json:"id"`
	SourceSystem string    `db:"source_system" json:"source_system"`
	ExternalKey  string    `db:"external_key" json:"external_key"`
	Title        string    `db:"title" json:"title"`
	MimeType     string    `db:"mime_type" json:"mime_type"`
	Summary      string    `db:"summary" json:"summary"`
	Hash         string    `db:"hash" json:"hash"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Attachment is the stored-file record behind a document ingested from an
// upload. URL and manual ingestion carry no attachment.
type Attachment struct {
	ID        int64     `db:"attachment_id" json:"id"`
	TicketID  *int64    `db:"ticket_id" json:"ticket_id,omitempty"`
	AssetID   *int64    `db:"asset_id" json:"asset_id,omitempty"`
	VendorID  *int64    `db:"vendor_id" json:"vendor_id,omitempty"`
	SiteID    *int64    `db:"site_id" json:"site_id,omitempty"`
	URI       string    `db:"uri" json:"uri"`
	Kind      string    `db:"kind" json:"kind"`
	MimeType  string    `db:"mime_type" json:"mime_type"`
	SizeBytes int64     `db:"size_bytes" json:"size_bytes"`
	SHA256    string    `db:"content_sha256" json:"content_sha256"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// RelationshipEdge links a document to a domain entity. Created once at
// ingestion time, never updated.
type RelationshipEdge struct {
	DocumentID int64      `db:"document_id" json:"document_id"`
	EntityType EntityType `db:"entity_type" json:"entity_type"`
	EntityID   int64      `db:"entity_id" json:"entity_id"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// EmbeddingUsage is an aggregate observability record written once per
// ingestion request.
type EmbeddingUsage struct {
	ID          int64     `db:"usage_id" json:"id"`
	Model       string    `db:"model" json:"model"`
	Provider    string    `db:"provider" json:"provider"`
	VectorCount int       `db:"vector_count" json:"vector_count"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// EntityContext bundles everything linked to one entity for context queries.
type EntityContext struct {
	Attachments []Attachment `json:"attachments"`
	Documents   []Document   `json:"documents"`
	Snippets    []Snippet    `json:"snippets"`
}
