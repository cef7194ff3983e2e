package database

import (
	"context"

	"github.com/opsgraph/knowledge-be/types"
)

// KnowledgeStore is the relational collaborator of the retrieval subsystem.
// It persists documents, snippets, attachments and relationship edges, and
// answers the bounded candidate queries the fallback scorer depends on.
type KnowledgeStore interface {
	// SaveIngestion writes one ingestion's attachment (may be nil), document,
	// snippets and edges in a single transaction and backfills their ids.
	SaveIngestion(ctx context.Context, att *types.Attachment, doc *types.Document, snippets []*types.Snippet, edges []types.RelationshipEdge) error

	// CreateSnippet persists a standalone snippet (manual notes, direct
	// entity indexing).
	CreateSnippet(ctx context.Context, s *types.Snippet) error

	// DocumentByHash returns the most recent document with the given content
	// hash, or nil. Used for dedup signaling only.
	DocumentByHash(ctx context.Context, hash string) (*types.Document, error)

	// RecentSnippets returns up to limit snippets ordered newest first,
	// optionally narrowed to snippets whose owning document links to entity.
	RecentSnippets(ctx context.Context, limit int, entity *types.EntityRef) ([]types.Snippet, error)

	// SnippetsByIDs hydrates snippets for a list of ids; missing ids are
	// silently skipped.
	SnippetsByIDs(ctx context.Context, ids []int64) ([]types.Snippet, error)

	// LexicalSearch substring-matches label/content/title, newest first.
	LexicalSearch(ctx context.Context, query string, limit int) ([]types.Snippet, error)

	// PendingEmbeddings returns snippets with no stored vector, oldest first.
	PendingEmbeddings(ctx context.Context, limit int) ([]types.Snippet, error)

	// UpdateSnippetEmbedding backfills the embedding columns of one snippet.
	UpdateSnippetEmbedding(ctx context.Context, id int64, embedding []byte, model string, dim int) error

	// EmbeddedSnippets pages through snippets with non-null embeddings by
	// ascending id, for vector index rebuilds.
	EmbeddedSnippets(ctx context.Context, afterID int64, limit int) ([]types.Snippet, error)

	// EntityContext returns the attachments, documents and snippets linked
	// to one entity.
	EntityContext(ctx context.Context, ref types.EntityRef) (*types.EntityContext, error)

	// RecordEmbeddingUsage stores one aggregate usage row.
	RecordEmbeddingUsage(ctx context.Context, u *types.EmbeddingUsage) error

	Close() error
}
