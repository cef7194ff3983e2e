package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/opsgraph/knowledge-be/types"
)

// SQLiteStore implements KnowledgeStore on SQLite via sqlx.
type SQLiteStore struct {
	db *sqlx.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS attachments (
		attachment_id  INTEGER PRIMARY KEY AUTOINCREMENT,
		ticket_id      INTEGER,
		asset_id       INTEGER,
		vendor_id      INTEGER,
		site_id        INTEGER,
		uri            TEXT NOT NULL,
		kind           TEXT NOT NULL,
		mime_type      TEXT NOT NULL,
		size_bytes     INTEGER NOT NULL DEFAULT 0,
		content_sha256 TEXT NOT NULL DEFAULT '',
		created_at     DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS documents (
		document_id   INTEGER PRIMARY KEY AUTOINCREMENT,
		source_system TEXT NOT NULL,
		external_key  TEXT NOT NULL DEFAULT '',
		title         TEXT NOT NULL,
		mime_type     TEXT NOT NULL DEFAULT '',
		summary       TEXT NOT NULL DEFAULT '',
		hash          TEXT NOT NULL DEFAULT '',
		created_at    DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS snippets (
		snippet_id      INTEGER PRIMARY KEY AUTOINCREMENT,
		source_kind     TEXT NOT NULL,
		source_id       INTEGER NOT NULL DEFAULT 0,
		label           TEXT NOT NULL DEFAULT '',
		content         TEXT NOT NULL,
		embedding       BLOB,
		embedding_model TEXT NOT NULL DEFAULT '',
		embedding_dim   INTEGER NOT NULL DEFAULT 0,
		created_at      DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS relationship_edges (
		document_id INTEGER NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id   INTEGER NOT NULL,
		created_at  DATETIME NOT NULL,
		PRIMARY KEY (document_id, entity_type, entity_id)
	)`,
	`CREATE TABLE IF NOT EXISTS embedding_usage (
		usage_id     INTEGER PRIMARY KEY AUTOINCREMENT,
		model        TEXT NOT NULL,
		provider     TEXT NOT NULL,
		vector_count INTEGER NOT NULL,
		created_at   DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_snippets_source ON snippets(source_kind, source_id)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(hash)`,
	`CREATE INDEX IF NOT EXISTS idx_edges_entity ON relationship_edges(entity_type, entity_id)`,
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists. Use ":memory:" for throwaway stores.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) SaveIngestion(ctx context.Context, att *types.Attachment, doc *types.Document, snippets []*types.Snippet, edges []types.RelationshipEdge) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	if att != nil {
		att.CreatedAt = now
		res, err := tx.NamedExecContext(ctx, `
			INSERT INTO attachments (ticket_id, asset_id, vendor_id, site_id, uri, kind, mime_type, size_bytes, content_sha256, created_at)
			VALUES (:ticket_id, :asset_id, :vendor_id, :site_id, :uri, :kind, :mime_type, :size_bytes, :content_sha256, :created_at)`, att)
		if err != nil {
			return fmt.Errorf("failed to insert attachment: %w", err)
		}
		if att.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		doc.ExternalKey = fmt.Sprintf("%d", att.ID)
	}

	doc.CreatedAt = now
	res, err := tx.NamedExecContext(ctx, `
		INSERT INTO documents (source_system, external_key, title, mime_type, summary, hash, created_at)
		VALUES (:source_system, :external_key, :title, :mime_type, :summary, :hash, :created_at)`, doc)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	if doc.ID, err = res.LastInsertId(); err != nil {
		return err
	}

	for _, sn := range snippets {
		sn.SourceKind = types.SourceDocument
		sn.SourceID = doc.ID
		sn.CreatedAt = now
		res, err := tx.NamedExecContext(ctx, `
			INSERT INTO snippets (source_kind, source_id, label, content, embedding, embedding_model, embedding_dim, created_at)
			VALUES (:source_kind, :source_id, :label, :content, :embedding, :embedding_model, :embedding_dim, :created_at)`, sn)
		if err != nil {
			return fmt.Errorf("failed to insert snippet: %w", err)
		}
		if sn.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}

	for i := range edges {
		edges[i].DocumentID = doc.ID
		edges[i].CreatedAt = now
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO relationship_edges (document_id, entity_type, entity_id, created_at)
			VALUES (:document_id, :entity_type, :entity_id, :created_at)`, &edges[i]); err != nil {
			return fmt.Errorf("failed to insert relationship edge: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) CreateSnippet(ctx context.Context, sn *types.Snippet) error {
	sn.CreatedAt = time.Now().UTC()
	res, err := s.db.NamedExecContext(ctx, `
		INSERT INTO snippets (source_kind, source_id, label, content, embedding, embedding_model, embedding_dim, created_at)
		VALUES (:source_kind, :source_id, :label, :content, :embedding, :embedding_model, :embedding_dim, :created_at)`, sn)
	if err != nil {
		return fmt.Errorf("failed to insert snippet: %w", err)
	}
	sn.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteStore) DocumentByHash(ctx context.Context, hash string) (*types.Document, error) {
	var doc types.Document
	err := s.db.GetContext(ctx, &doc, `
		SELECT * FROM documents WHERE hash = ? ORDER BY document_id DESC LIMIT 1`, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up document by hash: %w", err)
	}
	return &doc, nil
}

func (s *SQLiteStore) RecentSnippets(ctx context.Context, limit int, entity *types.EntityRef) ([]types.Snippet, error) {
	if limit <= 0 {
		limit = 200
	}
	var snippets []types.Snippet
	var err error
	if entity == nil {
		err = s.db.SelectContext(ctx, &snippets, `
			SELECT * FROM snippets ORDER BY snippet_id DESC LIMIT ?`, limit)
	} else {
		err = s.db.SelectContext(ctx, &snippets, `
			SELECT sn.* FROM snippets sn
			JOIN relationship_edges e
			  ON sn.source_kind = 'document' AND sn.source_id = e.document_id
			WHERE e.entity_type = ? AND e.entity_id = ?
			ORDER BY sn.snippet_id DESC LIMIT ?`, entity.Type, entity.ID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load recent snippets: %w", err)
	}
	return snippets, nil
}

func (s *SQLiteStore) SnippetsByIDs(ctx context.Context, ids []int64) ([]types.Snippet, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT * FROM snippets WHERE snippet_id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var snippets []types.Snippet
	if err := s.db.SelectContext(ctx, &snippets, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to load snippets by id: %w", err)
	}
	return snippets, nil
}

func (s *SQLiteStore) LexicalSearch(ctx context.Context, query string, limit int) ([]types.Snippet, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + query + "%"
	var snippets []types.Snippet
	err := s.db.SelectContext(ctx, &snippets, `
		SELECT sn.* FROM snippets sn
		LEFT JOIN documents d ON sn.source_kind = 'document' AND sn.source_id = d.document_id
		WHERE sn.content LIKE ? OR sn.label LIKE ? OR d.title LIKE ?
		ORDER BY sn.created_at DESC, sn.snippet_id DESC LIMIT ?`,
		pattern, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to run lexical search: %w", err)
	}
	return snippets, nil
}

func (s *SQLiteStore) PendingEmbeddings(ctx context.Context, limit int) ([]types.Snippet, error) {
	if limit <= 0 {
		limit = 5000
	}
	var snippets []types.Snippet
	err := s.db.SelectContext(ctx, &snippets, `
		SELECT * FROM snippets WHERE embedding IS NULL ORDER BY snippet_id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending snippets: %w", err)
	}
	return snippets, nil
}

func (s *SQLiteStore) UpdateSnippetEmbedding(ctx context.Context, id int64, embedding []byte, model string, dim int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE snippets SET embedding = ?, embedding_model = ?, embedding_dim = ? WHERE snippet_id = ?`,
		embedding, model, dim, id)
	if err != nil {
		return fmt.Errorf("failed to update snippet embedding: %w", err)
	}
	return nil
}

func (s *SQLiteStore) EmbeddedSnippets(ctx context.Context, afterID int64, limit int) ([]types.Snippet, error) {
	if limit <= 0 {
		limit = 200
	}
	var snippets []types.Snippet
	err := s.db.SelectContext(ctx, &snippets, `
		SELECT * FROM snippets
		WHERE snippet_id > ? AND embedding IS NOT NULL
		ORDER BY snippet_id ASC LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded snippets: %w", err)
	}
	return snippets, nil
}

func (s *SQLiteStore) EntityContext(ctx context.Context, ref types.EntityRef) (*types.EntityContext, error) {
	out := &types.EntityContext{
		Attachments: []types.Attachment{},
		Documents:   []types.Document{},
		Snippets:    []types.Snippet{},
	}

	var attColumn string
	switch ref.Type {
	case types.EntityTicket:
		attColumn = "ticket_id"
	case types.EntityAsset:
		attColumn = "asset_id"
	case types.EntityVendor:
		attColumn = "vendor_id"
	case types.EntitySite:
		attColumn = "site_id"
	default:
		return nil, fmt.Errorf("unknown entity type %q", ref.Type)
	}

	err := s.db.SelectContext(ctx, &out.Attachments, fmt.Sprintf(`
		SELECT * FROM attachments WHERE %s = ? ORDER BY created_at DESC`, attColumn), ref.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attachments: %w", err)
	}

	err = s.db.SelectContext(ctx, &out.Documents, `
		SELECT d.* FROM documents d
		JOIN relationship_edges e ON e.document_id = d.document_id
		WHERE e.entity_type = ? AND e.entity_id = ?
		ORDER BY d.created_at DESC`, ref.Type, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}

	err = s.db.SelectContext(ctx, &out.Snippets, `
		SELECT sn.* FROM snippets sn
		JOIN relationship_edges e
		  ON sn.source_kind = 'document' AND sn.source_id = e.document_id
		WHERE e.entity_type = ? AND e.entity_id = ?
		ORDER BY sn.created_at DESC`, ref.Type, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load snippets: %w", err)
	}

	return out, nil
}

func (s *SQLiteStore) RecordEmbeddingUsage(ctx context.Context, u *types.EmbeddingUsage) error {
	u.CreatedAt = time.Now().UTC()
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO embedding_usage (model, provider, vector_count, created_at)
		VALUES (:model, :provider, :vector_count, :created_at)`, u)
	if err != nil {
		return fmt.Errorf("failed to record embedding usage: %w", err)
	}
	return nil
}
