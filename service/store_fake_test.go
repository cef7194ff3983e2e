package service

import (
	"context"

	"github.com/opsgraph/knowledge-be/types"
)

// fakeStore is an in-memory KnowledgeStore double recording what the
// services hand it.
type fakeStore struct {
	nextID int64

	savedAtt      *types.Attachment
	savedDoc      *types.Document
	savedSnippets []*types.Snippet
	savedEdges    []types.RelationshipEdge
	created       []*types.Snippet
	usage         []*types.EmbeddingUsage

	byHash  map[string]*types.Document
	recent  []types.Snippet
	lexical []types.Snippet

	lastLexicalLimit int
	lastRecentLimit  int
	lastRecentEntity *types.EntityRef
}

func newFakeStore() *fakeStore {
	return &fakeStore{byHash: map[string]*types.Document{}}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) SaveIngestion(ctx context.Context, att *types.Attachment, doc *types.Document, snippets []*types.Snippet, edges []types.RelationshipEdge) error {
	if att != nil {
		att.ID = f.id()
	}
	doc.ID = f.id()
	for _, sn := range snippets {
		sn.ID = f.id()
		sn.SourceKind = types.SourceDocument
		sn.SourceID = doc.ID
	}
	for i := range edges {
		edges[i].DocumentID = doc.ID
	}
	f.savedAtt = att
	f.savedDoc = doc
	f.savedSnippets = snippets
	f.savedEdges = edges
	return nil
}

func (f *fakeStore) CreateSnippet(ctx context.Context, sn *types.Snippet) error {
	sn.ID = f.id()
	f.created = append(f.created, sn)
	return nil
}

func (f *fakeStore) DocumentByHash(ctx context.Context, hash string) (*types.Document, error) {
	return f.byHash[hash], nil
}

func (f *fakeStore) RecentSnippets(ctx context.Context, limit int, entity *types.EntityRef) ([]types.Snippet, error) {
	f.lastRecentLimit = limit
	f.lastRecentEntity = entity
	return f.recent, nil
}

func (f *fakeStore) SnippetsByIDs(ctx context.Context, ids []int64) ([]types.Snippet, error) {
	var out []types.Snippet
	for _, id := range ids {
		for _, sn := range f.recent {
			if sn.ID == id {
				out = append(out, sn)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) LexicalSearch(ctx context.Context, query string, limit int) ([]types.Snippet, error) {
	f.lastLexicalLimit = limit
	return f.lexical, nil
}

func (f *fakeStore) PendingEmbeddings(ctx context.Context, limit int) ([]types.Snippet, error) {
	return nil, nil
}

func (f *fakeStore) UpdateSnippetEmbedding(ctx context.Context, id int64, embedding []byte, model string, dim int) error {
	return nil
}

func (f *fakeStore) EmbeddedSnippets(ctx context.Context, afterID int64, limit int) ([]types.Snippet, error) {
	return nil, nil
}

func (f *fakeStore) EntityContext(ctx context.Context, ref types.EntityRef) (*types.EntityContext, error) {
	return &types.EntityContext{}, nil
}

func (f *fakeStore) RecordEmbeddingUsage(ctx context.Context, u *types.EmbeddingUsage) error {
	f.usage = append(f.usage, u)
	return nil
}

func (f *fakeStore) Close() error { return nil }
