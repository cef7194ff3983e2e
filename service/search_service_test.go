package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsgraph/knowledge-be/database"
	"github.com/opsgraph/knowledge-be/types"
)

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)

	// Zero norm on either side scores zero instead of dividing by zero.
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
	assert.Equal(t, 0.0, CosineSimilarity(nil, []float32{1, 1}))

	// Mismatched lengths compare over the shorter prefix.
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2}, []float32{1, 2, 99}), 1e-9)
}

func newTestSearchService(t *testing.T, store *fakeStore) (*SearchService, *EmbeddingService) {
	t.Helper()
	embedder, err := NewEmbeddingService(EmbeddingConfig{AllowFallback: true})
	require.NoError(t, err)
	vectors := database.NewQdrantStore(database.QdrantConfig{})
	return NewSearchService(store, vectors, embedder, SearchConfig{}), embedder
}

func TestSemanticFallbackRanksExactMatchFirst(t *testing.T) {
	store := newFakeStore()
	svc, embedder := newTestSearchService(t, store)

	ctx := context.Background()
	matching, err := embedder.Embed(ctx, "replace the hydraulic filter")
	require.NoError(t, err)
	unrelated, err := embedder.Embed(ctx, "quarterly vendor invoice summary")
	require.NoError(t, err)

	store.recent = []types.Snippet{
		{ID: 1, Label: "invoices", Content: "quarterly vendor invoice summary", Embedding: types.EncodeVector(unrelated.Vector)},
		{ID: 2, Label: "filter guide", Content: "replace the hydraulic filter", Embedding: types.EncodeVector(matching.Vector)},
		{ID: 3, Label: "not embedded yet", Content: "no vector"},
	}

	resp, err := svc.Search(ctx, types.SearchOptions{
		Query: "replace the hydraulic filter",
		Mode:  types.SearchSemantic,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)

	assert.Equal(t, int64(2), resp.Results[0].ID)
	require.NotNil(t, resp.Results[0].Score)
	assert.InDelta(t, 1.0, *resp.Results[0].Score, 1e-6)

	require.NotNil(t, resp.Stats)
	assert.True(t, resp.Stats.UsedFallback)
	assert.Equal(t, ProviderMock, resp.Stats.Provider)
	assert.Equal(t, MockDimension, resp.Stats.VectorDimension)
}

func TestSemanticThresholdDropsWeakHits(t *testing.T) {
	store := newFakeStore()
	svc, embedder := newTestSearchService(t, store)

	ctx := context.Background()
	matching, err := embedder.Embed(ctx, "network switch configuration")
	require.NoError(t, err)
	unrelated, err := embedder.Embed(ctx, "catering menu for the summer party")
	require.NoError(t, err)

	store.recent = []types.Snippet{
		{ID: 1, Content: "network switch configuration", Embedding: types.EncodeVector(matching.Vector)},
		{ID: 2, Content: "catering menu for the summer party", Embedding: types.EncodeVector(unrelated.Vector)},
	}

	resp, err := svc.Search(ctx, types.SearchOptions{
		Query:     "network switch configuration",
		Mode:      types.SearchSemantic,
		Threshold: 0.99,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, int64(1), resp.Results[0].ID)
}

func TestSemanticEntityHintReachesStore(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestSearchService(t, store)

	_, err := svc.Search(context.Background(), types.SearchOptions{
		Query:  "pump",
		Mode:   types.SearchSemantic,
		Entity: &types.EntityRef{Type: types.EntityTicket, ID: 42},
	})
	require.NoError(t, err)
	require.NotNil(t, store.lastRecentEntity)
	assert.Equal(t, types.EntityTicket, store.lastRecentEntity.Type)
	assert.Equal(t, int64(42), store.lastRecentEntity.ID)
}

func TestLexicalSearch(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestSearchService(t, store)
	store.lexical = []types.Snippet{
		{ID: 5, Label: "runbook", Content: "restart the ingestion worker"},
		{ID: 6, Content: "unlabeled snippet"},
	}

	resp, err := svc.Search(context.Background(), types.SearchOptions{
		Query:          "restart",
		Mode:           types.SearchLexical,
		IncludeContent: true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Nil(t, resp.Stats)

	assert.Equal(t, "runbook", resp.Results[0].Title)
	assert.Nil(t, resp.Results[0].Score)
	require.NotNil(t, resp.Results[0].Content)
	assert.Equal(t, "restart the ingestion worker", *resp.Results[0].Content)

	// Unlabeled snippets still get a usable title.
	assert.Equal(t, "Snippet 6", resp.Results[1].Title)
}

func TestSearchValidation(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestSearchService(t, store)

	_, err := svc.Search(context.Background(), types.SearchOptions{Query: "   "})
	assert.Error(t, err)

	_, err = svc.Search(context.Background(), types.SearchOptions{
		Query:  "q",
		Entity: &types.EntityRef{Type: "warehouse", ID: 1},
	})
	assert.Error(t, err)
}

func TestSearchLimitClamped(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestSearchService(t, store)

	_, err := svc.Search(context.Background(), types.SearchOptions{
		Query: "anything",
		Mode:  types.SearchLexical,
		Limit: 5000,
	})
	require.NoError(t, err)
	assert.Equal(t, maxSearchLimit, store.lastLexicalLimit)

	_, err = svc.Search(context.Background(), types.SearchOptions{
		Query: "anything",
		Mode:  types.SearchLexical,
	})
	require.NoError(t, err)
	assert.Equal(t, defaultSearchLimit, store.lastLexicalLimit)
}
