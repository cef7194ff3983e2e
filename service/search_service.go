package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/opsgraph/knowledge-be/database"
	"github.com/opsgraph/knowledge-be/types"
)

const (
	defaultSearchLimit  = 20
	maxSearchLimit      = 100
	defaultThreshold    = 0.1
	defaultRecentWindow = 200
)

// SearchConfig tunes the retrieval orchestrator.
type SearchConfig struct {
	// RecentWindow caps the candidate pool the in-process scorer scans when
	// the vector store is unavailable. Recall degrades beyond this window.
	RecentWindow int
	// Threshold is the default minimum similarity when the request carries
	// none.
	Threshold float64
}

// SearchService dispatches queries to lexical substring matching or semantic
// vector search, falling back to an in-process cosine scan over recent
// snippets when the vector store is disabled or returns nothing usable.
type SearchService struct {
	store        database.KnowledgeStore
	vectors      *database.QdrantStore
	embedder     Embedder
	recentWindow int
	threshold    float64
}

func NewSearchService(store database.KnowledgeStore, vectors *database.QdrantStore, embedder Embedder, cfg SearchConfig) *SearchService {
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = defaultRecentWindow
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = defaultThreshold
	}
	return &SearchService{
		store:        store,
		vectors:      vectors,
		embedder:     embedder,
		recentWindow: cfg.RecentWindow,
		threshold:    cfg.Threshold,
	}
}

// Search runs one query. The limit is clamped to [1, 100]; the similarity
// threshold is applied before the limit so low-scoring hits never displace
// better ones.
func (s *SearchService) Search(ctx context.Context, opts types.SearchOptions) (*types.SearchResponse, error) {
	opts.Query = strings.TrimSpace(opts.Query)
	if opts.Query == "" {
		return nil, fmt.Errorf("search query must not be empty")
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultSearchLimit
	}
	if opts.Limit > maxSearchLimit {
		opts.Limit = maxSearchLimit
	}
	if opts.Threshold <= 0 {
		opts.Threshold = s.threshold
	}
	if opts.Entity != nil && !types.ValidEntityType(opts.Entity.Type) {
		return nil, fmt.Errorf("unknown entity type %q", opts.Entity.Type)
	}

	if opts.Mode == types.SearchLexical {
		return s.lexical(ctx, opts)
	}
	return s.semantic(ctx, opts)
}

func (s *SearchService) lexical(ctx context.Context, opts types.SearchOptions) (*types.SearchResponse, error) {
	snippets, err := s.store.LexicalSearch(ctx, opts.Query, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("lexical search failed: %w", err)
	}
	results := make([]types.SearchResult, 0, len(snippets))
	for _, sn := range snippets {
		results = append(results, snippetResult(sn, nil, opts.IncludeContent))
	}
	return &types.SearchResponse{Query: opts.Query, Results: results}, nil
}

func (s *SearchService) semantic(ctx context.Context, opts types.SearchOptions) (*types.SearchResponse, error) {
	start := time.Now()

	embedded, err := s.embedder.Embed(ctx, opts.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	var results []types.SearchResult
	usedFallback := true
	if filter, ok := entityFilter(opts.Entity); s.vectors.Enabled() && ok {
		if hits := s.vectors.Search(ctx, embedded.Vector, opts.Limit, filter); len(hits) > 0 {
			results, err = s.hydrate(ctx, hits, opts)
			if err != nil {
				return nil, err
			}
			usedFallback = false
		}
	}
	if usedFallback {
		results, err = s.scoreRecent(ctx, embedded.Vector, opts)
		if err != nil {
			return nil, err
		}
	}

	return &types.SearchResponse{
		Query:   opts.Query,
		Results: results,
		Stats: &types.SearchStats{
			TotalResults:    len(results),
			SearchTimeMs:    time.Since(start).Milliseconds(),
			EmbeddingModel:  embedded.Model,
			Provider:        embedded.Provider,
			VectorDimension: len(embedded.Vector),
			UsedFallback:    usedFallback,
		},
	}, nil
}

// hydrate maps vector-store hits back onto relational rows, preserving the
// store's ranking. Hits whose snippet row has since been deleted are dropped.
func (s *SearchService) hydrate(ctx context.Context, hits []database.ScoredPoint, opts types.SearchOptions) ([]types.SearchResult, error) {
	ids := make([]int64, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	snippets, err := s.store.SnippetsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to hydrate search hits: %w", err)
	}
	byID := make(map[int64]types.Snippet, len(snippets))
	for _, sn := range snippets {
		byID[sn.ID] = sn
	}

	results := make([]types.SearchResult, 0, len(hits))
	for _, h := range hits {
		if h.Score < opts.Threshold {
			continue
		}
		sn, ok := byID[h.ID]
		if !ok {
			continue
		}
		score := h.Score
		results = append(results, snippetResult(sn, &score, opts.IncludeContent))
		if len(results) == opts.Limit {
			break
		}
	}
	return results, nil
}

// scoreRecent is the in-process fallback: rank a bounded window of recent
// snippets by cosine similarity against the query vector. Snippets without a
// stored embedding are skipped.
func (s *SearchService) scoreRecent(ctx context.Context, query []float32, opts types.SearchOptions) ([]types.SearchResult, error) {
	candidates, err := s.store.RecentSnippets(ctx, s.recentWindow, opts.Entity)
	if err != nil {
		return nil, fmt.Errorf("failed to load fallback candidates: %w", err)
	}

	type scored struct {
		snippet types.Snippet
		score   float64
	}
	ranked := make([]scored, 0, len(candidates))
	for _, sn := range candidates {
		if len(sn.Embedding) == 0 {
			continue
		}
		sim := CosineSimilarity(query, types.DecodeVector(sn.Embedding))
		if sim < opts.Threshold {
			continue
		}
		ranked = append(ranked, scored{snippet: sn, score: sim})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > opts.Limit {
		ranked = ranked[:opts.Limit]
	}

	results := make([]types.SearchResult, 0, len(ranked))
	for _, r := range ranked {
		score := r.score
		results = append(results, snippetResult(r.snippet, &score, opts.IncludeContent))
	}
	return results, nil
}

// entityFilter translates an entity hint into a server-side payload filter.
// Vendors have no payload key in the vector store, so vendor-scoped queries
// report !ok and are served by the relational fallback instead.
func entityFilter(entity *types.EntityRef) (*database.Filter, bool) {
	if entity == nil {
		return nil, true
	}
	var key string
	switch entity.Type {
	case types.EntityTicket:
		key = "ticket_id"
	case types.EntityAsset:
		key = "asset_id"
	case types.EntitySite:
		key = "site_id"
	default:
		return nil, false
	}
	return &database.Filter{
		Must: []database.FilterCondition{
			{Key: key, Match: &database.MatchClause{Value: entity.ID}},
		},
	}, true
}

func snippetResult(sn types.Snippet, score *float64, includeContent bool) types.SearchResult {
	r := types.SearchResult{ID: sn.ID, Title: sn.Label, Score: score}
	if r.Title == "" {
		r.Title = fmt.Sprintf("Snippet %d", sn.ID)
	}
	if includeContent {
		content := sn.Content
		r.Content = &content
	}
	return r
}

// CosineSimilarity computes dot(a,b) / (||a||*||b||) over the shorter of the
// two lengths, returning 0 when either norm is zero. Tolerating a length
// mismatch keeps queries serviceable across an embedding-model migration.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
