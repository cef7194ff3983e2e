package database

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/opsgraph/knowledge-be/types"
)

// QdrantStore is a soft-failing REST client over a Qdrant deployment. The
// vector store is an optional accelerator: every method catches its own
// transport and protocol errors and degrades to a neutral result, so callers
// never have to guard ingestion or search against it.
type QdrantStore struct {
	url        string
	apiKey     string
	collection string
	timeout    time.Duration
	client     *http.Client
}

// QdrantConfig carries connection details. An empty URL disables the client.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// MatchClause is an equality predicate on a payload key.
type MatchClause struct {
	Value interface{} `json:"value"`
}

// RangeClause is a numeric range predicate on a payload key.
type RangeClause struct {
	GTE *float64 `json:"gte,omitempty"`
	LTE *float64 `json:"lte,omitempty"`
}

// FilterCondition is one predicate inside a filter group.
type FilterCondition struct {
	Key   string       `json:"key"`
	Match *MatchClause `json:"match,omitempty"`
	Range *RangeClause `json:"range,omitempty"`
}

// Filter is the structured server-side filter: conjunctive Must, disjunctive
// Should and negated MustNot groups.
type Filter struct {
	Must    []FilterCondition `json:"must,omitempty"`
	Should  []FilterCondition `json:"should,omitempty"`
	MustNot []FilterCondition `json:"must_not,omitempty"`
}

// EnsureResult reports collection creation outcome.
type EnsureResult struct {
	OK      bool
	Created bool
	Err     error
}

// UpsertResult reports a point mutation outcome.
type UpsertResult struct {
	OK  bool
	Err error
}

// ScoredPoint is one search hit, ordered by descending similarity.
type ScoredPoint struct {
	ID      int64
	Score   float64
	Payload types.VectorPayload
}

func NewQdrantStore(cfg QdrantConfig) *QdrantStore {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "opsgraph_snippets"
	}
	return &QdrantStore{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: collection,
		timeout:    timeout,
		client:     &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether a connection target is configured. Every other
// operation short-circuits to a neutral result when this is false.
func (s *QdrantStore) Enabled() bool { return s.url != "" }

// Collection returns the configured collection name.
func (s *QdrantStore) Collection() string { return s.collection }

// EnsureCollection checks for the collection and creates it with the given
// vector dimension and cosine distance if absent.
func (s *QdrantStore) EnsureCollection(ctx context.Context, dimension int) EnsureResult {
	if !s.Enabled() {
		return EnsureResult{OK: false, Err: fmt.Errorf("vector store not configured")}
	}
	if dimension <= 0 {
		return EnsureResult{OK: false, Err: fmt.Errorf("invalid dimension %d", dimension)}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	status, _, err := s.do(ctx, http.MethodGet, s.collectionURL(), nil)
	if err == nil && status == http.StatusOK {
		return EnsureResult{OK: true, Created: false}
	}
	if err == nil && status != http.StatusNotFound {
		return EnsureResult{OK: false, Err: fmt.Errorf("unexpected status %d checking collection", status)}
	}

	body := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	status, _, err = s.do(ctx, http.MethodPut, s.collectionURL(), body)
	if err != nil {
		return EnsureResult{OK: false, Err: err}
	}
	if status >= 300 {
		return EnsureResult{OK: false, Err: fmt.Errorf("create collection returned status %d", status)}
	}
	return EnsureResult{OK: true, Created: true}
}

// UpsertPoints batch-inserts or replaces points by id. Empty input is a
// no-op success, as is a disabled client with no points to write.
func (s *QdrantStore) UpsertPoints(ctx context.Context, points []types.VectorPoint) UpsertResult {
	if len(points) == 0 {
		return UpsertResult{OK: true}
	}
	if !s.Enabled() {
		return UpsertResult{OK: true}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body := map[string]interface{}{"points": points}
	status, _, err := s.do(ctx, http.MethodPut, s.collectionURL()+"/points?wait=true", body)
	if err != nil {
		return UpsertResult{OK: false, Err: err}
	}
	if status >= 300 {
		return UpsertResult{OK: false, Err: fmt.Errorf("upsert returned status %d", status)}
	}
	return UpsertResult{OK: true}
}

// Search returns up to topK hits ordered by descending similarity. Any
// failure, including a disabled client, yields an empty slice.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, topK int, filter *Filter) []ScoredPoint {
	if !s.Enabled() || len(vector) == 0 {
		return nil
	}
	if topK <= 0 {
		topK = 10
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body := map[string]interface{}{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if filter != nil {
		body["filter"] = filter
	}

	status, payload, err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/search", body)
	if err != nil || status >= 300 {
		return nil
	}

	var resp struct {
		Result []struct {
			ID      json.Number         `json:"id"`
			Score   float64             `json:"score"`
			Payload types.VectorPayload `json:"payload"`
		} `json:"result"`
	}
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil
	}

	hits := make([]ScoredPoint, 0, len(resp.Result))
	for _, r := range resp.Result {
		id, err := r.ID.Int64()
		if err != nil {
			continue
		}
		hits = append(hits, ScoredPoint{ID: id, Score: r.Score, Payload: r.Payload})
	}
	return hits
}

func (s *QdrantStore) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", s.url, url.PathEscape(s.collection))
}

func (s *QdrantStore) do(ctx context.Context, method, target string, body interface{}) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, payload, nil
}
