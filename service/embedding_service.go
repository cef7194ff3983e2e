package service

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sashabaranov/go-openai"

	"github.com/opsgraph/knowledge-be/types"
)

const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"

	// MockDimension is the length of deterministic mock vectors.
	MockDimension = 512

	mockModel         = "mock-deterministic-512"
	mockFallbackModel = "mock-deterministic-512-fallback"

	defaultModel         = "text-embedding-3-small"
	defaultCacheSize     = 500
	defaultMaxInputChars = 8000
)

// ErrEmbeddingNotConfigured is returned when no API key is configured and
// the deterministic fallback is disabled.
var ErrEmbeddingNotConfigured = errors.New("embedding API key missing and fallback disabled")

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	APIKey        string
	Model         string
	BaseURL       string
	AllowFallback bool
	CacheSize     int
	MaxInputChars int
}

// EmbeddingService produces embeddings through an OpenAI-compatible API,
// with an LRU cache and a deterministic hash-based fallback for degraded or
// offline deployments.
type EmbeddingService struct {
	client        *openai.Client
	model         string
	allowFallback bool
	maxInputChars int
	cache         *lru.Cache[string, []float32]
}

func NewEmbeddingService(cfg EmbeddingConfig) (*EmbeddingService, error) {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = defaultMaxInputChars
	}
	cache, err := lru.New[string, []float32](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}

	s := &EmbeddingService{
		model:         cfg.Model,
		allowFallback: cfg.AllowFallback,
		maxInputChars: cfg.MaxInputChars,
		cache:         cache,
	}
	if cfg.APIKey != "" {
		clientCfg := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
		s.client = openai.NewClientWithConfig(clientCfg)
	}
	return s, nil
}

// Embed returns a vector for text, serving from the cache when possible.
// A cache hit still reports which provider would have produced the value.
func (s *EmbeddingService) Embed(ctx context.Context, text string) (*types.EmbeddingResult, error) {
	text = truncateRunes(text, s.maxInputChars)
	key := s.model + ":" + text

	if vec, ok := s.cache.Get(key); ok {
		provider := ProviderMock
		if s.client != nil {
			provider = ProviderOpenAI
		}
		return &types.EmbeddingResult{Vector: vec, Model: s.model, Provider: provider, Cached: true}, nil
	}

	if s.client == nil {
		if !s.allowFallback {
			return nil, ErrEmbeddingNotConfigured
		}
		vec := mockEmbedding(text)
		s.cache.Add(key, vec)
		return &types.EmbeddingResult{Vector: vec, Model: mockModel, Provider: ProviderMock}, nil
	}

	resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(s.model),
	})
	if err == nil && len(resp.Data) == 0 {
		err = errors.New("embedding response contained no data")
	}
	if err != nil {
		if s.allowFallback {
			vec := mockEmbedding(text)
			s.cache.Add(key, vec)
			return &types.EmbeddingResult{Vector: vec, Model: mockFallbackModel, Provider: ProviderMock}, nil
		}
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}

	vec := resp.Data[0].Embedding
	s.cache.Add(key, vec)
	return &types.EmbeddingResult{Vector: vec, Model: s.model, Provider: ProviderOpenAI}, nil
}

// Dimension returns the vector size the configured model produces.
func (s *EmbeddingService) Dimension() int {
	if s.client == nil {
		return MockDimension
	}
	switch s.model {
	case "text-embedding-3-small":
		return 1536
	case "text-embedding-3-large":
		return 3072
	case "text-embedding-ada-002":
		return 1536
	default:
		return 1536
	}
}

// Model returns the configured model name.
func (s *EmbeddingService) Model() string { return s.model }

// mockEmbedding expands the sha256 digest of text cyclically into a
// MockDimension vector, mapping each byte from [0,255] to [-0.5,0.5]. The
// same input always yields the same vector across process restarts.
func mockEmbedding(text string) []float32 {
	digest := sha256.Sum256([]byte(text))
	vec := make([]float32, MockDimension)
	for i := range vec {
		b := digest[i%len(digest)]
		vec[i] = float32(b)/255.0 - 0.5
	}
	return vec
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
