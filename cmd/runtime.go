package cmd

import (
	"fmt"
	"time"

	"github.com/opsgraph/knowledge-be/config"
	"github.com/opsgraph/knowledge-be/database"
	"github.com/opsgraph/knowledge-be/service"
)

// runtime bundles the wired-up collaborators every subcommand needs.
type runtime struct {
	cfg       *config.Config
	store     *database.SQLiteStore
	vectors   *database.QdrantStore
	embedding *service.EmbeddingService
	extractor *service.ExtractService
	ingest    *service.IngestService
	search    *service.SearchService
}

func buildRuntime(configPath string) (*runtime, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	store, err := database.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge store: %w", err)
	}

	vectors := database.NewQdrantStore(database.QdrantConfig{
		URL:        cfg.Qdrant.URL,
		APIKey:     cfg.Qdrant.APIKey,
		Collection: cfg.Qdrant.Collection,
		Timeout:    time.Duration(cfg.Qdrant.TimeoutSec) * time.Second,
	})

	embedding, err := service.NewEmbeddingService(service.EmbeddingConfig{
		APIKey:        cfg.Embedding.APIKey,
		Model:         cfg.Embedding.Model,
		BaseURL:       cfg.Embedding.BaseURL,
		AllowFallback: cfg.Embedding.AllowFallback,
		CacheSize:     cfg.Embedding.CacheSize,
		MaxInputChars: cfg.Embedding.MaxInputChars,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	extractor := service.NewExtractService(service.ExtractConfig{
		ChunkSize:    cfg.Extract.ChunkSize,
		MaxFileBytes: cfg.Extract.MaxFileBytes,
		Timeout:      time.Duration(cfg.Extract.TimeoutSec) * time.Second,
	})

	return &runtime{
		cfg:       cfg,
		store:     store,
		vectors:   vectors,
		embedding: embedding,
		extractor: extractor,
		ingest: service.NewIngestService(store, vectors, embedding, extractor, service.IngestConfig{
			FetchTimeout: time.Duration(cfg.FetchTimeoutSec) * time.Second,
		}),
		search: service.NewSearchService(store, vectors, embedding, service.SearchConfig{
			RecentWindow: cfg.Search.RecentWindow,
			Threshold:    cfg.Search.Threshold,
		}),
	}, nil
}

func (r *runtime) Close() {
	r.store.Close()
}
