package service

import (
	"context"

	"github.com/opsgraph/knowledge-be/types"
)

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (*types.EmbeddingResult, error)
	// Dimension is a pure function of the configured model; it never makes a
	// network call, so callers can size a vector-store collection before any
	// vector exists.
	Dimension() int
}
