/*
Copyright © 2025 opsgraph
*/
package cmd

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opsgraph/knowledge-be/service"
	"github.com/opsgraph/knowledge-be/types"
	"github.com/spf13/cobra"
)

const (
	backfillMaxAttempts = 5
	backfillBaseDelay   = 500 * time.Millisecond
)

// backfillEmbeddingsCmd represents the backfill-embeddings command
var backfillEmbeddingsCmd = &cobra.Command{
	Use:   "backfill-embeddings",
	Short: "Compute embeddings for snippets that have none",
	Long: `Scans the knowledge store for snippets without a stored vector and embeds
them through a bounded worker pool. Transient provider failures are retried
with exponential backoff; a snippet that keeps failing is skipped and left
for the next run.`,
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		workers, _ := cmd.Flags().GetInt("workers")

		rt, err := buildRuntime(cfgFile)
		if err != nil {
			log.Fatalf("Failed to initialize: %v", err)
		}
		defer rt.Close()

		if workers <= 0 {
			workers = rt.cfg.Backfill.Workers
		}
		if workers <= 0 {
			workers = 4
		}

		ctx := context.Background()
		pending, err := rt.store.PendingEmbeddings(ctx, limit)
		if err != nil {
			log.Fatalf("Failed to load pending snippets: %v", err)
		}
		if len(pending) == 0 {
			log.Println("No snippets pending embedding")
			return
		}
		log.Printf("Backfilling %d snippets with %d workers", len(pending), workers)

		var (
			done   atomic.Int64
			failed atomic.Int64
			mu     sync.Mutex
			points []types.VectorPoint
		)

		jobs := make(chan types.Snippet)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for sn := range jobs {
					embedded, err := embedWithRetry(ctx, rt, sn.Content)
					if err != nil {
						log.Printf("Snippet %d: giving up after %d attempts: %v", sn.ID, backfillMaxAttempts, err)
						failed.Add(1)
						continue
					}
					encoded := types.EncodeVector(embedded.Vector)
					if err := rt.store.UpdateSnippetEmbedding(ctx, sn.ID, encoded, embedded.Model, len(embedded.Vector)); err != nil {
						log.Printf("Snippet %d: failed to store embedding: %v", sn.ID, err)
						failed.Add(1)
						continue
					}
					mu.Lock()
					points = append(points, types.VectorPoint{
						ID:     sn.ID,
						Vector: embedded.Vector,
						Payload: types.VectorPayload{
							SnippetID:      sn.ID,
							Label:          sn.Label,
							EmbeddingModel: embedded.Model,
							CreatedAt:      sn.CreatedAt.UTC().Format(time.RFC3339),
						},
					})
					mu.Unlock()
					if n := done.Add(1); n%50 == 0 {
						log.Printf("Progress: %d/%d", n, len(pending))
					}
				}
			}()
		}
		for _, sn := range pending {
			jobs <- sn
		}
		close(jobs)
		wg.Wait()

		log.Printf("Embedded %d snippets, %d failed", done.Load(), failed.Load())
		if len(points) > 0 && rt.vectors.Enabled() {
			indexPoints(ctx, rt, points)
		}
	},
}

// embedWithRetry retries transient embedding failures with exponential
// backoff. A configuration error is not transient and is returned
// immediately, since retrying cannot fix it.
func embedWithRetry(ctx context.Context, rt *runtime, text string) (*types.EmbeddingResult, error) {
	var lastErr error
	delay := backfillBaseDelay
	for attempt := 1; attempt <= backfillMaxAttempts; attempt++ {
		embedded, err := rt.embedding.Embed(ctx, text)
		if err == nil {
			return embedded, nil
		}
		if errors.Is(err, service.ErrEmbeddingNotConfigured) {
			return nil, err
		}
		lastErr = err
		if attempt < backfillMaxAttempts {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return nil, lastErr
}

func indexPoints(ctx context.Context, rt *runtime, points []types.VectorPoint) {
	ensure := rt.vectors.EnsureCollection(ctx, len(points[0].Vector))
	if !ensure.OK {
		log.Printf("Vector store unavailable, skipping index update: %v", ensure.Err)
		return
	}
	batch := rt.cfg.Backfill.BatchSize
	if batch <= 0 {
		batch = 200
	}
	for start := 0; start < len(points); start += batch {
		end := start + batch
		if end > len(points) {
			end = len(points)
		}
		if up := rt.vectors.UpsertPoints(ctx, points[start:end]); !up.OK {
			log.Printf("Vector upsert failed for batch %d-%d: %v", start, end, up.Err)
			continue
		}
		log.Printf("Indexed vectors %d-%d of %d", start, end, len(points))
	}
}

func init() {
	rootCmd.AddCommand(backfillEmbeddingsCmd)
	backfillEmbeddingsCmd.Flags().Int("limit", 0, "maximum snippets to process in this run")
	backfillEmbeddingsCmd.Flags().Int("workers", 0, "worker pool size (defaults to config)")
}
