/*
Copyright © 2025 opsgraph
*/
package cmd

import (
	"context"
	"log"
	"time"

	"github.com/opsgraph/knowledge-be/types"
	"github.com/spf13/cobra"
)

// reindexVectorsCmd represents the reindex-vectors command
var reindexVectorsCmd = &cobra.Command{
	Use:   "reindex-vectors",
	Short: "Rebuild the vector index from stored embeddings",
	Long: `Pages through every snippet with a stored embedding and re-upserts it into
the vector store. Use after pointing the server at a fresh Qdrant deployment
or after changing the collection name; no embedding calls are made.`,
	Run: func(cmd *cobra.Command, args []string) {
		rt, err := buildRuntime(cfgFile)
		if err != nil {
			log.Fatalf("Failed to initialize: %v", err)
		}
		defer rt.Close()

		if !rt.vectors.Enabled() {
			log.Fatal("No vector store configured")
		}

		batch := rt.cfg.Backfill.BatchSize
		if batch <= 0 {
			batch = 200
		}

		ctx := context.Background()
		ensured := false
		var afterID int64
		total := 0
		for {
			snippets, err := rt.store.EmbeddedSnippets(ctx, afterID, batch)
			if err != nil {
				log.Fatalf("Failed to load snippets: %v", err)
			}
			if len(snippets) == 0 {
				break
			}
			afterID = snippets[len(snippets)-1].ID

			points := make([]types.VectorPoint, 0, len(snippets))
			for _, sn := range snippets {
				vec := types.DecodeVector(sn.Embedding)
				if len(vec) == 0 {
					continue
				}
				points = append(points, types.VectorPoint{
					ID:     sn.ID,
					Vector: vec,
					Payload: types.VectorPayload{
						SnippetID:      sn.ID,
						Label:          sn.Label,
						EmbeddingModel: sn.EmbeddingModel,
						CreatedAt:      sn.CreatedAt.UTC().Format(time.RFC3339),
					},
				})
			}
			if len(points) == 0 {
				continue
			}

			if !ensured {
				ensure := rt.vectors.EnsureCollection(ctx, len(points[0].Vector))
				if !ensure.OK {
					log.Fatalf("Vector store unavailable: %v", ensure.Err)
				}
				ensured = true
			}
			if up := rt.vectors.UpsertPoints(ctx, points); !up.OK {
				log.Fatalf("Vector upsert failed at snippet %d: %v", afterID, up.Err)
			}
			total += len(points)
			log.Printf("Reindexed %d vectors so far", total)
		}
		log.Printf("Done: %d vectors reindexed into %s", total, rt.vectors.Collection())
	},
}

func init() {
	rootCmd.AddCommand(reindexVectorsCmd)
}
