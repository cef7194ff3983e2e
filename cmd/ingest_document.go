/*
Copyright © 2025 opsgraph
*/
package cmd

import (
	"context"
	"log"
	"os"

	"github.com/opsgraph/knowledge-be/types"
	"github.com/spf13/cobra"
)

// ingestDocumentCmd represents the ingest-document command
var ingestDocumentCmd = &cobra.Command{
	Use:   "ingest-document",
	Short: "Ingest a single document from the local filesystem",
	Long: `Runs the full ingestion pipeline against one local file: extraction,
chunking, embedding, relational persistence and best-effort vector indexing.`,
	Run: func(cmd *cobra.Command, args []string) {
		filePath, _ := cmd.Flags().GetString("file")
		mimeType, _ := cmd.Flags().GetString("mime")
		title, _ := cmd.Flags().GetString("title")
		description, _ := cmd.Flags().GetString("description")
		category, _ := cmd.Flags().GetString("category")
		tags, _ := cmd.Flags().GetStringArray("tags")
		entityType, _ := cmd.Flags().GetString("entity-type")
		entityID, _ := cmd.Flags().GetInt64("entity-id")

		if filePath == "" {
			log.Fatal("--file is required")
		}
		info, err := os.Stat(filePath)
		if err != nil {
			log.Fatalf("Failed to stat file: %v", err)
		}
		if title == "" {
			title = info.Name()
		}

		rt, err := buildRuntime(cfgFile)
		if err != nil {
			log.Fatalf("Failed to initialize: %v", err)
		}
		defer rt.Close()

		meta := types.IngestMetadata{
			Title:       title,
			Description: description,
			Category:    category,
			Tags:        tags,
		}
		if entityType != "" {
			meta.RelatedTo = types.EntityRef{
				Type: types.EntityType(entityType),
				ID:   entityID,
			}
		}

		result, err := rt.ingest.IngestFile(context.Background(), filePath, mimeType, info.Size(), meta)
		if err != nil {
			log.Fatalf("Ingestion failed: %v", err)
		}
		log.Printf("Ingested document %d: %d snippets, %d chars, model %s (%s), vector indexed: %v",
			result.DocumentID, result.SnippetCount, result.ExtractedChars,
			result.EmbeddingModel, result.Provider, result.VectorIndexed)
		if result.DuplicateOfDocID != 0 {
			log.Printf("Content hash matches existing document %d", result.DuplicateOfDocID)
		}
	},
}

func init() {
	rootCmd.AddCommand(ingestDocumentCmd)
	ingestDocumentCmd.Flags().StringP("file", "f", "", "path of the file to ingest")
	ingestDocumentCmd.Flags().StringP("mime", "m", "application/pdf", "MIME type of the file")
	ingestDocumentCmd.Flags().String("title", "", "document title (defaults to the file name)")
	ingestDocumentCmd.Flags().String("description", "", "document description")
	ingestDocumentCmd.Flags().String("category", "", "document category")
	ingestDocumentCmd.Flags().StringArray("tags", nil, "document tags")
	ingestDocumentCmd.Flags().String("entity-type", "", "related entity type (ticket, asset, vendor, site)")
	ingestDocumentCmd.Flags().Int64("entity-id", 0, "related entity id")
}
