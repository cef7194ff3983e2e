/*
Copyright © 2025 opsgraph
*/
package cmd

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/opsgraph/knowledge-be/handler"
	"github.com/spf13/cobra"
)

// startServerCmd represents the start command
var startServerCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the knowledge server",
	Long:  `Starts the HTTP server that handles ingestion, search and context queries`,
	Run: func(cmd *cobra.Command, args []string) {
		rt, err := buildRuntime(cfgFile)
		if err != nil {
			log.Fatalf("Failed to initialize: %v", err)
		}
		defer rt.Close()

		// The vector store is optional; a failed ensure only means search
		// serves from the in-process fallback until it recovers.
		if rt.vectors.Enabled() {
			ensure := rt.vectors.EnsureCollection(context.Background(), rt.embedding.Dimension())
			if !ensure.OK {
				log.Printf("Vector store unavailable, continuing without it: %v", ensure.Err)
			} else if ensure.Created {
				log.Printf("Created vector collection %s", rt.vectors.Collection())
			}
		}

		// Initialize handlers
		corsHandler := handler.NewCorsHandler()
		ingestHandler := handler.NewIngestHandler(rt.ingest, rt.cfg.UploadDir, rt.cfg.Extract.MaxFileBytes)
		searchHandler := handler.NewSearchHandler(rt.search)
		contextHandler := handler.NewContextHandler(rt.store)

		// Setup Gin router
		router := gin.Default()
		router.Use(corsHandler.CorsMiddleware)

		apiV1 := router.Group("/api/v1")
		{
			apiV1.POST("/knowledge/ingest", ingestHandler.HandleIngestFile)
			apiV1.POST("/knowledge/ingest-url", ingestHandler.HandleIngestURL)
			apiV1.POST("/knowledge/snippets", ingestHandler.HandleIngestText)
			apiV1.GET("/knowledge/search", searchHandler.HandleSearch)
			apiV1.GET("/knowledge/context/:type/:id", contextHandler.HandleEntityContext)
		}

		log.Printf("Starting server on port %s...\n", rt.cfg.Port)
		if err := router.Run(":" + rt.cfg.Port); err != nil {
			log.Fatal("Server error:", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(startServerCmd)
}
