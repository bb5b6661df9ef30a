// Copyright (C) 2026 Rupert Tadman
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/rupertt/rag-citations-app/services/ragserver/config"
	"github.com/rupertt/rag-citations-app/services/ragserver/datatypes"
	"github.com/rupertt/rag-citations-app/services/ragserver/ingest"
	"github.com/rupertt/rag-citations-app/services/ragserver/observability"
	"github.com/rupertt/rag-citations-app/services/ragserver/retrieval"
)

type IngestDocumentRequest struct {
	Content string `json:"content" binding:"required"`
	Source  string `json:"source" binding:"required"`
}

// CreateDocument ingests one document: section split, chunk, embed,
// batch write. Chunk object ids are deterministic, so re-posting the
// same source upserts instead of duplicating.
func CreateDocument(client *weaviate.Client, embedder retrieval.Embedder, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req IngestDocumentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		chunksWritten, err := RunIngestion(c.Request.Context(), client, embedder, cfg, req)
		if err != nil {
			slog.Error("Ingestion failed", "source", req.Source, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if observability.DefaultMetrics != nil {
			observability.DefaultMetrics.DocumentsIngestedTotal.Inc()
			observability.DefaultMetrics.ChunksIngestedTotal.Add(float64(chunksWritten))
		}
		slog.Info("Successfully processed document via API", "source", req.Source, "chunks_written", chunksWritten)
		c.JSON(http.StatusCreated, gin.H{
			"status":         "success",
			"source":         req.Source,
			"chunks_written": chunksWritten,
		})
	}
}

// RunIngestion is the reusable ingestion path behind CreateDocument.
func RunIngestion(ctx context.Context, client *weaviate.Client, embedder retrieval.Embedder,
	cfg config.Config, req IngestDocumentRequest) (int, error) {

	slog.Info("Ingestion request received", "source", req.Source)

	records, err := ingest.ChunkDocument(req.Content, req.Source, cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return 0, fmt.Errorf("failed to split content: %w", err)
	}
	if len(records) == 0 {
		slog.Warn("No chunks produced after splitting", "source", req.Source)
		return 0, nil
	}
	slog.Info("Split document into chunks", "source", req.Source, "chunk_count", len(records))

	texts := make([]string, len(records))
	for i, rec := range records {
		texts[i] = rec.Text
	}
	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(records) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(records))
	}

	now := time.Now().UnixMilli()
	objects := make([]*models.Object, len(records))
	for i, rec := range records {
		objects[i] = &models.Object{
			Class:  datatypes.DocChunkClass,
			ID:     strfmt.UUID(ingest.ChunkUUID(rec.Source, rec.ChunkID)),
			Vector: vectors[i],
			Properties: map[string]interface{}{
				"content":     rec.Text,
				"source":      rec.Source,
				"section":     rec.Section,
				"chunk_id":    rec.ChunkID,
				"ingested_at": now,
			},
		}
	}

	resp, err := client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to save objects to Weaviate: %w", err)
	}

	chunksWritten := 0
	for _, item := range resp {
		if item.Result != nil && item.Result.Status != nil && *item.Result.Status == "SUCCESS" {
			chunksWritten++
			continue
		}
		if item.Result != nil && item.Result.Errors != nil && len(item.Result.Errors.Error) > 0 {
			for _, errItem := range item.Result.Errors.Error {
				slog.Warn("Error in Weaviate batch item", "source", req.Source, "error", errItem.Message)
			}
		} else {
			slog.Warn("Failed Weaviate batch item, no error provided", "source", req.Source)
		}
	}
	return chunksWritten, nil
}

// ListDocuments returns the distinct ingested sources with their chunk
// counts, via an Aggregate grouped by source.
func ListDocuments(client *weaviate.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := client.GraphQL().Aggregate().
			WithClassName(datatypes.DocChunkClass).
			WithGroupBy("source").
			WithFields(
				graphql.Field{Name: "groupedBy", Fields: []graphql.Field{{Name: "value"}}},
				graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}},
			).
			Do(c.Request.Context())
		if err != nil {
			slog.Error("Failed to aggregate documents", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query documents"})
			return
		}

		parsed, err := datatypes.ParseGraphQLResponse[datatypes.DocChunkAggregateResponse](resp)
		if err != nil {
			slog.Error("Failed to parse aggregate response", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to parse documents"})
			return
		}

		docs := make([]gin.H, 0, len(parsed.Aggregate.DocChunk))
		for _, group := range parsed.Aggregate.DocChunk {
			docs = append(docs, gin.H{
				"source": group.GroupedBy.Value,
				"chunks": group.Meta.Count,
			})
		}
		c.JSON(http.StatusOK, gin.H{"documents": docs})
	}
}

// DeleteDocument removes every chunk of one source, selected by the
// ?source= query parameter.
func DeleteDocument(client *weaviate.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		source := c.Query("source")
		if source == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "source query parameter is required"})
			return
		}

		where := filters.Where().
			WithPath([]string{"source"}).
			WithOperator(filters.Equal).
			WithValueString(source)

		resp, err := client.Batch().ObjectsBatchDeleter().
			WithClassName(datatypes.DocChunkClass).
			WithWhere(where).
			Do(c.Request.Context())
		if err != nil {
			slog.Error("Failed to delete document chunks", "source", source, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		var deleted int64
		if resp != nil && resp.Results != nil {
			deleted = resp.Results.Successful
		}
		slog.Info("Deleted document chunks", "source", source, "deleted", deleted)
		c.JSON(http.StatusOK, gin.H{"source": source, "deleted": deleted})
	}
}
