// Copyright (C) 2026 Rupert Tadman
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// DocChunkClass is the Weaviate class holding ingested document chunks.
const DocChunkClass = "DocChunk"

// GetDocChunkSchema returns the schema for the DocChunk class. Vectors
// are computed client-side, so the vectorizer is "none".
func GetDocChunkSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       DocChunkClass,
		Description: "A chunk of an ingested document with stable citation metadata.",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{
				Name:         "content",
				DataType:     []string{"text"},
				Description:  "The chunk text, prefixed with its section title when one exists.",
				Tokenization: "word",
			},
			{
				Name:            "source",
				DataType:        []string{"text"},
				Description:     "The original file name of the document this chunk came from.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "section",
				DataType:        []string{"text"},
				Description:     "The heading of the section this chunk belongs to, empty if none.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "chunk_id",
				DataType:        []string{"text"},
				Description:     "Stable, zero-padded chunk identifier (chunk-00, chunk-01, ...).",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "ingested_at",
				DataType:        []string{"int"},
				Description:     "Unix timestamp of the ingestion that wrote this chunk.",
				IndexFilterable: indexFilterable,
			},
		},
	}
}

// EnsureWeaviateSchema creates the DocChunk class if it does not exist yet.
func EnsureWeaviateSchema(client *weaviate.Client) {
	class := GetDocChunkSchema()
	slog.Info("Checking schema", "class", class.Class)

	_, err := client.Schema().ClassGetter().WithClassName(class.Class).Do(context.Background())
	if err != nil {
		// The client returns an error when the class is missing.
		slog.Info("Schema not found, creating it...", "class", class.Class)
		if err := client.Schema().ClassCreator().WithClass(class).Do(context.Background()); err != nil {
			log.Fatalf("Failed to create schema for class %s: %v", class.Class, err)
		}
		slog.Info("Successfully created schema", "class", class.Class)
	} else {
		slog.Info("Schema already exists", "class", class.Class)
	}
}

// ParseGraphQLResponse parses a Weaviate GraphQL response into the target
// type by round-tripping resp.Data through JSON. The target type T must
// carry json tags matching the response shape.
func ParseGraphQLResponse[T any](resp *models.GraphQLResponse) (*T, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}

	respBytes, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GraphQL response data: %w", err)
	}

	var result T
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into target type: %w", err)
	}

	return &result, nil
}

// DocChunkQueryResponse is the shape of Get queries against DocChunk.
type DocChunkQueryResponse struct {
	Get struct {
		DocChunk []DocChunkResult `json:"DocChunk"`
	} `json:"Get"`
}

// DocChunkResult is a single DocChunk object from a query.
type DocChunkResult struct {
	Content    string `json:"content"`
	Source     string `json:"source"`
	Section    string `json:"section"`
	ChunkID    string `json:"chunk_id"`
	Additional struct {
		ID       string   `json:"id"`
		Distance *float64 `json:"distance"`
	} `json:"_additional"`
}

// Record converts a query result into the ChunkRecord the answering
// pipeline works with. The Weaviate distance becomes the score (lower
// is better); results without a distance report 0.0.
func (r DocChunkResult) Record() ChunkRecord {
	score := 0.0
	if r.Additional.Distance != nil {
		score = *r.Additional.Distance
	}
	return ChunkRecord{
		ChunkID: r.ChunkID,
		Source:  r.Source,
		Section: r.Section,
		Text:    r.Content,
		Score:   score,
	}
}

// DocChunkAggregateResponse is the shape of Aggregate queries grouped by
// source, used to list distinct ingested documents.
type DocChunkAggregateResponse struct {
	Aggregate struct {
		DocChunk []struct {
			GroupedBy struct {
				Value string `json:"value"`
			} `json:"groupedBy"`
			Meta struct {
				Count int `json:"count"`
			} `json:"meta"`
		} `json:"DocChunk"`
	} `json:"Aggregate"`
}
