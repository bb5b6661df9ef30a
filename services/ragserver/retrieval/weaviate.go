// Copyright (C) 2026 Rupert Tadman
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/rupertt/rag-citations-app/services/ragserver/datatypes"
	"github.com/rupertt/rag-citations-app/services/ragserver/evidence"
)

var tracer = otel.Tracer("ragcitations.retrieval")

// minFetchK is the floor on how many candidates we over-fetch before
// diversity selection.
const minFetchK = 20

// WeaviateRetriever answers retrieval queries with a nearVector search
// over the DocChunk class, over-fetching and then applying the diversity
// selector so one section cannot crowd out the rest.
type WeaviateRetriever struct {
	client   *weaviate.Client
	embedder Embedder
}

func NewWeaviateRetriever(client *weaviate.Client, embedder Embedder) *WeaviateRetriever {
	return &WeaviateRetriever{client: client, embedder: embedder}
}

// Retrieve returns up to topK diverse chunks for the query.
func (r *WeaviateRetriever) Retrieve(ctx context.Context, query string, topK int) ([]datatypes.ChunkRecord, error) {
	ctx, span := tracer.Start(ctx, "WeaviateRetriever.Retrieve")
	defer span.End()
	span.SetAttributes(attribute.Int("rag.top_k", topK))

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	fetchK := topK * 4
	if fetchK < minFetchK {
		fetchK = minFetchK
	}

	nearVector := r.client.GraphQL().NearVectorArgBuilder().
		WithVector(vector)

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "source"},
		{Name: "section"},
		{Name: "chunk_id"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "distance"},
		}},
	}

	resp, err := r.client.GraphQL().Get().
		WithClassName(datatypes.DocChunkClass).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(fetchK).
		Do(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Weaviate nearVector search failed", "error", err)
		return nil, fmt.Errorf("weaviate search: %w", err)
	}
	if len(resp.Errors) > 0 {
		err := fmt.Errorf("weaviate search returned GraphQL errors: %v", resp.Errors[0].Message)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	parsed, err := datatypes.ParseGraphQLResponse[datatypes.DocChunkQueryResponse](resp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	candidates := make([]datatypes.ChunkRecord, 0, len(parsed.Get.DocChunk))
	for _, res := range parsed.Get.DocChunk {
		candidates = append(candidates, res.Record())
	}

	selected := evidence.SelectDiverse(candidates, topK)
	span.SetAttributes(attribute.Int("rag.candidates", len(candidates)),
		attribute.Int("rag.selected", len(selected)))
	slog.Debug("Retrieved chunks", "query_len", len(query), "candidates", len(candidates), "selected", len(selected))
	return selected, nil
}
