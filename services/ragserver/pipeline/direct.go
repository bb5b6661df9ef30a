// Copyright (C) 2026 Rupert Tadman
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/rupertt/rag-citations-app/services/llm"
	"github.com/rupertt/rag-citations-app/services/ragserver/citations"
	"github.com/rupertt/rag-citations-app/services/ragserver/datatypes"
	"github.com/rupertt/rag-citations-app/services/ragserver/evidence"
	"github.com/rupertt/rag-citations-app/services/ragserver/grounding"
	"github.com/rupertt/rag-citations-app/services/ragserver/observability"
	"github.com/rupertt/rag-citations-app/services/ragserver/prompts"
)

// DirectAnswerer is the non-agent mode: one retrieval, one generation,
// then the lighter post-check (citation presence, strict extraction,
// membership against the retrieved set). Unlike the agent pipeline it
// reports every retrieved chunk as a citation, including on refusal,
// because retrieval itself is the only evidence selection that happened.
type DirectAnswerer struct {
	retriever Retriever
	client    llm.LLMClient
	prompts   *prompts.Cache
}

func NewDirectAnswerer(retriever Retriever, client llm.LLMClient, cache *prompts.Cache) *DirectAnswerer {
	return &DirectAnswerer{retriever: retriever, client: client, prompts: cache}
}

// Answer implements the same contract as Pipeline.Answer.
func (d *DirectAnswerer) Answer(ctx context.Context, req *datatypes.AskRequest) (*datatypes.AskResponse, error) {
	ctx, span := tracer.Start(ctx, "DirectAnswerer.Answer")
	defer span.End()

	req.EnsureDefaults()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	retrieved, err := d.retriever.Retrieve(ctx, req.Question, req.TopK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("retrieval: %w", err)
	}
	observability.ObserveRetrieval()

	cites := make([]datatypes.Citation, 0, len(retrieved))
	debugChunks := make([]datatypes.RetrievedChunk, 0, len(retrieved))
	allowed := make(map[string]struct{}, len(retrieved))
	for _, rec := range retrieved {
		cites = append(cites, datatypes.Citation{
			Source:  rec.Source,
			ChunkID: rec.ChunkID,
			Snippet: evidence.Flatten(rec.Text, evidence.SnippetLen),
		})
		debugChunks = append(debugChunks, datatypes.RetrievedChunk{
			ChunkID: rec.ChunkID,
			Text:    rec.Text,
			Score:   rec.Score,
		})
		allowed[rec.CitationKey()] = struct{}{}
	}

	resp := &datatypes.AskResponse{Citations: cites}
	if req.Debug {
		resp.Debug = &datatypes.DebugInfo{Retrieved: debugChunks}
	}

	if len(retrieved) == 0 {
		span.SetAttributes(attribute.String("rag.outcome", "refused"))
		observability.ObserveRefusal(grounding.ReasonNoEvidence)
		resp.Answer = datatypes.RefusalAnswer
		return resp, nil
	}

	system, err := d.prompts.Get("system")
	if err != nil {
		return nil, err
	}
	tmpl, err := d.prompts.Get("answer")
	if err != nil {
		return nil, err
	}
	user := strings.ReplaceAll(tmpl, "{question}", req.Question)
	user = strings.ReplaceAll(user, "{context}", buildContext(retrieved))

	answer, err := d.client.Chat(ctx, []datatypes.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, llm.GenerationParams{Temperature: llm.Float32Ptr(0)})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("generation: %w", err)
	}
	answer = strings.TrimSpace(answer)

	// Deterministic post-check: refuse unless there is a citation token
	// and every strictly cited pair was actually retrieved.
	if !directlyGrounded(answer, allowed) {
		span.SetAttributes(attribute.String("rag.outcome", "refused"))
		observability.ObserveRefusal("direct_post_check")
		resp.Answer = datatypes.RefusalAnswer
		return resp, nil
	}

	span.SetAttributes(attribute.String("rag.outcome", "answered"))
	resp.Answer = answer
	return resp, nil
}

func directlyGrounded(answer string, allowed map[string]struct{}) bool {
	if !citations.HasCitationToken(answer) {
		return false
	}
	keys := citations.ExtractStrict(answer)
	if len(keys) == 0 {
		return false
	}
	for _, key := range keys {
		if _, ok := allowed[key]; !ok {
			return false
		}
	}
	return true
}

// buildContext labels each chunk with its citation key so the model can
// cite without guessing.
func buildContext(retrieved []datatypes.ChunkRecord) string {
	parts := make([]string, 0, len(retrieved))
	for _, rec := range retrieved {
		parts = append(parts, strings.TrimSpace(fmt.Sprintf("[%s]\n%s", rec.CitationKey(), rec.Text)))
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}
