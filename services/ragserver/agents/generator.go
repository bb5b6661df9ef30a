// Copyright (C) 2026 Rupert Tadman
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package agents implements the generation capability behind the
// answering pipeline: proposing retrieval queries, drafting answers from
// an Evidence Pack and verifying drafts against it.
package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/rupertt/rag-citations-app/services/llm"
	"github.com/rupertt/rag-citations-app/services/ragserver/datatypes"
	"github.com/rupertt/rag-citations-app/services/ragserver/evidence"
	"github.com/rupertt/rag-citations-app/services/ragserver/pipeline"
	"github.com/rupertt/rag-citations-app/services/ragserver/prompts"
)

var tracer = otel.Tracer("ragcitations.agents")

// maxProposedQueries caps how many retrieval queries one evidence pass
// may issue.
const maxProposedQueries = 4

// LLMGenerator implements pipeline.Generator on top of a prompt-driven
// LLM backend. All calls run with temperature 0 so reruns of the same
// request stay comparable.
type LLMGenerator struct {
	client  llm.LLMClient
	prompts *prompts.Cache
}

func NewLLMGenerator(client llm.LLMClient, cache *prompts.Cache) *LLMGenerator {
	return &LLMGenerator{client: client, prompts: cache}
}

var _ pipeline.Generator = (*LLMGenerator)(nil)

func (g *LLMGenerator) chat(ctx context.Context, system, user string) (string, error) {
	messages := []datatypes.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
	return g.client.Chat(ctx, messages, llm.GenerationParams{Temperature: llm.Float32Ptr(0)})
}

// GenerateEvidence asks the model for 2-4 retrieval queries, runs each
// through the retrieve callback and renders the resulting chunks as an
// Evidence Pack bullet list. When the model proposes no usable queries
// the pack comes back empty with a nil error; deciding what to do about
// an empty evidence store is the caller's job, not ours.
func (g *LLMGenerator) GenerateEvidence(ctx context.Context, question string, topK int, retrieve pipeline.RetrieveFunc) (string, error) {
	ctx, span := tracer.Start(ctx, "LLMGenerator.GenerateEvidence")
	defer span.End()
	span.SetAttributes(attribute.Int("rag.top_k", topK))

	system, err := g.prompts.Get("retriever")
	if err != nil {
		return "", err
	}

	user := "User question:\n" + question + "\n\n" +
		fmt.Sprintf("Generate 2-4 retrieval queries for this question. Use top_k=%d.\n", topK) +
		"Return ONLY the QUERIES block in the required format."

	raw, err := g.chat(ctx, system, user)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("query generation failed: %w", err)
	}

	queries := parseQueryBlock(raw)
	span.SetAttributes(attribute.Int("rag.proposed_queries", len(queries)))
	if len(queries) == 0 {
		slog.Warn("Model proposed no retrieval queries", "raw_prefix", evidence.Flatten(raw, 120))
		return "", nil
	}

	var lines []string
	seen := make(map[string]struct{})
	for _, q := range queries {
		results, err := retrieve(ctx, q, topK)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return "", fmt.Errorf("retrieval for query %q failed: %w", q, err)
		}
		for _, rec := range results {
			key := rec.CitationKey()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			quote := evidence.Flatten(rec.Text, evidence.PackQuoteLen)
			lines = append(lines, fmt.Sprintf("- [%s] \"%s\"", key, quote))
		}
	}
	return strings.Join(lines, "\n"), nil
}

// GenerateDraft writes the answer to the question using only the
// Evidence Pack.
func (g *LLMGenerator) GenerateDraft(ctx context.Context, question, evidencePack string) (string, error) {
	ctx, span := tracer.Start(ctx, "LLMGenerator.GenerateDraft")
	defer span.End()

	system, err := g.prompts.Get("responder")
	if err != nil {
		return "", err
	}

	user := "Evidence Pack:\n" + evidencePack + "\n\n" +
		"User question:\n" + question + "\n"

	draft, err := g.chat(ctx, system, user)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("draft generation failed: %w", err)
	}
	return strings.TrimSpace(draft), nil
}

// GenerateVerification checks the draft against the Evidence Pack and
// returns either OK or a FOLLOWUP_QUERIES block.
func (g *LLMGenerator) GenerateVerification(ctx context.Context, evidencePack, draft string) (string, error) {
	ctx, span := tracer.Start(ctx, "LLMGenerator.GenerateVerification")
	defer span.End()

	system, err := g.prompts.Get("verifier")
	if err != nil {
		return "", err
	}

	user := "Evidence Pack:\n" + evidencePack + "\n\n" +
		"Draft Answer:\n" + draft + "\n\n" +
		"Verify the Draft Answer against the Evidence Pack.\n" +
		"Output OK or FOLLOWUP_QUERIES (strict format)."

	verdict, err := g.chat(ctx, system, user)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("verification failed: %w", err)
	}
	return strings.TrimSpace(verdict), nil
}

// parseQueryBlock reads the strict QUERIES format produced by the
// retriever prompt. Tolerant of missing headers and stray prose: any
// "- " bullet counts, capped at maxProposedQueries.
func parseQueryBlock(text string) []string {
	txt := strings.TrimSpace(text)
	if txt == "" {
		return nil
	}

	var out []string
	for _, ln := range strings.Split(txt, "\n") {
		ln = strings.TrimSpace(ln)
		if q, ok := strings.CutPrefix(ln, "- "); ok {
			q = strings.TrimSpace(q)
			if q != "" {
				out = append(out, q)
			}
		}
		if len(out) >= maxProposedQueries {
			break
		}
	}
	return out
}
