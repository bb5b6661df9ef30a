// Copyright (C) 2026 Rupert Tadman
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package pipeline orchestrates the evidence, draft and verify steps
// into grounded answers that fail closed to the canonical refusal.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/rupertt/rag-citations-app/services/ragserver/citations"
	"github.com/rupertt/rag-citations-app/services/ragserver/datatypes"
	"github.com/rupertt/rag-citations-app/services/ragserver/evidence"
	"github.com/rupertt/rag-citations-app/services/ragserver/grounding"
	"github.com/rupertt/rag-citations-app/services/ragserver/observability"
)

var tracer = otel.Tracer("ragcitations.pipeline")

// maxPasses caps draft/verify rounds per request. Exactly one extra
// round is possible, taken by either the fallback or the retry branch,
// never both.
const maxPasses = 2

// RetrieveFunc runs one retrieval query against the corpus.
type RetrieveFunc func(ctx context.Context, query string, topK int) ([]datatypes.ChunkRecord, error)

// Retriever is the vector search capability.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]datatypes.ChunkRecord, error)
}

// Generator is the LLM-backed capability driving the three step kinds.
// GenerateEvidence proposes retrieval queries, calls retrieve for each
// and returns the rendered Evidence Pack; an empty pack with nil error
// is the degraded no-queries outcome, not a failure.
type Generator interface {
	GenerateEvidence(ctx context.Context, question string, topK int, retrieve RetrieveFunc) (string, error)
	GenerateDraft(ctx context.Context, question, evidencePack string) (string, error)
	GenerateVerification(ctx context.Context, evidencePack, draft string) (string, error)
}

// Pipeline is the agentic answering mode: evidence, draft, verify, an
// optional second pass, then deterministic repair and the grounding
// gate.
type Pipeline struct {
	gen       Generator
	retriever Retriever
}

func New(gen Generator, retriever Retriever) *Pipeline {
	return &Pipeline{gen: gen, retriever: retriever}
}

// Answer runs the full protocol for one request. Upstream failures
// (retrieval, LLM) return an error; grounding failures return the
// canonical refusal with a nil error.
func (p *Pipeline) Answer(ctx context.Context, req *datatypes.AskRequest) (*datatypes.AskResponse, error) {
	ctx, span := tracer.Start(ctx, "Pipeline.Answer")
	defer span.End()

	req.EnsureDefaults()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("rag.top_k", req.TopK))

	store := evidence.NewStore()
	recording := func(ctx context.Context, query string, topK int) ([]datatypes.ChunkRecord, error) {
		results, err := p.retriever.Retrieve(ctx, query, topK)
		if err != nil {
			return nil, err
		}
		observability.ObserveRetrieval()
		store.Record(query, topK, results)
		return results, nil
	}

	out, err := runSteps(ctx, p.fullPassSteps(req.Question, req.TopK, recording), nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	draft := out[StepDraft]
	verdict := out[StepVerify]
	passes := 1

	// Fallback: the evidence step never populated the store. Retrieve
	// directly with the original question and spend the second pass on
	// the seeded pack. Zero candidates here means the corpus simply has
	// nothing, so we refuse without drafting against an empty pack.
	if store.Len() == 0 {
		slog.Info("No evidence retrieved during generation; falling back to direct retrieval",
			"question_len", len(req.Question))
		results, err := p.retriever.Retrieve(ctx, req.Question, req.TopK)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("fallback retrieval: %w", err)
		}
		observability.ObserveRetrieval()
		if len(results) == 0 {
			span.SetAttributes(attribute.String("rag.outcome", "refused"))
			observability.ObserveRefusal(grounding.ReasonNoEvidence)
			return refusalResponse(store, req.Debug), nil
		}
		store.Seed(req.Question, req.TopK, results)

		out, err := runSteps(ctx, p.redraftSteps(req.Question),
			map[StepKind]string{StepEvidence: store.FormatPack()})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		draft = out[StepDraft]
		verdict = out[StepVerify]
		passes = maxPasses
	}

	// Retry: the verifier asked for more evidence and the fallback did
	// not already consume the second pass.
	if followups := ParseFollowups(verdict); len(followups) > 0 && passes < maxPasses {
		slog.Info("Verifier requested follow-up retrieval", "count", len(followups))
		results := make([][]datatypes.ChunkRecord, len(followups))
		g, gctx := errgroup.WithContext(ctx)
		for i, q := range followups {
			g.Go(func() error {
				recs, err := p.retriever.Retrieve(gctx, q, req.TopK)
				if err != nil {
					return fmt.Errorf("follow-up retrieval %q: %w", q, err)
				}
				results[i] = recs
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		// The store is request-local and unsynchronized; merge only
		// after every retrieval has finished.
		for i, q := range followups {
			observability.ObserveRetrieval()
			store.Record(q, req.TopK, results[i])
		}

		out, err := runSteps(ctx, p.redraftSteps(req.Question),
			map[StepKind]string{StepEvidence: store.FormatPack()})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		draft = out[StepDraft]
		passes++
	}

	observability.ObservePasses(passes)
	span.SetAttributes(attribute.Int("rag.passes", passes))

	draft = citations.Repair(draft, store)
	res := grounding.Validate(draft, store)
	if !res.OK {
		slog.Info("Draft failed grounding validation", "reason", res.Reason, "passes", passes)
		span.SetAttributes(attribute.String("rag.outcome", "refused"),
			attribute.String("rag.refusal_reason", res.Reason))
		observability.ObserveRefusal(res.Reason)
		return refusalResponse(store, req.Debug), nil
	}

	span.SetAttributes(attribute.String("rag.outcome", "answered"))
	resp := &datatypes.AskResponse{Answer: draft, Citations: res.Citations}
	if req.Debug {
		resp.Debug = debugInfo(store)
	}
	return resp, nil
}

// fullPassSteps is the first pass: evidence, then draft, then verify.
func (p *Pipeline) fullPassSteps(question string, topK int, retrieve RetrieveFunc) []Step {
	return []Step{
		{Kind: StepEvidence, Run: func(ctx context.Context, _ map[StepKind]string) (string, error) {
			return p.gen.GenerateEvidence(ctx, question, topK, retrieve)
		}},
		{Kind: StepDraft, Run: func(ctx context.Context, prior map[StepKind]string) (string, error) {
			return p.gen.GenerateDraft(ctx, question, prior[StepEvidence])
		}},
		{Kind: StepVerify, Run: func(ctx context.Context, prior map[StepKind]string) (string, error) {
			return p.gen.GenerateVerification(ctx, prior[StepEvidence], prior[StepDraft])
		}},
	}
}

// redraftSteps is the second pass: draft and verify against a pack
// seeded by the caller.
func (p *Pipeline) redraftSteps(question string) []Step {
	return []Step{
		{Kind: StepDraft, Run: func(ctx context.Context, prior map[StepKind]string) (string, error) {
			return p.gen.GenerateDraft(ctx, question, prior[StepEvidence])
		}},
		{Kind: StepVerify, Run: func(ctx context.Context, prior map[StepKind]string) (string, error) {
			return p.gen.GenerateVerification(ctx, prior[StepEvidence], prior[StepDraft])
		}},
	}
}

func refusalResponse(store *evidence.Store, debug bool) *datatypes.AskResponse {
	resp := &datatypes.AskResponse{
		Answer:    datatypes.RefusalAnswer,
		Citations: []datatypes.Citation{},
	}
	if debug {
		resp.Debug = debugInfo(store)
	}
	return resp
}

// debugInfo reports every chunk in the store at decision time, cited or
// not, answer or refusal.
func debugInfo(store *evidence.Store) *datatypes.DebugInfo {
	chunks := store.Chunks()
	retrieved := make([]datatypes.RetrievedChunk, 0, len(chunks))
	for _, rec := range chunks {
		retrieved = append(retrieved, datatypes.RetrievedChunk{
			ChunkID: rec.ChunkID,
			Text:    rec.Text,
			Score:   rec.Score,
		})
	}
	return &datatypes.DebugInfo{Retrieved: retrieved}
}
