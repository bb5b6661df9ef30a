// Copyright (C) 2026 Rupert Tadman
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rupertt/rag-citations-app/services/ragserver/datatypes"
)

// =============================================================================
// Mocks
// =============================================================================

type mockRetriever struct {
	mu      sync.Mutex
	results map[string][]datatypes.ChunkRecord
	err     error
	queries []string
}

func (m *mockRetriever) Retrieve(_ context.Context, query string, _ int) ([]datatypes.ChunkRecord, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.results[query], nil
}

// mockGenerator scripts the three step kinds. EvidenceQueries drive the
// retrieve callback; Drafts and Verdicts are consumed per call, the last
// entry repeating.
type mockGenerator struct {
	evidenceQueries []string
	evidenceErr     error

	drafts   []string
	verdicts []string

	draftCalls  int
	verifyCalls int
	seenPacks   []string
}

func (m *mockGenerator) GenerateEvidence(ctx context.Context, _ string, topK int, retrieve RetrieveFunc) (string, error) {
	if m.evidenceErr != nil {
		return "", m.evidenceErr
	}
	var lines []string
	for _, q := range m.evidenceQueries {
		recs, err := retrieve(ctx, q, topK)
		if err != nil {
			return "", err
		}
		for _, rec := range recs {
			lines = append(lines, fmt.Sprintf("- [%s] %q", rec.CitationKey(), rec.Text))
		}
	}
	return strings.Join(lines, "\n"), nil
}

func (m *mockGenerator) GenerateDraft(_ context.Context, _, pack string) (string, error) {
	m.seenPacks = append(m.seenPacks, pack)
	i := m.draftCalls
	m.draftCalls++
	if i >= len(m.drafts) {
		i = len(m.drafts) - 1
	}
	return m.drafts[i], nil
}

func (m *mockGenerator) GenerateVerification(_ context.Context, _, _ string) (string, error) {
	i := m.verifyCalls
	m.verifyCalls++
	if i >= len(m.verdicts) {
		i = len(m.verdicts) - 1
	}
	return m.verdicts[i], nil
}

func askReq(question string) *datatypes.AskRequest {
	return &datatypes.AskRequest{Question: question, TopK: 4}
}

func docChunk(id, text string) datatypes.ChunkRecord {
	return datatypes.ChunkRecord{ChunkID: id, Source: "doc.txt", Section: "Limits", Text: text}
}

// =============================================================================
// Single pass
// =============================================================================

func TestAnswerSinglePassGrounded(t *testing.T) {
	retriever := &mockRetriever{results: map[string][]datatypes.ChunkRecord{
		"upload limit": {docChunk("chunk-03", "The upload limit is 5 GB.")},
	}}
	gen := &mockGenerator{
		evidenceQueries: []string{"upload limit"},
		drafts:          []string{"The upload limit is 5 GB [doc.txt#chunk-03]."},
		verdicts:        []string{"OK"},
	}

	resp, err := New(gen, retriever).Answer(context.Background(), askReq("What is the upload limit?"))
	require.NoError(t, err)

	assert.Equal(t, "The upload limit is 5 GB [doc.txt#chunk-03].", resp.Answer)
	require.Len(t, resp.Citations, 1)
	assert.Equal(t, "doc.txt", resp.Citations[0].Source)
	assert.Equal(t, "chunk-03", resp.Citations[0].ChunkID)
	assert.Nil(t, resp.Debug)

	assert.Equal(t, 1, gen.draftCalls)
	assert.Equal(t, 1, gen.verifyCalls)
	assert.Equal(t, []string{"upload limit"}, retriever.queries)
}

func TestAnswerRepairsLooseCitations(t *testing.T) {
	retriever := &mockRetriever{results: map[string][]datatypes.ChunkRecord{
		"upload limit": {docChunk("chunk-03", "The upload limit is 5 GB.")},
	}}
	gen := &mockGenerator{
		evidenceQueries: []string{"upload limit"},
		drafts:          []string{"The upload limit is 5 GB doc.txt#chunk-3."},
		verdicts:        []string{"OK"},
	}

	resp, err := New(gen, retriever).Answer(context.Background(), askReq("limit?"))
	require.NoError(t, err)
	assert.Equal(t, "The upload limit is 5 GB [doc.txt#chunk-03].", resp.Answer)
	require.Len(t, resp.Citations, 1)
}

func TestAnswerRefusesUngroundedDraft(t *testing.T) {
	retriever := &mockRetriever{results: map[string][]datatypes.ChunkRecord{
		"upload limit": {docChunk("chunk-03", "The upload limit is 5 GB.")},
	}}
	gen := &mockGenerator{
		evidenceQueries: []string{"upload limit"},
		// Cites a chunk that was never retrieved.
		drafts:   []string{"The limit is 99 TB [doc.txt#chunk-77]."},
		verdicts: []string{"OK"},
	}

	req := askReq("limit?")
	req.Debug = true
	resp, err := New(gen, retriever).Answer(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, datatypes.RefusalAnswer, resp.Answer)
	assert.Empty(t, resp.Citations)
	assert.NotNil(t, resp.Citations, "citations must serialize as [], not null")
	require.NotNil(t, resp.Debug)
	require.Len(t, resp.Debug.Retrieved, 1, "debug reports store contents even on refusal")
	assert.Equal(t, "chunk-03", resp.Debug.Retrieved[0].ChunkID)
}

// =============================================================================
// Fallback branch
// =============================================================================

func TestAnswerFallbackSeedsStore(t *testing.T) {
	question := "What is the upload limit?"
	retriever := &mockRetriever{results: map[string][]datatypes.ChunkRecord{
		question: {docChunk("chunk-03", "The upload limit is 5 GB.")},
	}}
	gen := &mockGenerator{
		evidenceQueries: nil, // generation never touches the retrieval tool
		drafts: []string{
			"I can't answer without evidence.",
			"The upload limit is 5 GB [doc.txt#chunk-03].",
		},
		verdicts: []string{"OK"},
	}

	resp, err := New(gen, retriever).Answer(context.Background(), askReq(question))
	require.NoError(t, err)

	assert.Equal(t, "The upload limit is 5 GB [doc.txt#chunk-03].", resp.Answer)
	assert.Equal(t, 2, gen.draftCalls, "fallback spends the second pass")
	assert.Equal(t, []string{question}, retriever.queries, "fallback retrieves with the original question")
	require.Len(t, gen.seenPacks, 2)
	assert.Contains(t, gen.seenPacks[1], "[doc.txt#chunk-03]", "second draft sees the seeded pack")
}

func TestAnswerFallbackZeroCandidatesRefuses(t *testing.T) {
	retriever := &mockRetriever{results: map[string][]datatypes.ChunkRecord{}}
	gen := &mockGenerator{
		evidenceQueries: nil,
		drafts:          []string{"whatever"},
		verdicts:        []string{"OK"},
	}

	resp, err := New(gen, retriever).Answer(context.Background(), askReq("unknown topic"))
	require.NoError(t, err)

	assert.Equal(t, datatypes.RefusalAnswer, resp.Answer)
	assert.Empty(t, resp.Citations)
	assert.Equal(t, 1, gen.draftCalls, "no second draft against an empty corpus")
}

func TestAnswerFallbackExcludesRetry(t *testing.T) {
	question := "limit?"
	retriever := &mockRetriever{results: map[string][]datatypes.ChunkRecord{
		question: {docChunk("chunk-03", "The upload limit is 5 GB.")},
	}}
	gen := &mockGenerator{
		evidenceQueries: nil,
		drafts: []string{
			"no evidence yet",
			"The upload limit is 5 GB [doc.txt#chunk-03].",
		},
		// Even the fallback pass verdict asks for follow-ups; the pass
		// cap must ignore it.
		verdicts: []string{"FOLLOWUP_QUERIES\n- more evidence please"},
	}

	resp, err := New(gen, retriever).Answer(context.Background(), askReq(question))
	require.NoError(t, err)

	assert.Equal(t, "The upload limit is 5 GB [doc.txt#chunk-03].", resp.Answer)
	assert.Equal(t, 2, gen.draftCalls)
	assert.Equal(t, []string{question}, retriever.queries, "no follow-up retrieval after fallback")
}

// =============================================================================
// Retry branch
// =============================================================================

func TestAnswerRetryMergesFollowupEvidence(t *testing.T) {
	retriever := &mockRetriever{results: map[string][]datatypes.ChunkRecord{
		"upload limit":    {docChunk("chunk-03", "The upload limit is 5 GB.")},
		"paid plan limit": {docChunk("chunk-07", "Paid plans allow 50 GB.")},
	}}
	gen := &mockGenerator{
		evidenceQueries: []string{"upload limit"},
		drafts: []string{
			"Free plans cap at 5 GB [doc.txt#chunk-03].",
			"Free plans cap at 5 GB [doc.txt#chunk-03].\n\nPaid plans allow 50 GB [doc.txt#chunk-07].",
		},
		verdicts: []string{"FOLLOWUP_QUERIES\n- paid plan limit", "OK"},
	}

	resp, err := New(gen, retriever).Answer(context.Background(), askReq("What are the limits?"))
	require.NoError(t, err)

	require.Len(t, resp.Citations, 2)
	assert.Equal(t, "chunk-03", resp.Citations[0].ChunkID)
	assert.Equal(t, "chunk-07", resp.Citations[1].ChunkID)

	assert.Equal(t, 2, gen.draftCalls)
	assert.Equal(t, 2, gen.verifyCalls)
	assert.Equal(t, []string{"upload limit", "paid plan limit"}, retriever.queries)
	require.Len(t, gen.seenPacks, 2)
	assert.Contains(t, gen.seenPacks[1], "chunk-07", "retry pack holds merged evidence")
}

func TestAnswerRetryFollowupFailurePropagates(t *testing.T) {
	boom := errors.New("weaviate down")
	retriever := &erroringAfterFirst{
		first: []datatypes.ChunkRecord{docChunk("chunk-03", "The upload limit is 5 GB.")},
		err:   boom,
	}
	gen := &mockGenerator{
		evidenceQueries: []string{"upload limit"},
		drafts:          []string{"Draft [doc.txt#chunk-03]."},
		verdicts:        []string{"FOLLOWUP_QUERIES\n- anything"},
	}

	_, err := New(gen, retriever).Answer(context.Background(), askReq("limit?"))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

type erroringAfterFirst struct {
	mu    sync.Mutex
	calls int
	first []datatypes.ChunkRecord
	err   error
}

func (e *erroringAfterFirst) Retrieve(_ context.Context, _ string, _ int) ([]datatypes.ChunkRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.calls == 1 {
		return e.first, nil
	}
	return nil, e.err
}

// =============================================================================
// Upstream errors and validation
// =============================================================================

func TestAnswerEvidenceErrorPropagates(t *testing.T) {
	boom := errors.New("llm unavailable")
	gen := &mockGenerator{evidenceErr: boom, drafts: []string{""}, verdicts: []string{"OK"}}
	retriever := &mockRetriever{}

	_, err := New(gen, retriever).Answer(context.Background(), askReq("q"))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestAnswerRetrievalErrorPropagates(t *testing.T) {
	boom := errors.New("weaviate down")
	retriever := &mockRetriever{err: boom}
	gen := &mockGenerator{
		evidenceQueries: []string{"anything"},
		drafts:          []string{""},
		verdicts:        []string{"OK"},
	}

	_, err := New(gen, retriever).Answer(context.Background(), askReq("q"))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestAnswerRejectsEmptyQuestion(t *testing.T) {
	gen := &mockGenerator{drafts: []string{""}, verdicts: []string{"OK"}}
	_, err := New(gen, &mockRetriever{}).Answer(context.Background(), &datatypes.AskRequest{Question: ""})
	assert.Error(t, err)
}

func TestAnswerDefaultsTopK(t *testing.T) {
	req := &datatypes.AskRequest{Question: "q"}
	retriever := &mockRetriever{results: map[string][]datatypes.ChunkRecord{}}
	gen := &mockGenerator{drafts: []string{""}, verdicts: []string{"OK"}}

	_, err := New(gen, retriever).Answer(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, datatypes.DefaultTopK, req.TopK)
}
