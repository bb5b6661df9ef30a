// Copyright (C) 2026 Rupert Tadman
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package grounding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rupertt/rag-citations-app/services/ragserver/datatypes"
	"github.com/rupertt/rag-citations-app/services/ragserver/evidence"
)

func storeWith(recs ...datatypes.ChunkRecord) *evidence.Store {
	s := evidence.NewStore()
	s.Record("test query", len(recs), recs)
	return s
}

func rec(source, chunkID, text string) datatypes.ChunkRecord {
	return datatypes.ChunkRecord{ChunkID: chunkID, Source: source, Text: text}
}

// =============================================================================
// Failure stages
// =============================================================================

func TestValidateFailureReasons(t *testing.T) {
	store := storeWith(rec("doc.txt", "chunk-03", "The upload limit is 5 GB."))

	tests := []struct {
		name   string
		text   string
		reason string
	}{
		{
			name:   "empty draft",
			text:   "  \n ",
			reason: ReasonEmptyDraft,
		},
		{
			name:   "no citation token at all",
			text:   "The upload limit is 5 GB.",
			reason: ReasonNoCitationToken,
		},
		{
			name:   "uncited trailing paragraph fails density",
			text:   "The limit is 5 GB [doc.txt#chunk-03].\n\nAlso it is fast.",
			reason: ReasonDensity,
		},
		{
			name:   "loose citation only never validates",
			text:   "The limit is 5 GB [doc.txt#chunk-03 according to docs.",
			reason: ReasonDensity,
		},
		{
			name:   "citation to unretrieved chunk",
			text:   "The limit is 5 GB [doc.txt#chunk-99].",
			reason: ReasonUnknownCitation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(tt.text, store)
			assert.False(t, res.OK)
			assert.Equal(t, tt.reason, res.Reason)
			assert.Empty(t, res.Citations)
		})
	}
}

func TestValidateEmptyStoreRejectsEverything(t *testing.T) {
	res := Validate("Claim [doc.txt#chunk-00].", evidence.NewStore())
	assert.False(t, res.OK)
	assert.Equal(t, ReasonUnknownCitation, res.Reason)
}

// =============================================================================
// Success path
// =============================================================================

func TestValidateSuccess(t *testing.T) {
	store := storeWith(
		rec("doc.txt", "chunk-03", "The upload limit is 5 GB for free plans."),
		rec("faq.md", "chunk-01", "Paid plans raise the limit to 50 GB."),
	)

	text := "Free plans cap uploads at 5 GB [doc.txt#chunk-03].\n\n" +
		"Paid plans go up to 50 GB [faq.md#chunk-01] [doc.txt#chunk-03]."
	res := Validate(text, store)

	require.True(t, res.OK)
	assert.Empty(t, res.Reason)
	require.Len(t, res.Citations, 2, "citations dedup in first-citation order")
	assert.Equal(t, "doc.txt", res.Citations[0].Source)
	assert.Equal(t, "chunk-03", res.Citations[0].ChunkID)
	assert.Equal(t, "The upload limit is 5 GB for free plans.", res.Citations[0].Snippet)
	assert.Equal(t, "faq.md", res.Citations[1].Source)
}

func TestValidateNormalizesZeroPadding(t *testing.T) {
	store := storeWith(rec("doc.txt", "chunk-03", "Padded id."))

	res := Validate("Claim [doc.txt#chunk-3].", store)
	require.True(t, res.OK)
	require.Len(t, res.Citations, 1)
	assert.Equal(t, "chunk-03", res.Citations[0].ChunkID)
}

func TestValidateSnippetTruncation(t *testing.T) {
	long := ""
	for i := 0; i < 30; i++ {
		long += "0123456789"
	}
	store := storeWith(rec("doc.txt", "chunk-00", long))

	res := Validate("Claim [doc.txt#chunk-00].", store)
	require.True(t, res.OK)
	assert.Len(t, res.Citations[0].Snippet, 240+3)
}

func TestValidateSkipsWordlessBlocks(t *testing.T) {
	store := storeWith(rec("doc.txt", "chunk-00", "text"))

	text := "Claim [doc.txt#chunk-00].\n\n---\n\nMore [doc.txt#chunk-00]."
	res := Validate(text, store)
	assert.True(t, res.OK)
}
