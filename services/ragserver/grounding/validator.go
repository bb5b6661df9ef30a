// Copyright (C) 2026 Rupert Tadman
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package grounding is the fail-closed gate between a drafted answer and
// the response: an answer ships only when every claim block is cited and
// every citation resolves to retrieved evidence.
package grounding

import (
	"regexp"
	"strings"

	"github.com/rupertt/rag-citations-app/services/ragserver/citations"
	"github.com/rupertt/rag-citations-app/services/ragserver/datatypes"
	"github.com/rupertt/rag-citations-app/services/ragserver/evidence"
)

var (
	blockSplitRe = regexp.MustCompile(`\n\s*\n`)
	wordRe       = regexp.MustCompile(`\w`)
	strictRe     = regexp.MustCompile(`\[([^\]#]+)#(chunk-\d+)\]`)
)

// Failure reasons, also used as metric labels.
const (
	ReasonEmptyDraft      = "empty_draft"
	ReasonNoCitationToken = "no_citation_token"
	ReasonDensity         = "citation_density"
	ReasonNoStrict        = "no_strict_citations"
	ReasonUnknownCitation = "unknown_citation"
	ReasonNoEvidence      = "no_evidence"
)

// Result is the outcome of validating one draft.
type Result struct {
	OK     bool
	Reason string // one of the Reason* constants, empty on success
	// Citations are the resolved records in first-citation order, set
	// only on success.
	Citations []datatypes.Citation
}

func fail(reason string) Result {
	return Result{Reason: reason}
}

// Validate runs the sequential grounding gate over a draft:
//
//  1. presence: the text contains at least one citation-shaped token
//  2. density: every non-whitespace block separated by a blank line
//     carries at least one strict citation
//  3. strict extraction yields at least one key
//  4. membership: every normalized key resolves to a stored chunk
//
// The first failing stage decides the refusal reason. Later stages never
// mask earlier ones.
func Validate(text string, store *evidence.Store) Result {
	txt := strings.TrimSpace(text)
	if txt == "" {
		return fail(ReasonEmptyDraft)
	}

	if !citations.HasCitationToken(txt) {
		return fail(ReasonNoCitationToken)
	}

	if !passesCitationDensity(txt) {
		return fail(ReasonDensity)
	}

	keys := citations.ExtractStrict(txt)
	if len(keys) == 0 {
		return fail(ReasonNoStrict)
	}

	resolved := make([]datatypes.Citation, 0, len(keys))
	for _, key := range keys {
		rec, ok := store.Get(citations.Normalize(key, store))
		if !ok {
			return fail(ReasonUnknownCitation)
		}
		resolved = append(resolved, datatypes.Citation{
			Source:  rec.Source,
			ChunkID: rec.ChunkID,
			Snippet: evidence.Flatten(rec.Text, evidence.SnippetLen),
		})
	}

	return Result{OK: true, Citations: resolved}
}

// passesCitationDensity enforces at least one strict citation per
// paragraph or bullet group. Blocks are separated by blank lines; blocks
// without a word character (dividers and the like) are skipped.
func passesCitationDensity(txt string) bool {
	for _, blk := range blockSplitRe.Split(txt, -1) {
		if !wordRe.MatchString(blk) {
			continue
		}
		if !strictRe.MatchString(blk) {
			return false
		}
	}
	return true
}
