// Copyright (C) 2026 Rupert Tadman
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package citations parses and repairs citation tokens of the form
// [<source>#chunk-<n>]. All functions are pure: they read the evidence
// key index but never mutate it.
package citations

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Accept 2+ digits because chunk ids may grow beyond 99 (chunk-100 and up)
// depending on document size.
var (
	// strictRe matches the required citation token format: [<source>#chunk-XX]
	strictRe = regexp.MustCompile(`\[([^\]#]+)#(chunk-\d+)\]`)
	// looseRe matches slightly malformed citations (missing brackets etc.).
	// Used only for deterministic repair, never for validation.
	looseRe = regexp.MustCompile(`([^\s\[\]#]+)#(chunk-\d+)`)

	chunkNumRe = regexp.MustCompile(`^chunk-(\d+)$`)
)

// KeyIndex is the subset of the evidence store the parser needs: a
// membership probe over canonical "<source>#<chunk_id>" keys.
type KeyIndex interface {
	Has(key string) bool
}

// HasCitationToken is a cheap pre-filter: true when the text plausibly
// contains a citation at all. It accepts malformed citations on purpose;
// strict extraction decides what actually counts.
func HasCitationToken(text string) bool {
	return strings.Contains(text, "[") && strings.Contains(text, "#chunk-")
}

// ExtractStrict returns citation keys in first-occurrence order, with
// duplicates removed, considering only well-formed [<source>#chunk-XX]
// tokens.
func ExtractStrict(text string) []string {
	seen := make(map[string]struct{})
	var ordered []string
	for _, m := range strictRe.FindAllStringSubmatch(text, -1) {
		key := m[1] + "#" + m[2]
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		ordered = append(ordered, key)
	}
	return ordered
}

// ExtractLoose returns citation keys even when the surrounding brackets
// are missing or broken. Repair uses this; validation must not.
func ExtractLoose(text string) []string {
	seen := make(map[string]struct{})
	var ordered []string
	for _, m := range looseRe.FindAllStringSubmatch(text, -1) {
		key := m[1] + "#" + m[2]
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		ordered = append(ordered, key)
	}
	return ordered
}

// Normalize maps citation keys onto stable stored keys, so doc.txt#chunk-3
// resolves to doc.txt#chunk-03. This prevents false negatives where the
// model cites a valid chunk but drops leading zeros. A verbatim store hit
// always wins; an unresolvable key comes back unchanged.
func Normalize(key string, store KeyIndex) string {
	if store.Has(key) {
		return key
	}

	src, cid, ok := strings.Cut(key, "#")
	if !ok {
		return key
	}
	m := chunkNumRe.FindStringSubmatch(cid)
	if m == nil {
		return key
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return key
	}

	// Probe the common stable formats.
	for _, c := range []string{
		fmt.Sprintf("chunk-%02d", n),
		fmt.Sprintf("chunk-%03d", n),
		fmt.Sprintf("chunk-%d", n),
	} {
		if k := src + "#" + c; store.Has(k) {
			return k
		}
	}
	return key
}

// Repair deterministically converts loose occurrences like "doc.txt#chunk-3"
// into strict "[doc.txt#chunk-03]" without another LLM pass. Only loose
// citations that resolve to a stored key are rewritten, and only when the
// text holds no strict citation already; everything else is left for the
// validator to fail closed on.
func Repair(text string, store KeyIndex) string {
	txt := strings.TrimSpace(text)
	if txt == "" {
		return txt
	}
	if strictRe.MatchString(txt) {
		return txt
	}

	var b strings.Builder
	last := 0
	for _, loc := range looseRe.FindAllStringIndex(txt, -1) {
		start, end := loc[0], loc[1]
		// Skip matches that are already (partially) bracketed.
		if start > 0 && txt[start-1] == '[' {
			continue
		}
		if end < len(txt) && txt[end] == ']' {
			continue
		}
		key := Normalize(txt[start:end], store)
		if !store.Has(key) {
			continue
		}
		b.WriteString(txt[last:start])
		b.WriteString("[")
		b.WriteString(key)
		b.WriteString("]")
		last = end
	}
	b.WriteString(txt[last:])
	return b.String()
}
