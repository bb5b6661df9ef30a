// Copyright (C) 2026 Rupert Tadman
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package evidence

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	// PackQuoteLen bounds the quote rendered per evidence line.
	PackQuoteLen = 160
	// SnippetLen bounds the snippet carried on a citation record.
	SnippetLen = 240
)

var packChunkNumRe = regexp.MustCompile(`^chunk-(\d+)$`)

// nonNumericChunkOrder sorts chunk ids that carry no numeric index after
// every numeric one.
const nonNumericChunkOrder = 1_000_000_000

// FormatPack renders the store as the Evidence Pack bullet list handed
// to the drafting and verification prompts:
//
//	- [<source>#<chunk_id>] "<short quote>"
//
// Keys are ordered by (lowercased source, numeric chunk index, raw chunk
// id), so repeated calls on an unchanged store yield byte-identical output.
func (s *Store) FormatPack() string {
	keys := make([]string, 0, len(s.chunks))
	for k := range s.chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		si, ni, ci := packSortKey(keys[i])
		sj, nj, cj := packSortKey(keys[j])
		if si != sj {
			return si < sj
		}
		if ni != nj {
			return ni < nj
		}
		return ci < cj
	})

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		rec := s.chunks[key]
		quote := Flatten(rec.Text, PackQuoteLen)
		// Always wrap in quotes to keep formatting consistent.
		lines = append(lines, fmt.Sprintf("- [%s#%s] \"%s\"", rec.Source, rec.ChunkID, quote))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func packSortKey(key string) (string, int, string) {
	src, cid, _ := strings.Cut(key, "#")
	n := nonNumericChunkOrder
	if m := packChunkNumRe.FindStringSubmatch(cid); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			n = v
		}
	}
	return strings.ToLower(src), n, cid
}

// Flatten collapses a chunk text into a single quotable line: newlines
// become spaces and anything past max runes is cut with an ellipsis.
func Flatten(text string, max int) string {
	flat := strings.ReplaceAll(strings.TrimSpace(text), "\n", " ")
	r := []rune(flat)
	if len(r) <= max {
		return flat
	}
	return string(r[:max]) + "..."
}
