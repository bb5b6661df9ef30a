// Copyright (C) 2026 Rupert Tadman
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package evidence

import "github.com/rupertt/rag-citations-app/services/ragserver/datatypes"

// sectionKeyLen bounds the section title used for grouping so pathological
// headings cannot make every chunk its own group.
const sectionKeyLen = 120

type diversityGroup struct {
	source  string
	section string
}

// SelectDiverse picks up to topK candidates with basic diversity
// constraints. Duplicates (by citation key) are removed first, keeping
// the first occurrence. If the deduplicated set already fits, it is
// returned as is. Otherwise a soft cap of 2 chunks per (source, section)
// group applies while more than one group has been seen, and any
// remaining slots are backfilled in original order.
func SelectDiverse(candidates []datatypes.ChunkRecord, topK int) []datatypes.ChunkRecord {
	seen := make(map[string]struct{})
	deduped := make([]datatypes.ChunkRecord, 0, len(candidates))
	for _, rec := range candidates {
		key := rec.CitationKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, rec)
	}

	if len(deduped) <= topK {
		return deduped
	}

	out := make([]datatypes.ChunkRecord, 0, topK)
	perGroup := make(map[diversityGroup]int)
	for _, rec := range deduped {
		group := diversityGroup{source: rec.Source, section: truncateRunes(rec.Section, sectionKeyLen)}
		if perGroup[group] >= 2 && len(perGroup) > 1 {
			continue
		}
		out = append(out, rec)
		perGroup[group]++
		if len(out) >= topK {
			break
		}
	}

	// If the cap was too strict, backfill from the remaining candidates.
	if len(out) < topK {
		chosen := make(map[string]struct{}, len(out))
		for _, rec := range out {
			chosen[rec.CitationKey()] = struct{}{}
		}
		for _, rec := range deduped {
			if _, ok := chosen[rec.CitationKey()]; ok {
				continue
			}
			out = append(out, rec)
			if len(out) >= topK {
				break
			}
		}
	}
	return out
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
