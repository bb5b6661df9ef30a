// Copyright (C) 2026 Rupert Tadman
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// ChunkRecord is one retrieved (or ingested) evidence chunk. Score
// semantics depend on the retrieval method: Weaviate nearVector reports
// a distance where lower is better; seeded or re-ranked results may
// carry 0.0. Consumers must not compare scores across methods.
type ChunkRecord struct {
	ChunkID string  `json:"chunk_id"`
	Source  string  `json:"source"`
	Section string  `json:"section"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
}

// CitationKey returns the canonical "<source>#<chunk_id>" key used for
// citations, store lookups and deduplication.
func (c ChunkRecord) CitationKey() string {
	return c.Source + "#" + c.ChunkID
}

// Message is a single chat turn passed to an LLM backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
