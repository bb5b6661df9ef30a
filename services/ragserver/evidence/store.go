// Copyright (C) 2026 Rupert Tadman
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package evidence holds the per-request store of retrieved chunks that
// grounds answer drafting, validation and citation building.
package evidence

import (
	"sort"

	"github.com/rupertt/rag-citations-app/services/ragserver/datatypes"
)

// RetrievalCall is one append-only audit entry: the query issued, the
// candidate count requested and the chunks that came back.
type RetrievalCall struct {
	Query      string
	RequestedK int
	Results    []datatypes.ChunkRecord
}

// Store accumulates every chunk retrieved while answering one request.
// Keys are canonical "<source>#<chunk_id>" strings; re-retrieving a key
// overwrites the record (last write wins) and there is no deletion.
//
// A Store lives for exactly one request and is never shared across
// goroutines, so it carries no locking.
type Store struct {
	chunks map[string]datatypes.ChunkRecord
	calls  []RetrievalCall
}

func NewStore() *Store {
	return &Store{chunks: make(map[string]datatypes.ChunkRecord)}
}

// Record logs a retrieval call and upserts its results into the store.
func (s *Store) Record(query string, requestedK int, results []datatypes.ChunkRecord) {
	s.calls = append(s.calls, RetrievalCall{Query: query, RequestedK: requestedK, Results: results})
	for _, rec := range results {
		s.chunks[rec.CitationKey()] = rec
	}
}

// Seed populates the store from a direct retrieval with the original
// question. Same upsert contract as Record; kept as its own name so the
// call log reads honestly when the generation step never touched the
// retrieval tool.
func (s *Store) Seed(question string, requestedK int, results []datatypes.ChunkRecord) {
	s.Record(question, requestedK, results)
}

// Has reports whether a canonical citation key is in the store.
func (s *Store) Has(key string) bool {
	_, ok := s.chunks[key]
	return ok
}

// Get returns the chunk stored under a canonical citation key.
func (s *Store) Get(key string) (datatypes.ChunkRecord, bool) {
	rec, ok := s.chunks[key]
	return rec, ok
}

// Len returns the number of distinct chunks in the store.
func (s *Store) Len() int {
	return len(s.chunks)
}

// Calls returns the append-only retrieval log.
func (s *Store) Calls() []RetrievalCall {
	return s.calls
}

// Chunks returns every stored chunk, sorted by citation key so debug
// output is stable.
func (s *Store) Chunks() []datatypes.ChunkRecord {
	keys := make([]string, 0, len(s.chunks))
	for k := range s.chunks {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]datatypes.ChunkRecord, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.chunks[k])
	}
	return out
}
