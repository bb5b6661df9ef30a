// Copyright (C) 2026 Rupert Tadman
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ingest

import (
	"crypto/sha256"
	"fmt"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/rupertt/rag-citations-app/services/ragserver/datatypes"
)

// ChunkDocument splits a document into chunks with stable, zero-padded
// ids (chunk-00, chunk-01, ...) counted across all sections of the
// document. Each chunk carries its section title as metadata and,
// when titled, as a context prefix inside the chunk text.
func ChunkDocument(text, source string, chunkSize, chunkOverlap int) ([]datatypes.ChunkRecord, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
		textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
	)

	var records []datatypes.ChunkRecord
	chunkIndex := 0

	for _, sec := range SplitSections(text) {
		// Split within the section for locality; keep the title as context.
		prefix := ""
		if sec.Title != "" {
			prefix = sec.Title + "\n\n"
		}
		chunks, err := splitter.SplitText(prefix + sec.Body)
		if err != nil {
			return nil, fmt.Errorf("splitting section %q: %w", sec.Title, err)
		}
		for _, chunk := range chunks {
			records = append(records, datatypes.ChunkRecord{
				ChunkID: fmt.Sprintf("chunk-%02d", chunkIndex),
				Source:  source,
				Section: sec.Title,
				Text:    chunk,
			})
			chunkIndex++
		}
	}
	return records, nil
}

// ChunkUUID derives the deterministic Weaviate object id for a chunk.
// Keying on (source, chunk_id) makes re-ingesting a document an upsert
// of the same objects instead of an ever-growing duplicate set.
func ChunkUUID(source, chunkID string) string {
	hash := sha256.Sum256([]byte(source + "::" + chunkID))
	id, _ := uuid.FromBytes(hash[:16])
	return id.String()
}
