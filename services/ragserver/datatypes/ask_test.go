// Copyright (C) 2026 Rupert Tadman
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureDefaults(t *testing.T) {
	req := AskRequest{Question: "What is the upload limit?"}
	req.EnsureDefaults()
	assert.Equal(t, DefaultTopK, req.TopK)

	req = AskRequest{Question: "q", TopK: 7}
	req.EnsureDefaults()
	assert.Equal(t, 7, req.TopK, "explicit top_k is preserved")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     AskRequest
		wantErr bool
	}{
		{"valid", AskRequest{Question: "q", TopK: 4}, false},
		{"max top_k", AskRequest{Question: "q", TopK: MaxTopK}, false},
		{"empty question", AskRequest{Question: "", TopK: 4}, true},
		{"whitespace question", AskRequest{Question: "   ", TopK: 4}, true},
		{"top_k too small", AskRequest{Question: "q", TopK: 0}, true},
		{"top_k too large", AskRequest{Question: "q", TopK: MaxTopK + 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCitationKey(t *testing.T) {
	rec := ChunkRecord{Source: "docs.md", ChunkID: "chunk-03"}
	assert.Equal(t, "docs.md#chunk-03", rec.CitationKey())
}
