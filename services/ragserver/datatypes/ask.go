// Copyright (C) 2026 Rupert Tadman
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"fmt"
	"strings"
)

// RefusalAnswer is the canonical refusal literal. It is a protocol constant:
// clients match it byte for byte, so it must never be reworded or templated.
const RefusalAnswer = "I can’t find that in the provided documentation."

const (
	DefaultTopK = 4
	MaxTopK     = 20
)

// AskRequest is the body of POST /ask.
type AskRequest struct {
	Question string `json:"question" binding:"required,min=1"`
	TopK     int    `json:"top_k" binding:"omitempty,min=1,max=20"`
	Debug    bool   `json:"debug"`
}

// EnsureDefaults fills in the default candidate count when the caller
// omitted top_k.
func (r *AskRequest) EnsureDefaults() {
	if r.TopK == 0 {
		r.TopK = DefaultTopK
	}
}

// Validate checks bounds for callers that bypass gin binding.
func (r *AskRequest) Validate() error {
	if strings.TrimSpace(r.Question) == "" {
		return fmt.Errorf("question must not be empty")
	}
	if r.TopK < 1 || r.TopK > MaxTopK {
		return fmt.Errorf("top_k must be between 1 and %d, got %d", MaxTopK, r.TopK)
	}
	return nil
}

// Citation points at one evidence chunk backing the answer.
type Citation struct {
	Source  string `json:"source"`
	ChunkID string `json:"chunk_id"`
	Snippet string `json:"snippet"`
}

// RetrievedChunk is the debug view of one chunk the service retrieved
// while answering, whether or not it was cited.
type RetrievedChunk struct {
	ChunkID string  `json:"chunk_id"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
}

type DebugInfo struct {
	Retrieved []RetrievedChunk `json:"retrieved"`
}

// AskResponse is the body of POST /ask responses. Citations is always
// present ([] on refusal); Debug only when the request asked for it.
type AskResponse struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	Debug     *DebugInfo `json:"debug,omitempty"`
}
