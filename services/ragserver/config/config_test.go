// Copyright (C) 2026 Rupert Tadman
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"RAG_PORT", "WEAVIATE_SERVICE_URL", "LLM_BACKEND_TYPE", "EMBEDDING_MODEL_NAME",
		"RAG_CHUNK_SIZE", "RAG_CHUNK_OVERLAP", "RAG_AGENT_MODE", "RAG_PROMPTS_DIR",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "http://localhost:8081", cfg.WeaviateURL)
	assert.Equal(t, "openai", cfg.LLMBackend)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, 800, cfg.ChunkSize)
	assert.Equal(t, 100, cfg.ChunkOverlap)
	assert.True(t, cfg.AgentMode)
	assert.Equal(t, "", cfg.PromptsDir)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("RAG_PORT", "9090")
	t.Setenv("WEAVIATE_SERVICE_URL", "http://weaviate:8081")
	t.Setenv("LLM_BACKEND_TYPE", "ollama")
	t.Setenv("EMBEDDING_MODEL_NAME", "text-embedding-3-large")
	t.Setenv("RAG_CHUNK_SIZE", "1200")
	t.Setenv("RAG_CHUNK_OVERLAP", "200")
	t.Setenv("RAG_AGENT_MODE", "false")
	t.Setenv("RAG_PROMPTS_DIR", "/etc/rag/prompts")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "http://weaviate:8081", cfg.WeaviateURL)
	assert.Equal(t, "ollama", cfg.LLMBackend)
	assert.Equal(t, "text-embedding-3-large", cfg.EmbeddingModel)
	assert.Equal(t, 1200, cfg.ChunkSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.False(t, cfg.AgentMode)
	assert.Equal(t, "/etc/rag/prompts", cfg.PromptsDir)
}

func TestLoadInvalidBackendFallsBack(t *testing.T) {
	t.Setenv("LLM_BACKEND_TYPE", "quantum")

	cfg := Load()

	assert.Equal(t, "openai", cfg.LLMBackend)
}

func TestLoadRejectsOverlapLargerThanSize(t *testing.T) {
	t.Setenv("RAG_CHUNK_SIZE", "100")
	t.Setenv("RAG_CHUNK_OVERLAP", "150")

	cfg := Load()

	assert.Equal(t, 800, cfg.ChunkSize)
	assert.Equal(t, 100, cfg.ChunkOverlap)
}

func TestLoadInvalidIntFallsBack(t *testing.T) {
	t.Setenv("RAG_CHUNK_SIZE", "lots")

	cfg := Load()

	assert.Equal(t, 800, cfg.ChunkSize)
}
