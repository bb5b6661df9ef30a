// Copyright (C) 2026 Rupert Tadman
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads the server configuration from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"
)

// Config holds everything the server needs at startup. Fields not set in
// the environment fall back to the defaults below.
type Config struct {
	Port           string
	WeaviateURL    string
	LLMBackend     string
	EmbeddingModel string
	ChunkSize      int
	ChunkOverlap   int
	AgentMode      bool
	PromptsDir     string
}

// Load reads the configuration from the environment, warning about the
// values it defaults.
func Load() Config {
	cfg := Config{
		Port:           getEnvString("RAG_PORT", "8080"),
		WeaviateURL:    os.Getenv("WEAVIATE_SERVICE_URL"),
		LLMBackend:     getEnvString("LLM_BACKEND_TYPE", "openai"),
		EmbeddingModel: getEnvString("EMBEDDING_MODEL_NAME", "text-embedding-3-small"),
		ChunkSize:      getEnvInt("RAG_CHUNK_SIZE", 800),
		ChunkOverlap:   getEnvInt("RAG_CHUNK_OVERLAP", 100),
		AgentMode:      getEnvBool("RAG_AGENT_MODE", true),
		PromptsDir:     os.Getenv("RAG_PROMPTS_DIR"),
	}

	if cfg.WeaviateURL == "" {
		cfg.WeaviateURL = "http://localhost:8081"
		slog.Warn("WEAVIATE_SERVICE_URL is not set, defaulting to http://localhost:8081")
	}
	switch cfg.LLMBackend {
	case "openai", "ollama", "anthropic":
	default:
		slog.Warn("LLM_BACKEND_TYPE not set or invalid, defaulting to openai", "value", cfg.LLMBackend)
		cfg.LLMBackend = "openai"
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		slog.Warn("RAG_CHUNK_OVERLAP must be smaller than RAG_CHUNK_SIZE, resetting to defaults",
			"chunk_size", cfg.ChunkSize, "chunk_overlap", cfg.ChunkOverlap)
		cfg.ChunkSize = 800
		cfg.ChunkOverlap = 100
	}
	return cfg
}

// getEnvString returns an environment variable as string, or defaultVal if not set.
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt returns an environment variable as int, or defaultVal if not set/invalid.
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

// getEnvBool returns an environment variable as bool, or defaultVal if not set/invalid.
func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}
