// Copyright (C) 2026 Rupert Tadman
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package prompts loads the markdown prompt templates the answering
// pipeline sends to the LLM backends.
package prompts

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

//go:embed defaults/*.md
var defaults embed.FS

// Cache is a read-through cache over prompt files. A prompt named "x"
// resolves to <dir>/x.md when an override directory is configured and
// the file exists, otherwise to the embedded default. Loaded prompts are
// cached for the life of the process.
type Cache struct {
	dir string

	mu     sync.RWMutex
	loaded map[string]string
}

// NewCache builds a prompt cache. dir may be empty, in which case only
// the embedded defaults are served.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir, loaded: make(map[string]string)}
}

// Get returns the prompt text for a name like "system" or "verifier".
func (c *Cache) Get(name string) (string, error) {
	c.mu.RLock()
	text, ok := c.loaded[name]
	c.mu.RUnlock()
	if ok {
		return text, nil
	}

	text, err := c.load(name)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.loaded[name] = text
	c.mu.Unlock()
	return text, nil
}

func (c *Cache) load(name string) (string, error) {
	if c.dir != "" {
		path := filepath.Join(c.dir, name+".md")
		if data, err := os.ReadFile(path); err == nil {
			return string(data), nil
		}
	}

	data, err := defaults.ReadFile("defaults/" + name + ".md")
	if err != nil {
		return "", fmt.Errorf("unknown prompt %q: %w", name, err)
	}
	return string(data), nil
}
