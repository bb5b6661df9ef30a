// Copyright (C) 2026 Rupert Tadman
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEmbeddedDefaults(t *testing.T) {
	c := NewCache("")

	for _, name := range []string{"system", "answer", "retriever", "responder", "verifier"} {
		text, err := c.Get(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, text, name)
	}

	// The refusal sentence must survive any prompt editing byte for byte.
	system, err := c.Get("system")
	require.NoError(t, err)
	assert.Contains(t, system, "I can’t find that in the provided documentation.")
}

func TestGetUnknownPrompt(t *testing.T) {
	_, err := NewCache("").Get("nope")
	assert.Error(t, err)
}

func TestGetOverrideDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "system.md"), []byte("custom system prompt"), 0o644))

	c := NewCache(dir)

	text, err := c.Get("system")
	require.NoError(t, err)
	assert.Equal(t, "custom system prompt", text)

	// Names without an override fall back to the embedded default.
	verifier, err := c.Get("verifier")
	require.NoError(t, err)
	assert.Contains(t, verifier, "FOLLOWUP_QUERIES")
}

func TestGetCachesFirstRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "system.md")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	c := NewCache(dir)
	text, err := c.Get("system")
	require.NoError(t, err)
	assert.Equal(t, "v1", text)

	// Later edits are not observed; the cache holds the first read.
	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))
	text, err = c.Get("system")
	require.NoError(t, err)
	assert.Equal(t, "v1", text)
}
