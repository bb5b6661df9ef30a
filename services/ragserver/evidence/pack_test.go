// Copyright (C) 2026 Rupert Tadman
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package evidence

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rupertt/rag-citations-app/services/ragserver/datatypes"
)

func TestFormatPackOrdering(t *testing.T) {
	s := NewStore()
	s.Record("q", 8, []datatypes.ChunkRecord{
		chunk("Zeta.md", "chunk-02", "zeta two", 0),
		chunk("alpha.md", "chunk-10", "alpha ten", 0),
		chunk("alpha.md", "chunk-02", "alpha two", 0),
		chunk("alpha.md", "chunk-odd", "no numeric index", 0),
	})

	want := strings.Join([]string{
		`- [alpha.md#chunk-02] "alpha two"`,
		`- [alpha.md#chunk-10] "alpha ten"`,
		`- [alpha.md#chunk-odd] "no numeric index"`,
		`- [Zeta.md#chunk-02] "zeta two"`,
	}, "\n")
	assert.Equal(t, want, s.FormatPack())

	// Repeated calls on an unchanged store are byte-identical.
	assert.Equal(t, s.FormatPack(), s.FormatPack())
}

func TestFormatPackNumericNotLexicographicChunkOrder(t *testing.T) {
	s := NewStore()
	s.Record("q", 8, []datatypes.ChunkRecord{
		chunk("doc.txt", "chunk-100", "hundred", 0),
		chunk("doc.txt", "chunk-20", "twenty", 0),
	})

	pack := s.FormatPack()
	assert.Less(t, strings.Index(pack, "chunk-20"), strings.Index(pack, "chunk-100"))
}

func TestFormatPackQuoteTruncation(t *testing.T) {
	long := strings.Repeat("x", 200)
	s := NewStore()
	s.Record("q", 4, []datatypes.ChunkRecord{
		chunk("doc.txt", "chunk-00", "line one\nline two", 0),
		chunk("doc.txt", "chunk-01", long, 0),
	})

	pack := s.FormatPack()
	assert.Contains(t, pack, `"line one line two"`, "newlines collapse to spaces")
	assert.Contains(t, pack, `"`+strings.Repeat("x", 160)+`..."`)
	assert.NotContains(t, pack, strings.Repeat("x", 161))
}

func TestFormatPackEmptyStore(t *testing.T) {
	assert.Equal(t, "", NewStore().FormatPack())
}

func TestFlatten(t *testing.T) {
	assert.Equal(t, "a b", Flatten(" a\nb ", 160))
	assert.Equal(t, "abc", Flatten("abc", 3))
	assert.Equal(t, "ab...", Flatten("abcd", 2))
}
