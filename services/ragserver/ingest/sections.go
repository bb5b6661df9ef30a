// Copyright (C) 2026 Rupert Tadman
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ingest splits documents into sections and stable chunks for
// the vector store.
package ingest

import "strings"

// Section is one (heading, body) slice of a document.
type Section struct {
	Title string
	Body  string
}

type rawSection struct {
	title string
	lines []string
}

// SplitSections splits a document on its headings. Supported forms:
//
//   - ATX headings: "# Title", "## Title", ...
//   - Setext headings: a title line underlined with === or ---
//
// When no heading is found the whole document is one untitled section.
func SplitSections(text string) []Section {
	lines := strings.Split(text, "\n")

	var sections []rawSection
	curTitle := ""
	var curLines []string

	flush := func() {
		if len(curLines) > 0 {
			sections = append(sections, rawSection{
				title: strings.TrimSpace(curTitle),
				lines: append([]string(nil), curLines...),
			})
		}
		curLines = nil
	}

	i := 0
	for i < len(lines) {
		ln := lines[i]
		stripped := strings.TrimSpace(ln)

		// ATX heading: "# Title"
		if strings.HasPrefix(stripped, "#") {
			title := strings.TrimSpace(strings.TrimLeft(stripped, "#"))
			if title != "" {
				flush()
				curTitle = title
				i++
				continue
			}
		}

		// Setext heading: a non-empty line underlined with = or -.
		if i+1 < len(lines) {
			next := strings.TrimSpace(lines[i+1])
			if stripped != "" && len(next) >= 3 && isSetextUnderline(next) {
				flush()
				curTitle = stripped
				i += 2
				continue
			}
		}

		curLines = append(curLines, ln)
		i++
	}
	flush()

	// Without a single titled section, fall back to one big section.
	titled := false
	for _, s := range sections {
		if s.title != "" {
			titled = true
			break
		}
	}
	if !titled {
		return []Section{{Title: "", Body: text}}
	}

	out := make([]Section, 0, len(sections))
	for _, s := range sections {
		body := strings.TrimSpace(strings.Join(s.lines, "\n"))
		if body == "" {
			continue
		}
		out = append(out, Section{Title: s.title, Body: body})
	}
	if len(out) == 0 {
		return []Section{{Title: "", Body: text}}
	}
	return out
}

func isSetextUnderline(s string) bool {
	for _, r := range s {
		if r != '=' && r != '-' {
			return false
		}
	}
	return s != ""
}
