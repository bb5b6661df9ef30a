// Copyright (C) 2026 Rupert Tadman
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import "strings"

// maxFollowups caps how many follow-up queries one verdict may trigger.
const maxFollowups = 3

// ParseFollowups reads a verifier verdict. The grammar is either the
// literal OK or a FOLLOWUP_QUERIES header followed by "- " bullets.
// Parsing is tolerant: without the header marker anywhere in the text
// the verdict counts as OK, non-bullet lines are ignored, and at most
// maxFollowups queries come back.
func ParseFollowups(verdict string) []string {
	txt := strings.TrimSpace(verdict)
	if txt == "" {
		return nil
	}
	if !strings.Contains(txt, "FOLLOWUP_QUERIES") {
		return nil
	}

	var lines []string
	for _, ln := range strings.Split(txt, "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			lines = append(lines, ln)
		}
	}
	// Skip the header line when present; otherwise scan everything.
	if len(lines) > 0 && strings.HasPrefix(lines[0], "FOLLOWUP_QUERIES") {
		lines = lines[1:]
	}

	var out []string
	for _, ln := range lines {
		if q, ok := strings.CutPrefix(ln, "- "); ok {
			out = append(out, strings.TrimSpace(q))
		}
	}
	if len(out) > maxFollowups {
		out = out[:maxFollowups]
	}
	return out
}
