// Copyright (C) 2026 VaultAI (engineering@vaultai.eu)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orderer

import (
	"regexp"
	"strings"
)

// decorationPattern strips the list decoration models like to add
// despite instructions: bullets, numbering, and quote markers.
var decorationPattern = regexp.MustCompile(`^(\s*(?:[-*•>]|\d+[.)])\s*)+`)

// parseRanking extracts an ordered list of known file paths from model
// output.
//
// Description:
//
//	Each line is stripped of leading bullet/numbering/quote decoration
//	and of any tab-separated suffix (models sometimes echo the whole
//	input row), trimmed, and then matched against the known input
//	paths. Unknown paths are dropped; duplicates keep their first
//	occurrence.
//
// Inputs:
//
//	text - Raw model output.
//	known - The input diff set's file paths.
//
// Outputs:
//
//	[]string - Recognized paths in model order; empty when nothing
//	matched.
func parseRanking(text string, known map[string]struct{}) []string {
	var parsed []string
	seen := make(map[string]struct{})

	for _, line := range strings.Split(text, "\n") {
		line = decorationPattern.ReplaceAllString(line, "")
		if tab := strings.IndexByte(line, '\t'); tab >= 0 {
			line = line[:tab]
		}
		line = strings.TrimSpace(line)
		line = strings.Trim(line, "`")
		if line == "" {
			continue
		}
		if _, ok := known[line]; !ok {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		parsed = append(parsed, line)
	}
	return parsed
}
