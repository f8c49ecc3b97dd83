// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/pdiddy/reference-engine/pkg/types"
)

var (
	// sectionHeadingRe matches section headings cleaning preserves:
	// "# Section 3 Duties", "## 52 Covenants", "# Regulation 4.07".
	sectionHeadingRe = regexp.MustCompile(`(?m)^#{1,6}\s+(?:(Section|Regulation|Rule|Part|Division|Schedule)\s+)?(\d+[A-Z]*(?:\.\d+)*)\b\s*(.*)$`)

	// paraMarkerRe matches enumerated paragraphs within a section, in the
	// normalized list form cleaning produces: "- (b) text".
	paraMarkerRe = regexp.MustCompile(`(?m)^\s*-\s+\((\w{1,4})\)\s+(.+)$`)
)

// prefixes maps structural keywords to pinpoint path prefixes.
var prefixes = map[string]string{
	"":           "s",
	"section":    "s",
	"regulation": "reg",
	"rule":       "r",
	"part":       "pt",
	"division":   "div",
	"schedule":   "sch",
}

// ExtractPinpoints finds structural markers in a cleaned document and
// builds pinpoint records against the given version. Sections become paths
// like "s 3" or "reg 4.07"; enumerated paragraphs inside a section become
// "s 3/para (b)". Documents without structural markers yield none, which
// is not an error; pinpoints can be entered manually later.
func ExtractPinpoints(doc types.CleanDocument, refID, versionID string) []types.Pinpoint {
	headings := sectionHeadingRe.FindAllStringSubmatchIndex(doc.Content, -1)
	if len(headings) == 0 {
		return nil
	}

	var pins []types.Pinpoint
	seen := make(map[string]bool)
	for i, h := range headings {
		keyword := strings.ToLower(matchGroup(doc.Content, h, 1))
		number := matchGroup(doc.Content, h, 2)
		title := strings.TrimSpace(matchGroup(doc.Content, h, 3))

		prefix, ok := prefixes[keyword]
		if !ok {
			continue
		}
		path := fmt.Sprintf("%s %s", prefix, number)
		if seen[path] {
			continue
		}
		seen[path] = true

		// The section body runs to the next heading.
		bodyStart := h[1]
		bodyEnd := len(doc.Content)
		if i+1 < len(headings) {
			bodyEnd = headings[i+1][0]
		}
		body := doc.Content[bodyStart:bodyEnd]

		pins = append(pins, types.Pinpoint{
			ID:          uuid.NewString(),
			ReferenceID: refID,
			VersionID:   versionID,
			Path:        path,
			Excerpt:     excerpt(body),
			Context:     title,
		})

		for _, pm := range paraMarkerRe.FindAllStringSubmatch(body, -1) {
			paraPath := fmt.Sprintf("%s/para (%s)", path, pm[1])
			if seen[paraPath] {
				continue
			}
			seen[paraPath] = true
			pins = append(pins, types.Pinpoint{
				ID:          uuid.NewString(),
				ReferenceID: refID,
				VersionID:   versionID,
				Path:        paraPath,
				Excerpt:     excerpt(pm[2]),
				Context:     title,
			})
		}
	}
	return pins
}

func matchGroup(text string, match []int, group int) string {
	start, end := match[2*group], match[2*group+1]
	if start < 0 {
		return ""
	}
	return text[start:end]
}

// excerpt returns the first sentence of text, capped at 200 bytes.
func excerpt(text string) string {
	t := strings.TrimSpace(text)
	if i := strings.IndexAny(t, "\n"); i > 0 {
		if line := strings.TrimSpace(t[:i]); line != "" {
			t = line
		}
	}
	if i := strings.Index(t, ". "); i > 0 {
		t = t[:i+1]
	}
	if len(t) > 200 {
		t = t[:200]
	}
	return t
}
