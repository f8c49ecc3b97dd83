// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package clean

import (
	"regexp"
	"strings"
)

// Normalization operation names recorded on CleaningJob records.
const (
	OpStripPageNumbers    = "strip_page_numbers"
	OpStripRunningHeaders = "strip_running_headers"
	OpMarkTables          = "mark_tables"
	OpNormalizeLists      = "normalize_lists"
	OpCollapseBlankLines  = "collapse_blank_lines"
)

var (
	// pageNumberRe matches bare page markers: "3", "Page 3", "page 3 of 12".
	pageNumberRe = regexp.MustCompile(`(?i)^\s*(page\s+)?\d+(\s+of\s+\d+)?\s*$`)

	// bulletRe matches list items under the bullet styles raw sources use.
	bulletRe = regexp.MustCompile(`^(\s*)([*•‣·]|\d+[.)]|\([a-z]+\)|\([ivx]+\))\s+`)

	// tableRowRe matches a pipe-delimited table row.
	tableRowRe = regexp.MustCompile(`^\s*\|.*\|\s*$`)

	// tableRuleRe matches a markdown table separator row.
	tableRuleRe = regexp.MustCompile(`^\s*\|?[\s:|-]+\|?\s*$`)
)

// headerRepeatMin is how many times a short line must recur before it is
// treated as a running header or footer.
const headerRepeatMin = 3

// Normalize produces structure-preserving text from raw acquired content.
// Running headers, footers, and bare page numbers are stripped; section and
// paragraph boundaries are retained; tables and lists are re-expressed as
// typed markup so downstream pinpoint extraction can find them. The
// returned list names the operations that actually changed the text, in
// the order applied.
func Normalize(raw string) (string, []string) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	var ops []string

	lines, changed := stripPageNumbers(lines)
	if changed {
		ops = append(ops, OpStripPageNumbers)
	}
	lines, changed = stripRunningHeaders(lines)
	if changed {
		ops = append(ops, OpStripRunningHeaders)
	}
	lines, changed = markTables(lines)
	if changed {
		ops = append(ops, OpMarkTables)
	}
	lines, changed = normalizeLists(lines)
	if changed {
		ops = append(ops, OpNormalizeLists)
	}
	lines, changed = collapseBlankLines(lines)
	if changed {
		ops = append(ops, OpCollapseBlankLines)
	}

	return strings.TrimSpace(strings.Join(lines, "\n")) + "\n", ops
}

func stripPageNumbers(lines []string) ([]string, bool) {
	out := lines[:0:0]
	changed := false
	for _, l := range lines {
		if pageNumberRe.MatchString(l) && strings.TrimSpace(l) != "" {
			changed = true
			continue
		}
		out = append(out, l)
	}
	return out, changed
}

// stripRunningHeaders drops short non-structural lines that recur across
// pages. Headings and list items never count as running headers even when
// repeated (statutes repeat section headings legitimately in tables of
// contents, but those are prefixed lines, not bare repeats).
func stripRunningHeaders(lines []string) ([]string, bool) {
	counts := make(map[string]int)
	for _, l := range lines {
		key := strings.TrimSpace(l)
		if key == "" || len(key) > 80 || isStructural(l) {
			continue
		}
		counts[key]++
	}

	out := lines[:0:0]
	changed := false
	for _, l := range lines {
		key := strings.TrimSpace(l)
		if key != "" && counts[key] >= headerRepeatMin && !isStructural(l) {
			changed = true
			continue
		}
		out = append(out, l)
	}
	return out, changed
}

func isStructural(line string) bool {
	t := strings.TrimSpace(line)
	return strings.HasPrefix(t, "#") || bulletRe.MatchString(line) || tableRowRe.MatchString(line)
}

// markTables wraps runs of pipe-delimited rows in [table]/[/table] markers
// and drops markdown separator rows, leaving one row per line.
func markTables(lines []string) ([]string, bool) {
	var out []string
	changed := false
	inTable := false
	for _, l := range lines {
		isRow := tableRowRe.MatchString(l)
		switch {
		case isRow && tableRuleRe.MatchString(l):
			changed = true
		case isRow && !inTable:
			out = append(out, "[table]", strings.TrimSpace(l))
			inTable = true
			changed = true
		case isRow:
			out = append(out, strings.TrimSpace(l))
		case inTable:
			out = append(out, "[/table]", l)
			inTable = false
		default:
			out = append(out, l)
		}
	}
	if inTable {
		out = append(out, "[/table]")
	}
	return out, changed
}

// normalizeLists rewrites every bullet style to "- ", preserving indent.
func normalizeLists(lines []string) ([]string, bool) {
	out := make([]string, len(lines))
	changed := false
	for i, l := range lines {
		m := bulletRe.FindStringSubmatch(l)
		if m == nil || strings.HasPrefix(strings.TrimSpace(l), "- ") {
			out[i] = l
			continue
		}
		// Enumerated markers like "(b)" stay visible after the dash; they are
		// pinpoint anchors.
		marker := m[2]
		rest := l[len(m[0]):]
		if strings.HasPrefix(marker, "(") {
			out[i] = m[1] + "- " + marker + " " + rest
		} else {
			out[i] = m[1] + "- " + rest
		}
		changed = true
	}
	return out, changed
}

func collapseBlankLines(lines []string) ([]string, bool) {
	var out []string
	blanks := 0
	changed := false
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			blanks++
			if blanks > 1 {
				changed = true
				continue
			}
			out = append(out, "")
			continue
		}
		blanks = 0
		out = append(out, l)
	}
	return out, changed
}
