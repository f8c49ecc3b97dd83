// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package clean

import "strings"

// CountTokens returns the token count of text under whitespace
// tokenization. The count is deterministic and model-independent, so a
// document chunked today re-chunks identically tomorrow; the chunking
// threshold is calibrated for it.
func CountTokens(text string) int {
	return len(strings.Fields(text))
}
