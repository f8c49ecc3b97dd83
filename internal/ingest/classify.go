// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"regexp"
	"strings"

	"github.com/pdiddy/reference-engine/pkg/types"
)

// Classification is the typed outcome of rule-based type detection. A
// classification below the configured confidence threshold is flagged
// NeedsReview and routed to the manual-review queue instead of being
// auto-committed.
type Classification struct {
	Type        types.ReferenceType
	Confidence  float64
	NeedsReview bool

	// Cue names the rule that decided the type, for review queue entries.
	Cue string
}

// Title cues, strongest first. Legislation naming is rigid enough that a
// title match alone is high confidence.
var (
	actTitleRe        = regexp.MustCompile(`(?i)\bact\s+(No\.?\s*\d+\s+of\s+)?\d{4}\b`)
	regulationTitleRe = regexp.MustCompile(`(?i)\b(regulations?|rules)\s+\d{4}\b`)
	guidanceTitleRe   = regexp.MustCompile(`(?i)\b(ruling|determination|guidance|guideline|practice statement|circular|bulletin|standard\s+[A-Z]{2,})\b`)
	caseTitleRe       = regexp.MustCompile(`(?i)\bv(?:\.|s\.?)?\s+[A-Z]|\[\d{4}\]\s*[A-Z]{2,}`)
)

// Body cues are weaker: they look at the document text for self-describing
// phrases when the title decides nothing.
var (
	actBodyRe      = regexp.MustCompile(`(?i)\b(an act to|this act|section\s+\d+\s+of\s+the\s+act)\b`)
	guidanceBodyRe = regexp.MustCompile(`(?i)\b(this (ruling|guidance|determination)|the commissioner('s)? view)\b`)
	caseBodyRe     = regexp.MustCompile(`(?i)\b(the court held|judgment|the tribunal|appellant|respondent)\b`)
)

// Classify determines a document's reference type with a confidence score.
// A matching type hint from acquisition corroborates the title cue and
// lifts confidence; a hint contradicting the cue lowers it.
func Classify(doc types.CleanDocument, threshold float64) Classification {
	c := classifyByCue(doc)

	if hint := types.ReferenceType(strings.ToLower(doc.TypeHint)); types.ValidReferenceType(hint) {
		switch {
		case c.Type == hint:
			c.Confidence += 0.1
		case c.Cue == "fallback":
			c = Classification{Type: hint, Confidence: 0.75, Cue: "type_hint"}
		default:
			c.Confidence -= 0.2
			c.Cue += "_contradicted_by_hint"
		}
	}

	if c.Confidence > 1 {
		c.Confidence = 1
	}
	c.NeedsReview = c.Confidence < threshold
	return c
}

func classifyByCue(doc types.CleanDocument) Classification {
	title := doc.Title
	if title == "" {
		title = firstHeading(doc.Content)
	}

	switch {
	case regulationTitleRe.MatchString(title):
		// Checked before act: "Regulations 1994" titles often also carry the
		// enabling act's name.
		return Classification{Type: types.TypeRegulation, Confidence: 0.9, Cue: "title_regulation"}
	case actTitleRe.MatchString(title):
		return Classification{Type: types.TypeAct, Confidence: 0.9, Cue: "title_act"}
	case caseTitleRe.MatchString(title):
		return Classification{Type: types.TypeCase, Confidence: 0.85, Cue: "title_case"}
	case guidanceTitleRe.MatchString(title):
		return Classification{Type: types.TypeGuidance, Confidence: 0.85, Cue: "title_guidance"}
	}

	head := doc.Content
	if len(head) > 4000 {
		head = head[:4000]
	}
	switch {
	case actBodyRe.MatchString(head):
		return Classification{Type: types.TypeAct, Confidence: 0.6, Cue: "body_act"}
	case caseBodyRe.MatchString(head):
		return Classification{Type: types.TypeCase, Confidence: 0.6, Cue: "body_case"}
	case guidanceBodyRe.MatchString(head):
		return Classification{Type: types.TypeGuidance, Confidence: 0.6, Cue: "body_guidance"}
	}

	// Nothing decisive. Guidance is the broadest bucket; the low score
	// routes the document to manual review at any sane threshold.
	return Classification{Type: types.TypeGuidance, Confidence: 0.3, Cue: "fallback"}
}
