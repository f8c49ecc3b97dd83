// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the reference-engine
// pipeline: canonical references with their temporal versions and pinpoints,
// the three job-record kinds, and per-stage configuration.
package types

import "time"

// ReferenceType classifies an authoritative source document.
type ReferenceType string

const (
	TypeAct        ReferenceType = "act"
	TypeRegulation ReferenceType = "regulation"
	TypeGuidance   ReferenceType = "guidance"
	TypeCase       ReferenceType = "case"
)

// ValidReferenceType reports whether t is one of the accepted types.
func ValidReferenceType(t ReferenceType) bool {
	switch t {
	case TypeAct, TypeRegulation, TypeGuidance, TypeCase:
		return true
	}
	return false
}

// Reference is the canonical record for one authoritative source across all
// of its versions. Identity is assigned once at ingestion and never changes;
// duplicates detected later are merged into the existing record.
type Reference struct {
	// ID is the stable, immutable identifier.
	ID string `json:"id" yaml:"id"`

	// Type classifies the source: act, regulation, guidance, or case.
	Type ReferenceType `json:"type" yaml:"type"`

	// Title is the instrument or decision title as published.
	Title string `json:"title" yaml:"title"`

	// Category is a free-form topic grouping (e.g. "superannuation", "tax").
	Category string `json:"category,omitempty" yaml:"category,omitempty"`

	// SourceURL is where the document was obtained. May be empty or stale.
	SourceURL string `json:"source_url,omitempty" yaml:"source_url,omitempty"`

	// URLValid is false once the source URL is known to be dead. The stored
	// content is retained regardless.
	URLValid bool `json:"url_valid" yaml:"url_valid"`

	// Body is the issuing regulatory body (e.g. "ATO", "ASIC").
	Body string `json:"body,omitempty" yaml:"body,omitempty"`

	// PublishedAt is the original publication date.
	PublishedAt time.Time `json:"published_at,omitempty" yaml:"published_at,omitempty"`

	// CurrentText is the full text of the currently effective version.
	CurrentText string `json:"current_text,omitempty" yaml:"current_text,omitempty"`
}

// ReferenceVersion is a point-in-time snapshot of a reference. Versions of
// one reference form a non-overlapping, date-ordered partition of time; the
// effective window is half-open [EffectiveStart, EffectiveEnd).
type ReferenceVersion struct {
	// ID is the stable version identifier.
	ID string `json:"id" yaml:"id"`

	// ReferenceID links to the parent Reference.
	ReferenceID string `json:"reference_id" yaml:"reference_id"`

	// EffectiveStart is the first instant this version is authoritative.
	EffectiveStart time.Time `json:"effective_start" yaml:"effective_start"`

	// EffectiveEnd is the first instant this version is no longer
	// authoritative. Zero means the version is open (currently effective).
	EffectiveEnd time.Time `json:"effective_end,omitempty" yaml:"effective_end,omitempty"`

	// ChangeSummary describes what changed relative to the predecessor.
	ChangeSummary string `json:"change_summary,omitempty" yaml:"change_summary,omitempty"`

	// Content is the full text snapshot for this version.
	Content string `json:"content" yaml:"content"`

	// Supersedes lists prior version IDs this version replaces, oldest first.
	Supersedes []string `json:"supersedes,omitempty" yaml:"supersedes,omitempty"`

	// Amends lists version IDs this version modifies without replacing.
	Amends []string `json:"amends,omitempty" yaml:"amends,omitempty"`
}

// Open reports whether the version has no effective end date.
func (v ReferenceVersion) Open() bool {
	return v.EffectiveEnd.IsZero()
}

// Contains reports whether t falls inside the version's effective window.
func (v ReferenceVersion) Contains(t time.Time) bool {
	if t.Before(v.EffectiveStart) {
		return false
	}
	return v.Open() || t.Before(v.EffectiveEnd)
}

// Pinpoint is an addressable sub-location inside one reference version.
// Paths are unique within a version.
type Pinpoint struct {
	// ID is the stable pinpoint identifier.
	ID string `json:"id" yaml:"id"`

	// ReferenceID links to the parent Reference.
	ReferenceID string `json:"reference_id" yaml:"reference_id"`

	// VersionID is the single version this pinpoint resolves against.
	VersionID string `json:"version_id" yaml:"version_id"`

	// Path is the section/paragraph/clause address (e.g. "s 3/para (b)").
	Path string `json:"path" yaml:"path"`

	// Excerpt is the text at the pinpoint location.
	Excerpt string `json:"excerpt" yaml:"excerpt"`

	// Context is the surrounding passage, for citation display.
	Context string `json:"context,omitempty" yaml:"context,omitempty"`
}
