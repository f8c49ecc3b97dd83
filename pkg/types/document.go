// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// SourceStatus tracks a source descriptor through external bookkeeping.
// Descriptors are consumed and updated by the acquisition subsystem only.
type SourceStatus string

const (
	SourcePending    SourceStatus = "pending"
	SourceProcessing SourceStatus = "processing"
	SourceCompleted  SourceStatus = "completed"
	SourceFailed     SourceStatus = "failed"
)

// SourceDescriptor names one document to acquire.
type SourceDescriptor struct {
	// URL is the location to acquire from.
	URL string `json:"url" yaml:"url"`

	// TypeHint is the expected reference type ("act", "regulation",
	// "guidance", "case") or media kind ("audio", "video"). May be empty.
	TypeHint string `json:"type_hint,omitempty" yaml:"type_hint,omitempty"`

	// Status is the descriptor's bookkeeping state.
	Status SourceStatus `json:"status,omitempty" yaml:"status,omitempty"`

	// Notes carries free-form operator annotations.
	Notes string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// CleanDocument is normalized text handed from cleaning to ingestion.
// Content ownership stays with the pipeline; the temporal store owns the
// canonical Reference/Version/Pinpoint records built from it.
type CleanDocument struct {
	// ID is the document slug, derived from the acquired filename.
	ID string `json:"id" yaml:"id"`

	// SourceURL is where the raw content came from.
	SourceURL string `json:"source_url,omitempty" yaml:"source_url,omitempty"`

	// TypeHint carries the descriptor's expected type, if any.
	TypeHint string `json:"type_hint,omitempty" yaml:"type_hint,omitempty"`

	// Title is the document title when known before ingestion.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// Body is the issuing regulatory body when known before ingestion.
	Body string `json:"body,omitempty" yaml:"body,omitempty"`

	// PublishedAt is the publication date when known before ingestion.
	PublishedAt time.Time `json:"published_at,omitempty" yaml:"published_at,omitempty"`

	// EffectiveStart is the effective date when known before ingestion.
	EffectiveStart time.Time `json:"effective_start,omitempty" yaml:"effective_start,omitempty"`

	// Content is the normalized, structure-preserving text.
	Content string `json:"content" yaml:"content"`
}

// ChunkConfig controls when and how cleaned documents are chunked.
type ChunkConfig struct {
	// TokenThreshold is the size above which a document is chunked
	// (default 60000). At or below the threshold the whole document is the
	// single implicit chunk and no chunk metadata is persisted.
	TokenThreshold int `json:"token_threshold" yaml:"token_threshold"`

	// Compatibility tags chunks with the model family they are sized for
	// (e.g. "claude-200k"). Enables re-splitting for a different threshold
	// without re-cleaning.
	Compatibility string `json:"compatibility,omitempty" yaml:"compatibility,omitempty"`
}

// DefaultTokenThreshold is the chunking threshold used when none is configured.
const DefaultTokenThreshold = 60000

// Threshold returns the configured threshold or the default.
func (c ChunkConfig) Threshold() int {
	if c.TokenThreshold > 0 {
		return c.TokenThreshold
	}
	return DefaultTokenThreshold
}

// Chunk is a bounded, boundary-respecting slice of a normalized document,
// produced only when the document exceeds the chunking threshold.
type Chunk struct {
	// ID is the stable chunk identifier.
	ID string `json:"id" yaml:"id"`

	// DocID is the cleaned document the chunk was cut from.
	DocID string `json:"doc_id" yaml:"doc_id"`

	// Position is the zero-based chunk index within the document.
	Position int `json:"position" yaml:"position"`

	// TokenCount is the chunk size in tokens.
	TokenCount int `json:"token_count" yaml:"token_count"`

	// CharCount is the chunk size in bytes of UTF-8 text.
	CharCount int `json:"char_count" yaml:"char_count"`

	// Compatibility is the target-model tag from the chunking config.
	Compatibility string `json:"compatibility,omitempty" yaml:"compatibility,omitempty"`

	// Content is the chunk text.
	Content string `json:"content" yaml:"content"`
}
