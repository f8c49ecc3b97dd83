// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "reference-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// AcquisitionConfig holds settings for the acquisition stage.
type AcquisitionConfig struct {
	HTTPConfig `yaml:",inline"`

	// SourcesDir is the base directory for acquired content
	// (contains raw/, metadata/, inbox/).
	SourcesDir string `json:"sources_dir" yaml:"sources_dir"`

	// AttemptTimeout bounds each strategy attempt. A timed-out attempt
	// counts as that strategy's failure and the chain advances.
	AttemptTimeout time.Duration `json:"attempt_timeout" yaml:"attempt_timeout"`

	// RequestsPerSecond paces outbound requests to source sites (default 1).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`

	// RenderedImage is the container image used for rendered-browser
	// fetching of script-heavy pages.
	RenderedImage string `json:"rendered_image" yaml:"rendered_image"`

	// TranscriberImage is the container image used to generate transcripts
	// for audio sources with no published transcript.
	TranscriberImage string `json:"transcriber_image" yaml:"transcriber_image"`

	// APIKey authenticates against regulator API endpoints, when one is
	// configured via secrets.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
}

// CleaningConfig holds settings for the cleaning/chunking stage.
type CleaningConfig struct {
	// SourcesDir is the acquisition base directory (reads raw/).
	SourcesDir string `json:"sources_dir" yaml:"sources_dir"`

	// CleanedDir is where normalized documents are written.
	CleanedDir string `json:"cleaned_dir" yaml:"cleaned_dir"`

	// ChunksDir is where chunk files and metadata are written for
	// above-threshold documents.
	ChunksDir string `json:"chunks_dir" yaml:"chunks_dir"`

	// Chunking controls the token threshold and compatibility tag.
	Chunking ChunkConfig `json:"chunking" yaml:"chunking"`
}

// IngestionConfig holds settings for the ingestion pipeline.
type IngestionConfig struct {
	// ConfidenceThreshold routes classifications below it to manual review
	// instead of auto-commit (default 0.7).
	ConfidenceThreshold float64 `json:"confidence_threshold" yaml:"confidence_threshold"`

	// DedupWindowDays is the effective-date family window: documents with
	// matching (title, type) whose effective dates are within this many days
	// of an existing version merge into that reference (default 180).
	DedupWindowDays int `json:"dedup_window_days" yaml:"dedup_window_days"`

	// Workers is the ingestion pool size (default NumCPU).
	Workers int `json:"workers" yaml:"workers"`
}

// Confidence returns the configured threshold or the default.
func (c IngestionConfig) Confidence() float64 {
	if c.ConfidenceThreshold > 0 {
		return c.ConfidenceThreshold
	}
	return 0.7
}

// DedupWindow returns the family window as a duration.
func (c IngestionConfig) DedupWindow() time.Duration {
	days := c.DedupWindowDays
	if days <= 0 {
		days = 180
	}
	return time.Duration(days) * 24 * time.Hour
}

// StoreConfig holds settings for the temporal store.
type StoreConfig struct {
	// StoreDir is the directory containing the SQLite database.
	StoreDir string `json:"store_dir" yaml:"store_dir"`

	// MaxResults is the default maximum number of search results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// RecencyBiasWindow is the time window for boosting recently effective
	// references in search ranking (default 2 years).
	RecencyBiasWindow time.Duration `json:"recency_bias_window" yaml:"recency_bias_window"`
}

// ServeConfig holds settings for the retrieval server.
type ServeConfig struct {
	// HTTPAddr serves MCP over HTTP when set; empty means stdio.
	HTTPAddr string `json:"http_addr,omitempty" yaml:"http_addr,omitempty"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	Acquisition AcquisitionConfig `json:"acquisition" yaml:"acquisition"`
	Cleaning    CleaningConfig    `json:"cleaning" yaml:"cleaning"`
	Ingestion   IngestionConfig   `json:"ingestion" yaml:"ingestion"`
	Store       StoreConfig       `json:"store" yaml:"store"`
	Serve       ServeConfig       `json:"serve" yaml:"serve"`
}
