// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// JobStatus tracks a job record through its lifecycle. Terminal statuses are
// never left: cancellation and exhaustion both settle to StatusFailed.
type JobStatus string

const (
	StatusPending             JobStatus = "pending"
	StatusProcessing          JobStatus = "processing"
	StatusCompleted           JobStatus = "completed"
	StatusCompletedWithErrors JobStatus = "completed_with_errors"
	StatusFailed              JobStatus = "failed"
)

// Terminal reports whether s is a final status.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedWithErrors, StatusFailed:
		return true
	}
	return false
}

// DocumentOutcome records the result of one document within a batch.
type DocumentOutcome struct {
	// DocID identifies the document within the batch.
	DocID string `json:"doc_id" yaml:"doc_id"`

	// OK is true when the document was committed to the store.
	OK bool `json:"ok" yaml:"ok"`

	// Reason is a machine-readable failure class (e.g. "validation",
	// "classification_low_confidence"). Empty on success.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`

	// Message names the failing fields or describes the committed result,
	// including any corrective suggestion.
	Message string `json:"message,omitempty" yaml:"message,omitempty"`

	// ReferenceID is the canonical reference the document resolved to.
	ReferenceID string `json:"reference_id,omitempty" yaml:"reference_id,omitempty"`

	// Merged is true when the document matched an existing reference and was
	// linked as a new version rather than creating a new record.
	Merged bool `json:"merged,omitempty" yaml:"merged,omitempty"`
}

// IngestionJob tracks one batch submission through the ingestion pipeline.
// It settles to a terminal status only after every document has resolved.
type IngestionJob struct {
	ID         string            `json:"id" yaml:"id"`
	Status     JobStatus         `json:"status" yaml:"status"`
	Outcomes   []DocumentOutcome `json:"outcomes" yaml:"outcomes"`
	StartedAt  time.Time         `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time         `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

// Succeeded returns the number of committed documents.
func (j IngestionJob) Succeeded() int {
	n := 0
	for _, o := range j.Outcomes {
		if o.OK {
			n++
		}
	}
	return n
}

// Failed returns the number of documents that did not commit.
func (j IngestionJob) Failed() int {
	return len(j.Outcomes) - j.Succeeded()
}

// MethodAttempt is one entry in a scraping job's audit trail. Every strategy
// attempt is recorded, successful or not, before the next strategy runs.
type MethodAttempt struct {
	// Method is the strategy name (direct, feed, api, rendered, transcribe).
	Method string `json:"method" yaml:"method"`

	// OK is true when the strategy produced content.
	OK bool `json:"ok" yaml:"ok"`

	// Error holds the failure description. Empty on success.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	// At is when the attempt finished.
	At time.Time `json:"at" yaml:"at"`
}

// ScrapingJob tracks acquisition of one source descriptor through the
// strategy fallback chain.
type ScrapingJob struct {
	ID        string          `json:"id" yaml:"id"`
	SourceURL string          `json:"source_url" yaml:"source_url"`
	Status    JobStatus       `json:"status" yaml:"status"`
	Attempts  []MethodAttempt `json:"attempts" yaml:"attempts"`

	// TargetDir is the deterministic location acquired content lands in.
	TargetDir string `json:"target_dir,omitempty" yaml:"target_dir,omitempty"`

	// TypeHint is the expected reference type carried from the descriptor.
	TypeHint string `json:"type_hint,omitempty" yaml:"type_hint,omitempty"`

	// ContentPath is the acquired file. Set only on success, except that a
	// cancelled or failed job retains any partially acquired content here.
	ContentPath string `json:"content_path,omitempty" yaml:"content_path,omitempty"`

	// TranscriptPath is set for audio/video sources once a transcript is
	// discovered or generated; it sits beside the audio file.
	TranscriptPath string `json:"transcript_path,omitempty" yaml:"transcript_path,omitempty"`

	// Remediation holds manual follow-up guidance when the job failed.
	Remediation string `json:"remediation,omitempty" yaml:"remediation,omitempty"`

	RetryCount    int       `json:"retry_count" yaml:"retry_count"`
	LastAttemptAt time.Time `json:"last_attempt_at,omitempty" yaml:"last_attempt_at,omitempty"`
}

// CleaningJob tracks normalization of one acquired document.
type CleaningJob struct {
	ID string `json:"id" yaml:"id"`

	// SourceDoc is the content handle the job consumed.
	SourceDoc string `json:"source_doc" yaml:"source_doc"`

	// Operations lists the normalization steps actually performed.
	Operations []string `json:"operations" yaml:"operations"`

	// ChunkConfig records the chunking configuration in force.
	ChunkConfig ChunkConfig `json:"chunk_config" yaml:"chunk_config"`

	// ChunkCount is the number of persisted chunks; 0 when the document was
	// below the chunking threshold.
	ChunkCount int `json:"chunk_count" yaml:"chunk_count"`

	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}
