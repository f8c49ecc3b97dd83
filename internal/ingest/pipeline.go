// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ingest turns cleaned documents into canonical reference,
// version, and pinpoint records: validation, rule-based classification,
// metadata and pinpoint extraction, and duplicate merging against the
// temporal store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/pdiddy/reference-engine/internal/store"
	"github.com/pdiddy/reference-engine/pkg/types"
)

// Outcome reason codes recorded on DocumentOutcome.
const (
	ReasonValidation    = "validation"
	ReasonLowConfidence = "classification_low_confidence"
	ReasonStore         = "store"
)

// Pipeline ingests batches of cleaned documents into the store.
type Pipeline struct {
	store *store.Store
	cfg   types.IngestionConfig

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewPipeline builds a pipeline writing to the given store.
func NewPipeline(st *store.Store, cfg types.IngestionConfig) *Pipeline {
	return &Pipeline{
		store: st,
		cfg:   cfg,
		locks: make(map[string]*sync.Mutex),
	}
}

// Run ingests a batch. Documents process independently on a worker pool;
// failure of one never aborts the batch. The job settles to a terminal
// status only after every document has resolved: completed when all
// succeeded, failed when all failed, completed_with_errors otherwise. The
// returned job carries one outcome per document in input order.
func (p *Pipeline) Run(ctx context.Context, docs []types.CleanDocument, w io.Writer) (*types.IngestionJob, error) {
	job := &types.IngestionJob{
		ID:        uuid.NewString(),
		Status:    types.StatusProcessing,
		StartedAt: time.Now().UTC(),
	}
	if err := p.store.SaveIngestionJob(ctx, job); err != nil {
		return nil, err
	}

	workers := p.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}
	defer pool.Release()

	outcomes := make([]types.DocumentOutcome, len(docs))
	var wg sync.WaitGroup
	for i := range docs {
		i := i
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			outcomes[i] = p.processDocument(ctx, docs[i])
		})
		if submitErr != nil {
			wg.Done()
			outcomes[i] = types.DocumentOutcome{
				DocID: docs[i].ID, Reason: ReasonStore,
				Message: fmt.Sprintf("submitting work: %v", submitErr),
			}
		}
	}
	wg.Wait()

	for _, o := range outcomes {
		switch {
		case o.OK && o.Merged:
			fmt.Fprintf(w, "merged:   %s -> %s\n", o.DocID, o.ReferenceID)
		case o.OK:
			fmt.Fprintf(w, "ingested: %s -> %s\n", o.DocID, o.ReferenceID)
		default:
			fmt.Fprintf(w, "failed:   %s (%s: %s)\n", o.DocID, o.Reason, o.Message)
		}
	}

	job.Outcomes = outcomes
	job.Status = settle(outcomes)
	job.FinishedAt = time.Now().UTC()
	if err := p.store.SaveIngestionJob(ctx, job); err != nil {
		return nil, err
	}

	fmt.Fprintf(w, "\nBatch summary: %d ingested, %d failed (total: %d), job %s %s\n",
		job.Succeeded(), job.Failed(), len(outcomes), job.ID, job.Status)
	return job, nil
}

// processDocument runs the per-document stages. Every failure is a
// structured outcome naming the document, the reason, and a message; only
// the merge step holds the dedup-key lock.
func (p *Pipeline) processDocument(ctx context.Context, doc types.CleanDocument) types.DocumentOutcome {
	out := types.DocumentOutcome{DocID: doc.ID}

	ExtractMetadata(&doc)

	if missing := missingFields(doc); len(missing) > 0 {
		out.Reason = ReasonValidation
		out.Message = fmt.Sprintf("missing required fields: %v", missing)
		return out
	}

	cls := Classify(doc, p.cfg.Confidence())
	if cls.NeedsReview {
		out.Reason = ReasonLowConfidence
		out.Message = fmt.Sprintf("type %s at confidence %.2f (cue %s), queued for review",
			cls.Type, cls.Confidence, cls.Cue)
		if err := p.store.EnqueueReview(ctx, uuid.NewString(), doc.ID, doc.Title,
			string(cls.Type), cls.Confidence, ReasonLowConfidence); err != nil {
			out.Message += fmt.Sprintf("; enqueue failed: %v", err)
		}
		return out
	}

	refID, merged, err := p.commit(ctx, doc, cls.Type)
	if err != nil {
		var verr *store.ValidationError
		if errors.As(err, &verr) {
			out.Reason = ReasonValidation
		} else {
			out.Reason = ReasonStore
		}
		out.Message = err.Error()
		return out
	}

	out.OK = true
	out.ReferenceID = refID
	out.Merged = merged
	return out
}

// commit performs duplicate resolution and the store writes under the
// document's dedup-key lock, so two documents resolving to the same
// canonical reference serialize instead of racing to create two rows.
func (p *Pipeline) commit(ctx context.Context, doc types.CleanDocument, refType types.ReferenceType) (string, bool, error) {
	unlock := p.lockKey(DedupKey(doc.Title, refType))
	defer unlock()

	incoming := &types.Reference{
		Type:        refType,
		Title:       doc.Title,
		SourceURL:   doc.SourceURL,
		URLValid:    doc.SourceURL != "",
		Body:        doc.Body,
		PublishedAt: doc.PublishedAt,
	}

	canonical, err := findCanonical(ctx, p.store, doc.Title, refType, doc.EffectiveStart, p.cfg.DedupWindow())
	if err != nil {
		return "", false, err
	}

	merged := canonical != nil
	var refID string
	if merged {
		refID = canonical.ID
		if err := p.store.MergeMetadata(ctx, refID, incoming); err != nil {
			return "", false, err
		}
	} else {
		refID = referenceID(ctx, p.store, doc.Title, doc.EffectiveStart)
		incoming.ID = refID
		if err := p.store.InsertReference(ctx, incoming); err != nil {
			return "", false, err
		}
	}

	version := &types.ReferenceVersion{
		ID:             uuid.NewString(),
		ReferenceID:    refID,
		EffectiveStart: doc.EffectiveStart,
		Content:        doc.Content,
	}
	if err := p.store.PutVersion(ctx, refID, version); err != nil {
		return "", false, err
	}

	if pins := ExtractPinpoints(doc, refID, version.ID); len(pins) > 0 {
		if err := p.store.PutPinpoints(ctx, pins); err != nil {
			return "", false, err
		}
	}
	return refID, merged, nil
}

// lockKey takes the mutex for a dedup key, creating it on first use, and
// returns the unlock func.
func (p *Pipeline) lockKey(key string) func() {
	p.mu.Lock()
	l, ok := p.locks[key]
	if !ok {
		l = &sync.Mutex{}
		p.locks[key] = l
	}
	p.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// missingFields names the required fields a document lacks after metadata
// extraction.
func missingFields(doc types.CleanDocument) []string {
	var missing []string
	if doc.ID == "" {
		missing = append(missing, "id")
	}
	if doc.Title == "" {
		missing = append(missing, "title")
	}
	if doc.Content == "" {
		missing = append(missing, "content")
	}
	if doc.EffectiveStart.IsZero() {
		missing = append(missing, "effective_date")
	}
	return missing
}

func settle(outcomes []types.DocumentOutcome) types.JobStatus {
	ok, failed := 0, 0
	for _, o := range outcomes {
		if o.OK {
			ok++
		} else {
			failed++
		}
	}
	switch {
	case failed == 0:
		return types.StatusCompleted
	case ok == 0:
		return types.StatusFailed
	default:
		return types.StatusCompletedWithErrors
	}
}
