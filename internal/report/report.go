// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders pipeline progress as Markdown. The report is a
// projection of the job tables: regenerating it is cheap and always safe.
package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pdiddy/reference-engine/internal/store"
	"github.com/pdiddy/reference-engine/pkg/types"
)

// now is overridable for deterministic tests.
var now = time.Now

// Source is the slice of the store the report reads.
// *store.Store satisfies it.
type Source interface {
	CountJobs(ctx context.Context) ([]store.JobCounts, error)
	ListScrapingJobs(ctx context.Context, status types.JobStatus) ([]types.ScrapingJob, error)
	PendingReviews(ctx context.Context) ([]store.ReviewItem, error)
}

// Render writes the progress report to w.
func Render(ctx context.Context, src Source, w io.Writer) error {
	counts, err := src.CountJobs(ctx)
	if err != nil {
		return fmt.Errorf("counting jobs: %w", err)
	}
	failed, err := src.ListScrapingJobs(ctx, types.StatusFailed)
	if err != nil {
		return fmt.Errorf("listing failed acquisitions: %w", err)
	}
	reviews, err := src.PendingReviews(ctx)
	if err != nil {
		return fmt.Errorf("listing pending reviews: %w", err)
	}

	fmt.Fprintf(w, "# Pipeline Progress\n\nGenerated: %s\n", now().UTC().Format("2006-01-02 15:04 UTC"))

	fmt.Fprintf(w, "\n## Jobs\n\n")
	if len(counts) == 0 {
		fmt.Fprintf(w, "No jobs recorded.\n")
	} else {
		fmt.Fprintf(w, "| Stage | Status | Count |\n|---|---|---|\n")
		for _, c := range counts {
			fmt.Fprintf(w, "| %s | %s | %d |\n", c.Kind, c.Status, c.Count)
		}
	}

	fmt.Fprintf(w, "\n## Failed acquisitions\n\n")
	if len(failed) == 0 {
		fmt.Fprintf(w, "None.\n")
	}
	for _, j := range failed {
		fmt.Fprintf(w, "- `%s` (%s)", j.ID, j.SourceURL)
		if j.Remediation != "" {
			fmt.Fprintf(w, " - %s", j.Remediation)
		}
		fmt.Fprintf(w, "\n")
	}

	fmt.Fprintf(w, "\n## Pending review\n\n")
	if len(reviews) == 0 {
		fmt.Fprintf(w, "None.\n")
	}
	for _, r := range reviews {
		fmt.Fprintf(w, "- %s - guessed %s at %.2f (%s)\n", r.Title, r.GuessedType, r.Confidence, r.Reason)
	}

	return nil
}

// Write renders the report to path, atomically.
func Write(ctx context.Context, src Source, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".progress-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := Render(ctx, src, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
