// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/reference-engine/internal/store"
	"github.com/pdiddy/reference-engine/pkg/types"
)

type fakeSource struct {
	counts  []store.JobCounts
	failed  []types.ScrapingJob
	reviews []store.ReviewItem
}

func (f *fakeSource) CountJobs(context.Context) ([]store.JobCounts, error) {
	return f.counts, nil
}

func (f *fakeSource) ListScrapingJobs(_ context.Context, status types.JobStatus) ([]types.ScrapingJob, error) {
	return f.failed, nil
}

func (f *fakeSource) PendingReviews(context.Context) ([]store.ReviewItem, error) {
	return f.reviews, nil
}

func init() {
	now = func() time.Time {
		return time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)
	}
}

func TestRender(t *testing.T) {
	src := &fakeSource{
		counts: []store.JobCounts{
			{Kind: "scraping", Status: types.StatusCompleted, Count: 12},
			{Kind: "scraping", Status: types.StatusFailed, Count: 1},
			{Kind: "ingestion", Status: types.StatusCompleted, Count: 3},
		},
		failed: []types.ScrapingJob{{
			ID:          "example-gov-levy",
			SourceURL:   "https://example.gov/levy",
			Status:      types.StatusFailed,
			Remediation: "every strategy failed; download manually and place the file at sources/raw/example-gov-levy",
		}},
		reviews: []store.ReviewItem{{
			Title:       "Quarterly briefing transcript",
			GuessedType: "guidance",
			Confidence:  0.3,
			Reason:      "no classification cue matched",
		}},
	}

	var buf bytes.Buffer
	if err := Render(context.Background(), src, &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, want := range []string{
		"Generated: 2026-06-01 09:30 UTC",
		"| scraping | completed | 12 |",
		"| ingestion | completed | 3 |",
		"`example-gov-levy` (https://example.gov/levy) - every strategy failed",
		"Quarterly briefing transcript - guessed guidance at 0.30",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestRenderEmptyStore(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(context.Background(), &fakeSource{}, &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	if !strings.Contains(out, "No jobs recorded.") {
		t.Errorf("missing empty-jobs line:\n%s", out)
	}
	if strings.Count(out, "None.") != 2 {
		t.Errorf("expected None. for both sections:\n%s", out)
	}
}

func TestWriteCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "PROGRESS.md")
	if err := Write(context.Background(), &fakeSource{}, path); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# Pipeline Progress") {
		t.Errorf("unexpected content: %q", string(data)[:40])
	}
}
