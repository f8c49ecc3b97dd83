// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire downloads source documents through an ordered strategy
// fallback chain and records every attempt on the scraping job.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.yaml.in/yaml/v3"
	"golang.org/x/time/rate"

	"github.com/pdiddy/reference-engine/internal/container"
	"github.com/pdiddy/reference-engine/pkg/types"
)

const (
	rawDir      = "raw"
	metadataDir = "metadata"
)

// JobStore persists scraping jobs. The temporal store implements it; tests
// substitute an in-memory recorder.
type JobStore interface {
	SaveScrapingJob(ctx context.Context, job *types.ScrapingJob) error
}

// Acquirer runs the strategy chain for source descriptors.
type Acquirer struct {
	cfg        types.AcquisitionConfig
	strategies []Strategy
	limiter    *rate.Limiter
}

// New builds an acquirer with the standard strategy order: direct, feed,
// api, rendered for documents; transcribe for media. runtime may be nil
// when no container runtime is available; the strategies needing one then
// report themselves inapplicable.
func New(client *http.Client, runtime container.Runtime, cfg types.AcquisitionConfig) *Acquirer {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	return &Acquirer{
		cfg: cfg,
		strategies: []Strategy{
			&directStrategy{client: client, userAgent: cfg.UserAgent},
			&feedStrategy{client: client, userAgent: cfg.UserAgent},
			&apiStrategy{client: client, userAgent: cfg.UserAgent, apiKey: cfg.APIKey},
			&renderedStrategy{runtime: runtime, image: cfg.RenderedImage},
			&transcribeStrategy{client: client, userAgent: cfg.UserAgent, runtime: runtime, image: cfg.TranscriberImage},
		},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// BatchResult holds the outcome of a batch acquisition run.
type BatchResult struct {
	Acquired int
	Skipped  int
	Failed   int
	Jobs     []*types.ScrapingJob
}

// Total returns the total number of sources processed.
func (r BatchResult) Total() int {
	return r.Acquired + r.Skipped + r.Failed
}

// HasFailures reports whether any sources failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// AcquireSource runs the strategy chain for one descriptor. Each
// applicable strategy gets one attempt bounded by the configured attempt
// timeout; the attempt is appended to the job and the job saved before the
// next strategy runs. The first success writes content to the
// deterministic target path and completes the job. Exhaustion marks the
// job failed with the full attempt log and remediation guidance.
//
// A cancelled context also settles the job as failed, but any content
// already written stays on disk for manual follow-up.
func (a *Acquirer) AcquireSource(ctx context.Context, jobs JobStore, src types.SourceDescriptor, w io.Writer) (*types.ScrapingJob, bool, error) {
	slug := Slug(src.URL)
	targetDir := filepath.Join(a.cfg.SourcesDir, rawDir)

	if existing := findContent(targetDir, slug); existing != "" {
		fmt.Fprintf(w, "skipped: %s (already acquired)\n", slug)
		return &types.ScrapingJob{
			ID: slug, SourceURL: src.URL, Status: types.StatusCompleted,
			TargetDir: targetDir, ContentPath: existing,
		}, true, nil
	}

	job := &types.ScrapingJob{
		ID:        slug,
		SourceURL: src.URL,
		Status:    types.StatusProcessing,
		TargetDir: targetDir,
		TypeHint:  src.TypeHint,
	}
	if err := jobs.SaveScrapingJob(ctx, job); err != nil {
		return nil, false, err
	}

	for _, strat := range a.strategies {
		if !strat.Applies(src) {
			continue
		}
		if err := a.limiter.Wait(ctx); err != nil {
			return a.fail(ctx, jobs, job, "cancelled while rate limited; re-run acquisition to resume")
		}

		content, err := a.attempt(ctx, strat, src)
		job.Attempts = append(job.Attempts, types.MethodAttempt{
			Method: strat.Name(),
			OK:     err == nil,
			Error:  errString(err),
			At:     time.Now().UTC(),
		})
		job.LastAttemptAt = time.Now().UTC()
		if saveErr := jobs.SaveScrapingJob(ctx, job); saveErr != nil {
			return nil, false, saveErr
		}

		if err == nil {
			if err := a.persist(job, src, slug, content); err != nil {
				return nil, false, err
			}
			job.Status = types.StatusCompleted
			if err := jobs.SaveScrapingJob(ctx, job); err != nil {
				return nil, false, err
			}
			fmt.Fprintf(w, "acquired: %s (%s)\n", slug, strat.Name())
			return job, false, nil
		}

		fmt.Fprintf(w, "  %s failed for %s: %v\n", strat.Name(), slug, err)
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return a.fail(ctx, jobs, job, "acquisition cancelled; partial content (if any) retained under "+targetDir)
		}
	}

	return a.fail(ctx, jobs, job, fmt.Sprintf(
		"every strategy failed; download manually and place the file at %s",
		filepath.Join(targetDir, slug+".html")))
}

// attempt runs one strategy under the per-attempt timeout.
func (a *Acquirer) attempt(ctx context.Context, strat Strategy, src types.SourceDescriptor) (*Content, error) {
	if a.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.AttemptTimeout)
		defer cancel()
	}
	return strat.Attempt(ctx, src)
}

// persist writes the acquired content, its optional transcript, and the
// descriptor sidecar consumed by cleaning.
func (a *Acquirer) persist(job *types.ScrapingJob, src types.SourceDescriptor, slug string, content *Content) error {
	metaDir := filepath.Join(a.cfg.SourcesDir, metadataDir)
	for _, dir := range []string{job.TargetDir, metaDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	contentPath := filepath.Join(job.TargetDir, slug+content.Ext)
	if err := writeAtomic(contentPath, content.Data); err != nil {
		return fmt.Errorf("writing content: %w", err)
	}
	job.ContentPath = contentPath

	if len(content.Transcript) > 0 {
		transcriptPath := filepath.Join(job.TargetDir, slug+".transcript.txt")
		if err := writeAtomic(transcriptPath, content.Transcript); err != nil {
			return fmt.Errorf("writing transcript: %w", err)
		}
		job.TranscriptPath = transcriptPath
	}

	src.Status = types.SourceCompleted
	data, err := yaml.Marshal(src)
	if err != nil {
		return fmt.Errorf("marshaling descriptor: %w", err)
	}
	return os.WriteFile(filepath.Join(metaDir, slug+".yaml"), data, 0o644)
}

// fail settles the job as failed with remediation guidance. The attempt
// log stays on the job for future strategy work.
func (a *Acquirer) fail(ctx context.Context, jobs JobStore, job *types.ScrapingJob, remediation string) (*types.ScrapingJob, bool, error) {
	job.Status = types.StatusFailed
	job.Remediation = remediation
	// Persist even when the caller's context is gone.
	if err := jobs.SaveScrapingJob(context.WithoutCancel(ctx), job); err != nil {
		return nil, false, err
	}
	return job, false, nil
}

// AcquireBatch processes descriptors in order, printing per-source status
// and returning a summary. Individual failures never stop the batch.
func (a *Acquirer) AcquireBatch(ctx context.Context, jobs JobStore, sources []types.SourceDescriptor, w io.Writer) BatchResult {
	var result BatchResult
	for _, src := range sources {
		job, skipped, err := a.AcquireSource(ctx, jobs, src, w)
		if err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", src.URL, err)
			result.Failed++
			continue
		}
		switch {
		case skipped:
			result.Skipped++
		case job.Status == types.StatusCompleted:
			result.Acquired++
		default:
			fmt.Fprintf(w, "failed:  %s (%s)\n", src.URL, job.Remediation)
			result.Failed++
		}
		result.Jobs = append(result.Jobs, job)
	}
	fmt.Fprintf(w, "\nBatch summary: %d acquired, %d skipped, %d failed (total: %d)\n",
		result.Acquired, result.Skipped, result.Failed, result.Total())
	return result
}

var slugCleanRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slug derives the deterministic content slug for a source URL: host plus
// path, lowercased, non-alphanumerics collapsed to hyphens.
func Slug(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		s := strings.Trim(slugCleanRe.ReplaceAllString(strings.ToLower(rawURL), "-"), "-")
		if s == "" {
			return "source-" + uuid.NewString()[:8]
		}
		return s
	}
	base := u.Host + strings.TrimSuffix(u.Path, "/")
	return strings.Trim(slugCleanRe.ReplaceAllString(strings.ToLower(base), "-"), "-")
}

// findContent returns the existing content path for a slug, if any
// extension variant is already on disk.
func findContent(dir, slug string) string {
	matches, err := filepath.Glob(filepath.Join(dir, slug+".*"))
	if err != nil {
		return ""
	}
	for _, m := range matches {
		if strings.HasSuffix(m, ".transcript.txt") {
			continue
		}
		return m
	}
	return ""
}

func writeAtomic(destPath string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".acquire-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		if writeErr != nil {
			return writeErr
		}
		return closeErr
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
