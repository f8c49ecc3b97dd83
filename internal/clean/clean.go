// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package clean implements the cleaning and chunking stage: raw acquired
// content in, normalized structure-preserving Markdown out, cut into
// chunks only when a document exceeds the token threshold.
package clean

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/reference-engine/pkg/types"
)

const (
	// metadataDir is the subdirectory under the sources base where
	// acquisition leaves descriptor sidecars.
	metadataDir = "metadata"
	// chunkManifest is the per-document chunk index filename.
	chunkManifest = "chunks.yaml"
)

// Result is the full outcome of cleaning one document.
type Result struct {
	Job    types.CleaningJob
	Doc    types.CleanDocument
	Chunks []types.Chunk
}

// BatchResult holds the outcome of a batch cleaning run.
type BatchResult struct {
	Cleaned int
	Skipped int
	Failed  int
}

// Total returns the total number of documents processed.
func (r BatchResult) Total() int {
	return r.Cleaned + r.Skipped + r.Failed
}

// HasFailures reports whether any documents failed cleaning.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// CleanFile normalizes one raw content file, writes the cleaned Markdown
// under the cleaned directory, and persists chunk files when the document
// exceeds the chunking threshold. The descriptor sidecar written by
// acquisition, when present, supplies source URL and type hint.
func CleanFile(cfg types.CleaningConfig, path string) (*Result, error) {
	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	outPath := filepath.Join(cfg.CleanedDir, id+".md")

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	job := types.CleaningJob{
		ID:          uuid.NewString(),
		SourceDoc:   path,
		ChunkConfig: cfg.Chunking,
		StartedAt:   time.Now().UTC(),
	}

	content, ops := Normalize(string(raw))
	job.Operations = ops

	doc := types.CleanDocument{
		ID:      id,
		Content: content,
	}
	if desc := loadDescriptor(cfg.SourcesDir, id); desc != nil {
		doc.SourceURL = desc.URL
		doc.TypeHint = desc.TypeHint
	}

	chunks := Split(doc, cfg.Chunking)
	job.ChunkCount = len(chunks)

	if err := os.MkdirAll(cfg.CleanedDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cleaned dir: %w", err)
	}
	if err := os.WriteFile(outPath, []byte(withFrontmatter(doc, job)), 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", outPath, err)
	}
	if len(chunks) > 0 {
		if err := writeChunks(cfg.ChunksDir, id, chunks); err != nil {
			return nil, err
		}
	}

	job.FinishedAt = time.Now().UTC()
	return &Result{Job: job, Doc: doc, Chunks: chunks}, nil
}

// CleanBatch cleans every file in paths, printing per-file status to w and
// returning a summary with the individual results. Files whose cleaned
// output already exists are skipped; failures do not stop the batch.
func CleanBatch(cfg types.CleaningConfig, paths []string, w io.Writer) (BatchResult, []*Result) {
	var batch BatchResult
	var results []*Result
	for _, p := range paths {
		id := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		if _, err := os.Stat(filepath.Join(cfg.CleanedDir, id+".md")); err == nil {
			fmt.Fprintf(w, "skipped: %s (already cleaned)\n", id)
			batch.Skipped++
			continue
		}

		res, err := CleanFile(cfg, p)
		if err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", id, err)
			batch.Failed++
			continue
		}
		if res.Job.ChunkCount > 0 {
			fmt.Fprintf(w, "cleaned: %s (%d chunks)\n", id, res.Job.ChunkCount)
		} else {
			fmt.Fprintf(w, "cleaned: %s\n", id)
		}
		batch.Cleaned++
		results = append(results, res)
	}
	fmt.Fprintf(w, "\nBatch summary: %d cleaned, %d skipped, %d failed (total: %d)\n",
		batch.Cleaned, batch.Skipped, batch.Failed, batch.Total())
	return batch, results
}

// RawPaths lists the raw content files under the sources directory,
// skipping sidecar metadata.
func RawPaths(sourcesDir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(sourcesDir, "raw"))
	if err != nil {
		return nil, fmt.Errorf("listing raw sources: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(sourcesDir, "raw", e.Name()))
	}
	return paths, nil
}

// LoadCleaned reads every cleaned document in dir for ingestion. Content is
// returned with the frontmatter block in place; ingestion consumes it.
func LoadCleaned(dir string) ([]types.CleanDocument, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing cleaned documents: %w", err)
	}
	var docs []types.CleanDocument
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".md" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		docs = append(docs, types.CleanDocument{
			ID:      strings.TrimSuffix(e.Name(), ".md"),
			Content: string(data),
		})
	}
	return docs, nil
}

// loadDescriptor reads the acquisition sidecar for a document, or nil when
// none exists. A malformed sidecar is treated the same as a missing one;
// ingestion re-derives metadata from content anyway.
func loadDescriptor(sourcesDir, id string) *types.SourceDescriptor {
	data, err := os.ReadFile(filepath.Join(sourcesDir, metadataDir, id+".yaml"))
	if err != nil {
		return nil
	}
	var desc types.SourceDescriptor
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil
	}
	return &desc
}

// withFrontmatter prepends YAML frontmatter recording provenance and the
// operations performed.
func withFrontmatter(doc types.CleanDocument, job types.CleaningJob) string {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "doc_id: %q\n", doc.ID)
	if doc.SourceURL != "" {
		fmt.Fprintf(&b, "source_url: %q\n", doc.SourceURL)
	}
	if doc.TypeHint != "" {
		fmt.Fprintf(&b, "type_hint: %q\n", doc.TypeHint)
	}
	fmt.Fprintf(&b, "cleaned_at: %q\n", job.StartedAt.Format(time.RFC3339))
	if len(job.Operations) > 0 {
		fmt.Fprintf(&b, "operations: [%s]\n", strings.Join(job.Operations, ", "))
	}
	b.WriteString("---\n\n")
	b.WriteString(doc.Content)
	return b.String()
}

// writeChunks persists chunk files and a manifest under chunksDir/<id>/.
// Chunk files carry content only; sizes and tags live in the manifest so a
// later re-split for a different threshold can work from the manifest
// without re-reading every chunk.
func writeChunks(chunksDir, id string, chunks []types.Chunk) error {
	dir := filepath.Join(chunksDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating chunk dir: %w", err)
	}
	for _, c := range chunks {
		name := fmt.Sprintf("%04d.md", c.Position)
		if err := os.WriteFile(filepath.Join(dir, name), []byte(c.Content), 0o644); err != nil {
			return fmt.Errorf("writing chunk %d: %w", c.Position, err)
		}
	}

	manifest := make([]types.Chunk, len(chunks))
	for i, c := range chunks {
		c.Content = ""
		manifest[i] = c
	}
	data, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("marshaling chunk manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, chunkManifest), data, 0o644)
}
