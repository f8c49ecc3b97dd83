// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package clean

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdiddy/reference-engine/pkg/types"
)

func TestNormalizeStripsPageFurniture(t *testing.T) {
	raw := strings.Join([]string{
		"# Superannuation Act",
		"Commonwealth Consolidated Acts", // running header, repeated below
		"Section 1 text.",
		"3",
		"Commonwealth Consolidated Acts",
		"Section 2 text.",
		"Page 4 of 12",
		"Commonwealth Consolidated Acts",
		"Section 3 text.",
	}, "\n")

	content, ops := Normalize(raw)
	if strings.Contains(content, "Commonwealth Consolidated Acts") {
		t.Errorf("running header survived:\n%s", content)
	}
	if strings.Contains(content, "Page 4") || strings.Contains(content, "\n3\n") {
		t.Errorf("page numbers survived:\n%s", content)
	}
	if !strings.Contains(content, "# Superannuation Act") {
		t.Error("heading was stripped")
	}
	if !containsOp(ops, OpStripPageNumbers) || !containsOp(ops, OpStripRunningHeaders) {
		t.Errorf("ops = %v", ops)
	}
}

func TestNormalizeMarksTables(t *testing.T) {
	raw := strings.Join([]string{
		"Rates apply as follows:",
		"| Year | Rate |",
		"|------|------|",
		"| 2024 | 11%  |",
		"| 2025 | 11.5% |",
		"After the table.",
	}, "\n")

	content, ops := Normalize(raw)
	if !strings.Contains(content, "[table]\n| Year | Rate |") {
		t.Errorf("table not marked:\n%s", content)
	}
	if !strings.Contains(content, "| 2025 | 11.5% |\n[/table]") {
		t.Errorf("table not closed:\n%s", content)
	}
	if strings.Contains(content, "|------|") {
		t.Errorf("separator row survived:\n%s", content)
	}
	if !containsOp(ops, OpMarkTables) {
		t.Errorf("ops = %v", ops)
	}
}

func TestNormalizeLists(t *testing.T) {
	raw := strings.Join([]string{
		"A trustee must:",
		"* act honestly",
		"• exercise care",
		"1. keep records",
		"(b) act in the best interests of beneficiaries",
	}, "\n")

	content, ops := Normalize(raw)
	for _, want := range []string{
		"- act honestly",
		"- exercise care",
		"- keep records",
		"- (b) act in the best interests",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("missing %q in:\n%s", want, content)
		}
	}
	if !containsOp(ops, OpNormalizeLists) {
		t.Errorf("ops = %v", ops)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	raw := "# Heading\n\ntext\n\n\n\n- item one\n"
	once, _ := Normalize(raw)
	twice, ops := Normalize(once)
	if once != twice {
		t.Errorf("second pass changed content:\n%q\nvs\n%q", once, twice)
	}
	if len(ops) != 0 {
		t.Errorf("second pass recorded ops %v", ops)
	}
}

// words builds a document of exactly n whitespace tokens, one paragraph
// per 100 tokens so chunking has boundaries to cut on.
func words(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString("token ")
		if (i+1)%100 == 0 {
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

func TestSplitThresholdBoundary(t *testing.T) {
	cfg := types.ChunkConfig{}

	at := types.CleanDocument{ID: "at", Content: words(types.DefaultTokenThreshold)}
	if chunks := Split(at, cfg); chunks != nil {
		t.Errorf("document at threshold produced %d chunks, want implicit single", len(chunks))
	}

	over := types.CleanDocument{ID: "over", Content: words(types.DefaultTokenThreshold + 1)}
	chunks := Split(over, cfg)
	if len(chunks) < 2 {
		t.Fatalf("document over threshold produced %d chunks", len(chunks))
	}
	for i, c := range chunks {
		if c.Position != i {
			t.Errorf("chunk %d has position %d", i, c.Position)
		}
		if c.TokenCount > types.DefaultTokenThreshold {
			t.Errorf("chunk %d has %d tokens, over threshold", i, c.TokenCount)
		}
		if c.ID == "" || c.DocID != "over" {
			t.Errorf("chunk %d missing identity: %+v", i, c)
		}
	}
}

func TestSplitCutsOnSectionBoundaries(t *testing.T) {
	cfg := types.ChunkConfig{TokenThreshold: 50, Compatibility: "claude-200k"}
	content := "# Part A\n\n" + words(40) + "\n# Part B\n\n" + words(40)
	doc := types.CleanDocument{ID: "d", Content: content}

	chunks := Split(doc, cfg)
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
	if !strings.HasPrefix(chunks[0].Content, "# Part A") {
		t.Errorf("chunk 0 does not start at section:\n%s", chunks[0].Content[:40])
	}
	if !strings.HasPrefix(chunks[1].Content, "# Part B") {
		t.Errorf("cut fell inside a section:\n%s", chunks[1].Content[:40])
	}
	if chunks[0].Compatibility != "claude-200k" {
		t.Errorf("compatibility tag lost: %+v", chunks[0])
	}
}

func TestSplitHardSplitsOversizedSection(t *testing.T) {
	cfg := types.ChunkConfig{TokenThreshold: 30}
	// One paragraph of sentences, each below the threshold; no section or
	// paragraph boundaries to cut on.
	sentence := strings.Repeat("word ", 9) + "end."
	doc := types.CleanDocument{ID: "d", Content: strings.TrimSpace(strings.Repeat(sentence+" ", 12))}

	chunks := Split(doc, cfg)
	if len(chunks) < 2 {
		t.Fatalf("oversized single paragraph not split: %d chunks", len(chunks))
	}
	for i, c := range chunks {
		if c.TokenCount > 30 {
			t.Errorf("chunk %d has %d tokens", i, c.TokenCount)
		}
		// Sentence-boundary cuts: every chunk ends at a sentence end.
		if !strings.HasSuffix(strings.TrimSpace(c.Content), "end.") {
			t.Errorf("chunk %d cut mid-sentence: ...%q", i, tail(c.Content))
		}
	}
}

func TestRecombineRestoresOrder(t *testing.T) {
	chunks := []types.Chunk{
		{Position: 1, Content: "second"},
		{Position: 0, Content: "first"},
		{Position: 2, Content: "third"},
	}
	got := Recombine(chunks)
	if got != "first\n\nsecond\n\nthird" {
		t.Errorf("recombined = %q", got)
	}
}

func TestCleanFileWritesOutputsAndJob(t *testing.T) {
	dir := t.TempDir()
	cfg := types.CleaningConfig{
		SourcesDir: filepath.Join(dir, "sources"),
		CleanedDir: filepath.Join(dir, "cleaned"),
		ChunksDir:  filepath.Join(dir, "chunks"),
	}
	rawDir := filepath.Join(cfg.SourcesDir, "raw")
	metaDir := filepath.Join(cfg.SourcesDir, "metadata")
	for _, d := range []string{rawDir, metaDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	raw := "# Act\n\nPage 1 of 2\n\nSection text here.\n"
	if err := os.WriteFile(filepath.Join(rawDir, "sisa-1993.html"), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	meta := "url: https://legislation.example/sisa-1993\ntype_hint: act\n"
	if err := os.WriteFile(filepath.Join(metaDir, "sisa-1993.yaml"), []byte(meta), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := CleanFile(cfg, filepath.Join(rawDir, "sisa-1993.html"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Doc.SourceURL != "https://legislation.example/sisa-1993" || res.Doc.TypeHint != "act" {
		t.Errorf("sidecar not applied: %+v", res.Doc)
	}
	if res.Job.ChunkCount != 0 {
		t.Errorf("small document chunked: %+v", res.Job)
	}
	if len(res.Job.Operations) == 0 {
		t.Error("no operations recorded")
	}

	out, err := os.ReadFile(filepath.Join(cfg.CleanedDir, "sisa-1993.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(out), "---\n") || !strings.Contains(string(out), `doc_id: "sisa-1993"`) {
		t.Errorf("frontmatter missing:\n%s", out)
	}
	if strings.Contains(string(out), "Page 1 of 2") {
		t.Error("page marker survived cleaning")
	}

	// No chunk dir for below-threshold documents.
	if _, err := os.Stat(filepath.Join(cfg.ChunksDir, "sisa-1993")); !os.IsNotExist(err) {
		t.Errorf("chunk metadata persisted for implicit single chunk: %v", err)
	}
}

func TestCleanBatchContinuesPastFailures(t *testing.T) {
	dir := t.TempDir()
	cfg := types.CleaningConfig{
		SourcesDir: filepath.Join(dir, "sources"),
		CleanedDir: filepath.Join(dir, "cleaned"),
		ChunksDir:  filepath.Join(dir, "chunks"),
	}
	rawDir := filepath.Join(cfg.SourcesDir, "raw")
	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		t.Fatal(err)
	}
	good := filepath.Join(rawDir, "good.html")
	if err := os.WriteFile(good, []byte("text"), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	batch, results := CleanBatch(cfg, []string{good, filepath.Join(rawDir, "missing.html")}, &buf)
	if batch.Cleaned != 1 || batch.Failed != 1 {
		t.Errorf("batch = %+v", batch)
	}
	if len(results) != 1 {
		t.Errorf("results = %d", len(results))
	}
	log := buf.String()
	if !strings.Contains(log, "cleaned: good") || !strings.Contains(log, "failed:  missing") {
		t.Errorf("log:\n%s", log)
	}
	if !strings.Contains(log, "Batch summary: 1 cleaned, 0 skipped, 1 failed") {
		t.Errorf("summary missing:\n%s", log)
	}

	// Re-running skips the already-cleaned file.
	buf.Reset()
	batch, _ = CleanBatch(cfg, []string{good}, &buf)
	if batch.Skipped != 1 {
		t.Errorf("rerun batch = %+v", batch)
	}
}

func containsOp(ops []string, op string) bool {
	for _, o := range ops {
		if o == op {
			return true
		}
	}
	return false
}

func tail(s string) string {
	if len(s) <= 30 {
		return s
	}
	return s[len(s)-30:]
}
