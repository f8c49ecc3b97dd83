// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pdiddy/reference-engine/pkg/types"
)

// memJobs records scraping job saves in order, so tests can assert that
// every attempt was persisted before the next ran.
type memJobs struct {
	mu    sync.Mutex
	saves []types.ScrapingJob
}

func (m *memJobs) SaveScrapingJob(_ context.Context, job *types.ScrapingJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *job
	copied.Attempts = append([]types.MethodAttempt(nil), job.Attempts...)
	m.saves = append(m.saves, copied)
	return nil
}

func (m *memJobs) last() types.ScrapingJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves[len(m.saves)-1]
}

func testConfig(t *testing.T) types.AcquisitionConfig {
	t.Helper()
	return types.AcquisitionConfig{
		HTTPConfig: types.HTTPConfig{UserAgent: "reference-engine-test/0.1"},
		SourcesDir: t.TempDir(),
		// High rate so tests do not sleep.
		RequestsPerSecond: 1000,
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.legislation.gov.au/C2004A04633/latest", "www-legislation-gov-au-c2004a04633-latest"},
		{"https://example.gov/docs/guide.pdf", "example-gov-docs-guide-pdf"},
		{"https://example.gov/", "example-gov"},
	}
	for _, tt := range tests {
		if got := Slug(tt.url); got != tt.want {
			t.Errorf("Slug(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestAcquireSourceDirectSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body>the act text</body></html>")
	}))
	defer srv.Close()

	cfg := testConfig(t)
	a := New(srv.Client(), nil, cfg)
	jobs := &memJobs{}
	var buf bytes.Buffer

	job, skipped, err := a.AcquireSource(context.Background(), jobs,
		types.SourceDescriptor{URL: srv.URL + "/act"}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if skipped || job.Status != types.StatusCompleted {
		t.Fatalf("job = %+v", job)
	}
	if len(job.Attempts) != 1 || job.Attempts[0].Method != "direct" || !job.Attempts[0].OK {
		t.Errorf("attempts = %+v", job.Attempts)
	}

	data, err := os.ReadFile(job.ContentPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "the act text") {
		t.Errorf("content = %q", data)
	}
	if !strings.HasSuffix(job.ContentPath, ".html") {
		t.Errorf("content path = %s", job.ContentPath)
	}

	// Descriptor sidecar for cleaning.
	meta, err := os.ReadFile(filepath.Join(cfg.SourcesDir, "metadata", job.ID+".yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(meta), srv.URL) {
		t.Errorf("sidecar = %s", meta)
	}
}

func TestAcquireSourceFallsBackToFeed(t *testing.T) {
	var mux http.ServeMux
	mux.HandleFunc("/doc", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	})
	srv := httptest.NewServer(&mux)
	defer srv.Close()
	mux.HandleFunc("/entry", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html>entry content</html>")
	})

	// The direct fetch is refused; the same URL served as a feed works.
	// The strategy re-requests with a feed accept header; the handler keys
	// off it.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept"), "rss") {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, `<rss><channel><item><title>Latest</title><link>%s/entry</link></item></channel></rss>`, srv.URL)
	})

	cfg := testConfig(t)
	a := New(srv.Client(), nil, cfg)
	jobs := &memJobs{}
	var buf bytes.Buffer

	job, _, err := a.AcquireSource(context.Background(), jobs,
		types.SourceDescriptor{URL: srv.URL + "/updates"}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != types.StatusCompleted {
		t.Fatalf("job = %+v", job)
	}
	if len(job.Attempts) != 2 {
		t.Fatalf("attempts = %+v", job.Attempts)
	}
	if job.Attempts[0].Method != "direct" || job.Attempts[0].OK {
		t.Errorf("first attempt = %+v", job.Attempts[0])
	}
	if job.Attempts[0].Error == "" {
		t.Error("failed attempt recorded without error text")
	}
	if job.Attempts[1].Method != "feed" || !job.Attempts[1].OK {
		t.Errorf("second attempt = %+v", job.Attempts[1])
	}

	data, _ := os.ReadFile(job.ContentPath)
	if !strings.Contains(string(data), "entry content") {
		t.Errorf("content = %q", data)
	}

	// The failed direct attempt was saved before the feed attempt ran.
	var sawFailedOnly bool
	jobs.mu.Lock()
	for _, s := range jobs.saves {
		if len(s.Attempts) == 1 && !s.Attempts[0].OK {
			sawFailedOnly = true
		}
	}
	jobs.mu.Unlock()
	if !sawFailedOnly {
		t.Error("attempt log was not persisted between strategies")
	}
}

func TestAcquireSourceExhaustionFailsWithRemediation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	a := New(srv.Client(), nil, cfg)
	jobs := &memJobs{}
	var buf bytes.Buffer

	job, _, err := a.AcquireSource(context.Background(), jobs,
		types.SourceDescriptor{URL: srv.URL + "/gone"}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != types.StatusFailed {
		t.Fatalf("job = %+v", job)
	}
	// direct and feed attempted; api needs a key, rendered needs a runtime,
	// transcribe needs media.
	if len(job.Attempts) != 2 {
		t.Errorf("attempts = %+v", job.Attempts)
	}
	for _, att := range job.Attempts {
		if att.OK || att.Error == "" {
			t.Errorf("attempt = %+v", att)
		}
	}
	if !strings.Contains(job.Remediation, "manually") {
		t.Errorf("remediation = %q", job.Remediation)
	}
	if jobs.last().Status != types.StatusFailed {
		t.Errorf("terminal status not persisted: %+v", jobs.last())
	}
}

func TestAcquireSourceSkipsExisting(t *testing.T) {
	cfg := testConfig(t)
	rawDir := filepath.Join(cfg.SourcesDir, "raw")
	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		t.Fatal(err)
	}
	url := "https://example.gov/doc"
	if err := os.WriteFile(filepath.Join(rawDir, Slug(url)+".html"), []byte("cached"), 0o644); err != nil {
		t.Fatal(err)
	}

	a := New(http.DefaultClient, nil, cfg)
	jobs := &memJobs{}
	var buf bytes.Buffer
	job, skipped, err := a.AcquireSource(context.Background(), jobs,
		types.SourceDescriptor{URL: url}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if !skipped || job.Status != types.StatusCompleted {
		t.Errorf("job = %+v, skipped = %v", job, skipped)
	}
	if !strings.Contains(buf.String(), "skipped:") {
		t.Errorf("log = %q", buf.String())
	}
}

func TestAcquireBatchContinuesPastFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/ok") {
			fmt.Fprint(w, "content")
			return
		}
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	a := New(srv.Client(), nil, cfg)
	jobs := &memJobs{}
	var buf bytes.Buffer

	result := a.AcquireBatch(context.Background(), jobs, []types.SourceDescriptor{
		{URL: srv.URL + "/ok/one"},
		{URL: srv.URL + "/missing"},
		{URL: srv.URL + "/ok/two"},
	}, &buf)

	if result.Acquired != 2 || result.Failed != 1 {
		t.Errorf("result = %+v", result)
	}
	if !strings.Contains(buf.String(), "Batch summary: 2 acquired, 0 skipped, 1 failed (total: 3)") {
		t.Errorf("log = %q", buf.String())
	}
}

func TestAcquireSourceMediaWithPublishedTranscript(t *testing.T) {
	var mux http.ServeMux
	mux.HandleFunc("/hearing.mp3", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("audio-bytes"))
	})
	mux.HandleFunc("/hearing.vtt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/vtt")
		fmt.Fprint(w, "WEBVTT\n\ntranscript text")
	})
	srv := httptest.NewServer(&mux)
	defer srv.Close()

	cfg := testConfig(t)
	a := New(srv.Client(), nil, cfg)
	jobs := &memJobs{}
	var buf bytes.Buffer

	job, _, err := a.AcquireSource(context.Background(), jobs,
		types.SourceDescriptor{URL: srv.URL + "/hearing.mp3", TypeHint: "audio"}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != types.StatusCompleted {
		t.Fatalf("job = %+v", job)
	}
	if len(job.Attempts) != 1 || job.Attempts[0].Method != "transcribe" {
		t.Errorf("attempts = %+v", job.Attempts)
	}

	// Audio and transcript side by side.
	audio, err := os.ReadFile(job.ContentPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(audio) != "audio-bytes" {
		t.Errorf("audio = %q", audio)
	}
	transcript, err := os.ReadFile(job.TranscriptPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(transcript), "transcript text") {
		t.Errorf("transcript = %q", transcript)
	}
	if filepath.Dir(job.TranscriptPath) != filepath.Dir(job.ContentPath) {
		t.Errorf("transcript not beside media: %s vs %s", job.TranscriptPath, job.ContentPath)
	}
}
