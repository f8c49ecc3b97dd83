// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/pdiddy/reference-engine/internal/httputil"
	"github.com/pdiddy/reference-engine/pkg/types"
)

// Content is what a successful strategy attempt hands back: the raw bytes,
// a file extension for the content path, and optionally a transcript to
// persist beside the media file.
type Content struct {
	Data       []byte
	Ext        string
	Transcript []byte
}

// Strategy is one way of getting content for a source. Strategies are
// tried in order; Applies filters out strategies that cannot serve a
// descriptor at all (wrong media kind, missing credentials), which is not
// recorded as an attempt.
type Strategy interface {
	// Name identifies the strategy in attempt logs ("direct", "feed", ...).
	Name() string

	// Applies reports whether the strategy can be attempted for src.
	Applies(src types.SourceDescriptor) bool

	// Attempt tries to acquire the content. The context carries the
	// per-attempt timeout; timing out is the attempt's failure.
	Attempt(ctx context.Context, src types.SourceDescriptor) (*Content, error)
}

// fetch is the shared HTTP GET used by strategies: configured User-Agent,
// retry-with-backoff on 429, non-2xx as errors.
func fetch(ctx context.Context, client *http.Client, url, userAgent, accept string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return nil, "", fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading response: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// extFor maps a Content-Type header to a content file extension.
func extFor(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ".bin"
	}
	switch mt {
	case "text/html", "application/xhtml+xml":
		return ".html"
	case "application/pdf":
		return ".pdf"
	case "text/plain":
		return ".txt"
	case "text/markdown":
		return ".md"
	case "application/json":
		return ".json"
	case "application/rss+xml", "application/atom+xml", "text/xml", "application/xml":
		return ".xml"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/mp4", "video/mp4":
		return ".mp4"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	}
	if strings.HasPrefix(mt, "audio/") || strings.HasPrefix(mt, "video/") {
		return ".media"
	}
	return ".bin"
}

// isMedia reports whether a descriptor points at audio or video, by hint
// or by URL extension.
func isMedia(src types.SourceDescriptor) bool {
	switch strings.ToLower(src.TypeHint) {
	case "audio", "video", "podcast", "webinar":
		return true
	}
	u := strings.ToLower(src.URL)
	for _, ext := range []string{".mp3", ".mp4", ".m4a", ".wav", ".ogg"} {
		if strings.HasSuffix(u, ext) {
			return true
		}
	}
	return false
}
