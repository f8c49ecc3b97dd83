// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/pdiddy/reference-engine/internal/container"
	"github.com/pdiddy/reference-engine/pkg/types"
)

// transcriptSuffixes are the sidecar paths probed during transcript
// discovery, in preference order.
var transcriptSuffixes = []string{".vtt", ".srt", "-transcript.txt", ".txt"}

// transcribeStrategy handles audio and video sources: download the media,
// then find a published transcript next to it, and only when none exists
// run the containerized transcriber. Media and transcript are persisted
// side by side by the orchestrator.
type transcribeStrategy struct {
	client    *http.Client
	userAgent string
	runtime   container.Runtime
	image     string
}

func (t *transcribeStrategy) Name() string { return "transcribe" }

func (t *transcribeStrategy) Applies(src types.SourceDescriptor) bool {
	return isMedia(src)
}

func (t *transcribeStrategy) Attempt(ctx context.Context, src types.SourceDescriptor) (*Content, error) {
	media, contentType, err := fetch(ctx, t.client, src.URL, t.userAgent, "")
	if err != nil {
		return nil, fmt.Errorf("downloading media: %w", err)
	}

	ext := extFor(contentType)
	if ext == ".bin" || ext == ".media" {
		if u := strings.ToLower(src.URL); path.Ext(u) != "" {
			ext = path.Ext(u)
		}
	}

	transcript := t.discoverTranscript(ctx, src.URL)
	if transcript == nil {
		transcript, err = t.generateTranscript(media)
		if err != nil {
			return nil, fmt.Errorf("no published transcript and generation failed: %w", err)
		}
	}

	return &Content{Data: media, Ext: ext, Transcript: transcript}, nil
}

// discoverTranscript probes conventional sidecar URLs for a published
// transcript. A miss is not an error; it advances to generation.
func (t *transcribeStrategy) discoverTranscript(ctx context.Context, mediaURL string) []byte {
	base := strings.TrimSuffix(mediaURL, path.Ext(mediaURL))
	for _, suffix := range transcriptSuffixes {
		data, _, err := fetch(ctx, t.client, base+suffix, t.userAgent, "text/plain, text/vtt")
		if err == nil && len(bytes.TrimSpace(data)) > 0 {
			return data
		}
	}
	return nil
}

// generateTranscript runs the transcriber container over the media bytes.
func (t *transcribeStrategy) generateTranscript(media []byte) ([]byte, error) {
	if t.runtime == nil || t.image == "" {
		return nil, fmt.Errorf("no transcriber configured")
	}
	if err := t.runtime.ImageExists(t.image); err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := t.runtime.Run(t.image, bytes.NewReader(media), &out); err != nil {
		return nil, fmt.Errorf("transcriber: %w", err)
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("transcriber produced no output")
	}
	return out.Bytes(), nil
}
