// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/reference-engine/internal/container"
	"github.com/pdiddy/reference-engine/pkg/types"
)

// renderedStrategy runs a containerized headless browser against the
// source URL and captures the rendered page. It is the expensive fallback
// for script-heavy pages that serve empty shells to plain HTTP clients.
type renderedStrategy struct {
	runtime container.Runtime
	image   string
}

func (r *renderedStrategy) Name() string { return "rendered" }

func (r *renderedStrategy) Applies(src types.SourceDescriptor) bool {
	return r.runtime != nil && r.image != "" && !isMedia(src)
}

// Attempt pipes the URL to the renderer container and reads the rendered
// HTML from stdout. Container execution is not context-aware; the render
// is bounded by the container's own page timeout, and a cancelled attempt
// reports the context error after the run returns.
func (r *renderedStrategy) Attempt(ctx context.Context, src types.SourceDescriptor) (*Content, error) {
	if err := r.runtime.ImageExists(r.image); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := r.runtime.Run(r.image, strings.NewReader(src.URL+"\n"), &out); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", src.URL, err)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("renderer produced no output for %s", src.URL)
	}
	return &Content{Data: out.Bytes(), Ext: ".html"}, nil
}
