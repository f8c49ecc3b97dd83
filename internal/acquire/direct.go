// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pdiddy/reference-engine/pkg/types"
)

// directStrategy fetches the source URL as-is. It is the first strategy in
// the chain and handles the plain-document majority of sources.
type directStrategy struct {
	client    *http.Client
	userAgent string
}

func (d *directStrategy) Name() string { return "direct" }

// Applies is true for everything except media; media goes straight to the
// transcription strategy, which also downloads the file.
func (d *directStrategy) Applies(src types.SourceDescriptor) bool {
	return !isMedia(src)
}

func (d *directStrategy) Attempt(ctx context.Context, src types.SourceDescriptor) (*Content, error) {
	data, contentType, err := fetch(ctx, d.client, src.URL, d.userAgent,
		"text/html, application/pdf, text/plain;q=0.9, */*;q=0.5")
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty response from %s", src.URL)
	}
	return &Content{Data: data, Ext: extFor(contentType)}, nil
}
