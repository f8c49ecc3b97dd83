// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pdiddy/reference-engine/internal/httputil"
	"github.com/pdiddy/reference-engine/pkg/types"
)

// apiStrategy asks the source host for a structured representation of the
// document: same URL, JSON accept header, bearer credentials from the
// secrets directory. Registers that refuse HTML scraping commonly serve
// authenticated JSON from the same path.
type apiStrategy struct {
	client    *http.Client
	userAgent string
	apiKey    string
}

func (a *apiStrategy) Name() string { return "api" }

// Applies requires a configured API key; without credentials the attempt
// would only repeat the direct strategy's failure.
func (a *apiStrategy) Applies(src types.SourceDescriptor) bool {
	return a.apiKey != "" && !isMedia(src)
}

func (a *apiStrategy) Attempt(ctx context.Context, src types.SourceDescriptor) (*Content, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := httputil.DoWithRetry(ctx, a.client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, src.URL)
	}

	var body json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	return &Content{Data: body, Ext: ".json"}, nil
}
