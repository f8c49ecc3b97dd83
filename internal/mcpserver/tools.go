// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pdiddy/reference-engine/internal/store"
	"github.com/pdiddy/reference-engine/pkg/types"
)

// SearchInput is the input schema for the search_references tool.
type SearchInput struct {
	Query    string `json:"query" jsonschema:"keywords to search reference titles and text for"`
	Type     string `json:"type,omitempty" jsonschema:"restrict to one reference type: act, regulation, guidance, or case"`
	Body     string `json:"body,omitempty" jsonschema:"restrict to one issuing regulatory body"`
	DateFrom string `json:"date_from,omitempty" jsonschema:"only references effective on or after this date (YYYY-MM-DD)"`
	DateTo   string `json:"date_to,omitempty" jsonschema:"only references effective before this date (YYYY-MM-DD)"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum number of results (default 20)"`
}

// SearchHit is one ranked result.
type SearchHit struct {
	ReferenceID     string  `json:"reference_id"`
	Title           string  `json:"title"`
	Type            string  `json:"type"`
	Body            string  `json:"body,omitempty"`
	SourceURL       string  `json:"source_url,omitempty"`
	URLValid        bool    `json:"url_valid"`
	Score           float64 `json:"score"`
	Snippet         string  `json:"snippet,omitempty"`
	LatestEffective string  `json:"latest_effective,omitempty"`
}

// SearchOutput is the output schema for the search_references tool. Empty
// result sets carry suggestions and the type filters present in the store.
type SearchOutput struct {
	Results        []SearchHit `json:"results"`
	Suggestions    []string    `json:"suggestions,omitempty"`
	AvailableTypes []string    `json:"available_types,omitempty"`
	Message        string      `json:"message,omitempty"`
}

// GetReferenceInput is the input schema for the get_reference tool.
type GetReferenceInput struct {
	ReferenceID string `json:"reference_id" jsonschema:"the reference to retrieve"`
	AsOf        string `json:"as_of,omitempty" jsonschema:"resolve the version effective on this date (YYYY-MM-DD); omit for the current version"`
}

// GetReferenceOutput is the output schema for the get_reference tool.
type GetReferenceOutput struct {
	ReferenceID    string `json:"reference_id"`
	Title          string `json:"title"`
	Type           string `json:"type"`
	Body           string `json:"body,omitempty"`
	SourceURL      string `json:"source_url,omitempty"`
	URLValid       bool   `json:"url_valid"`
	VersionID      string `json:"version_id"`
	EffectiveStart string `json:"effective_start"`
	EffectiveEnd   string `json:"effective_end,omitempty"`
	Content        string `json:"content"`
}

// GetPinpointInput is the input schema for the get_pinpoint tool.
type GetPinpointInput struct {
	ReferenceID string `json:"reference_id" jsonschema:"the reference the pinpoint belongs to"`
	Path        string `json:"path" jsonschema:"the pinpoint path, e.g. 's 52' or 's 52/para (b)'"`
}

// GetPinpointOutput is the output schema for the get_pinpoint tool.
type GetPinpointOutput struct {
	ReferenceID string `json:"reference_id"`
	VersionID   string `json:"version_id"`
	Path        string `json:"path"`
	Excerpt     string `json:"excerpt"`
	Context     string `json:"context,omitempty"`
}

// VersionHistoryInput is the input schema for the get_version_history tool.
type VersionHistoryInput struct {
	ReferenceID string `json:"reference_id" jsonschema:"the reference whose version timeline to list"`
}

// VersionEntry is one version in a reference's timeline.
type VersionEntry struct {
	VersionID      string `json:"version_id"`
	EffectiveStart string `json:"effective_start"`
	EffectiveEnd   string `json:"effective_end,omitempty"`
	ChangeSummary  string `json:"change_summary,omitempty"`
	Open           bool   `json:"open"`
}

// VersionHistoryOutput is the output schema for the get_version_history tool.
type VersionHistoryOutput struct {
	ReferenceID string         `json:"reference_id"`
	Versions    []VersionEntry `json:"versions"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_references",
		Description: "Search the reference store by keywords, optionally filtered by type, body, or effective date range",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_reference",
		Description: "Retrieve one reference's full text, either current or as effective on a given date",
	}, s.handleGetReference)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_pinpoint",
		Description: "Retrieve the text at a section or paragraph pinpoint within a reference",
	}, s.handleGetPinpoint)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_version_history",
		Description: "List a reference's version timeline with effective windows",
	}, s.handleVersionHistory)
}

func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	filters := store.SearchFilters{
		Type: types.ReferenceType(input.Type),
		Body: input.Body,
	}
	var err error
	if filters.DateFrom, err = parseDate(input.DateFrom); err != nil {
		return nil, SearchOutput{}, err
	}
	if filters.DateTo, err = parseDate(input.DateTo); err != nil {
		return nil, SearchOutput{}, err
	}

	out, err := s.q.Search(ctx, input.Query, filters, input.Limit)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results:     make([]SearchHit, len(out.Results)),
		Suggestions: out.Suggestions,
		Message:     out.Message,
	}
	for _, t := range out.AvailableTypes {
		output.AvailableTypes = append(output.AvailableTypes, string(t))
	}
	for i, r := range out.Results {
		hit := SearchHit{
			ReferenceID: r.ReferenceID,
			Title:       r.Title,
			Type:        string(r.Type),
			Body:        r.Body,
			SourceURL:   r.SourceURL,
			URLValid:    r.URLValid,
			Score:       r.Score,
			Snippet:     r.Snippet,
		}
		if !r.LatestEffective.IsZero() {
			hit.LatestEffective = r.LatestEffective.Format("2006-01-02")
		}
		output.Results[i] = hit
	}
	return nil, output, nil
}

func (s *Server) handleGetReference(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetReferenceInput,
) (*mcp.CallToolResult, GetReferenceOutput, error) {
	asOf, err := parseDate(input.AsOf)
	if err != nil {
		return nil, GetReferenceOutput{}, err
	}

	ref, ver, err := s.q.Retrieve(ctx, input.ReferenceID, asOf)
	if err != nil {
		return nil, GetReferenceOutput{}, err
	}

	output := GetReferenceOutput{
		ReferenceID:    ref.ID,
		Title:          ref.Title,
		Type:           string(ref.Type),
		Body:           ref.Body,
		SourceURL:      ref.SourceURL,
		URLValid:       ref.URLValid,
		VersionID:      ver.ID,
		EffectiveStart: ver.EffectiveStart.Format("2006-01-02"),
		Content:        ver.Content,
	}
	if !ver.Open() {
		output.EffectiveEnd = ver.EffectiveEnd.Format("2006-01-02")
	}
	return nil, output, nil
}

func (s *Server) handleGetPinpoint(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetPinpointInput,
) (*mcp.CallToolResult, GetPinpointOutput, error) {
	pin, err := s.q.GetPinpoint(ctx, input.ReferenceID, input.Path)
	if err != nil {
		return nil, GetPinpointOutput{}, err
	}
	return nil, GetPinpointOutput{
		ReferenceID: pin.ReferenceID,
		VersionID:   pin.VersionID,
		Path:        pin.Path,
		Excerpt:     pin.Excerpt,
		Context:     pin.Context,
	}, nil
}

func (s *Server) handleVersionHistory(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input VersionHistoryInput,
) (*mcp.CallToolResult, VersionHistoryOutput, error) {
	versions, err := s.q.VersionHistory(ctx, input.ReferenceID)
	if err != nil {
		return nil, VersionHistoryOutput{}, err
	}

	output := VersionHistoryOutput{
		ReferenceID: input.ReferenceID,
		Versions:    make([]VersionEntry, len(versions)),
	}
	for i, v := range versions {
		entry := VersionEntry{
			VersionID:      v.ID,
			EffectiveStart: v.EffectiveStart.Format("2006-01-02"),
			ChangeSummary:  v.ChangeSummary,
			Open:           v.Open(),
		}
		if !v.Open() {
			entry.EffectiveEnd = v.EffectiveEnd.Format("2006-01-02")
		}
		output.Versions[i] = entry
	}
	return nil, output, nil
}
