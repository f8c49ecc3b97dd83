// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/reference-engine/pkg/types"
)

// CitationEntry is a search or retrieval hit reshaped into citation-ready
// form for prompt embedding. Every provenance field of the stored record is
// retained.
type CitationEntry struct {
	ReferenceID    string              `json:"reference_id" yaml:"reference_id"`
	Title          string              `json:"title" yaml:"title"`
	Type           types.ReferenceType `json:"type" yaml:"type"`
	Body           string              `json:"body,omitempty" yaml:"body,omitempty"`
	VersionID      string              `json:"version_id" yaml:"version_id"`
	EffectiveStart time.Time           `json:"effective_start" yaml:"effective_start"`
	EffectiveEnd   time.Time           `json:"effective_end,omitempty" yaml:"effective_end,omitempty"`
	PinpointPath   string              `json:"pinpoint_path,omitempty" yaml:"pinpoint_path,omitempty"`
	Excerpt        string              `json:"excerpt,omitempty" yaml:"excerpt,omitempty"`
	SourceURL      string              `json:"source_url,omitempty" yaml:"source_url,omitempty"`
	URLValid       bool                `json:"url_valid" yaml:"url_valid"`
}

// Citations resolves a reference (as of the given date, zero = now) into
// one citation entry per pinpoint of the resolved version, or a single
// entry for the version itself when it has no pinpoints.
func (s *Store) Citations(ctx context.Context, refID string, asOf time.Time) ([]CitationEntry, error) {
	ref, version, err := s.Retrieve(ctx, refID, asOf)
	if err != nil {
		return nil, err
	}

	pins, err := s.VersionPinpoints(ctx, version.ID)
	if err != nil {
		return nil, err
	}

	base := CitationEntry{
		ReferenceID:    ref.ID,
		Title:          ref.Title,
		Type:           ref.Type,
		Body:           ref.Body,
		VersionID:      version.ID,
		EffectiveStart: version.EffectiveStart,
		EffectiveEnd:   version.EffectiveEnd,
		SourceURL:      ref.SourceURL,
		URLValid:       ref.URLValid,
	}

	if len(pins) == 0 {
		entry := base
		entry.Excerpt = firstLine(version.Content)
		return []CitationEntry{entry}, nil
	}

	entries := make([]CitationEntry, len(pins))
	for i, p := range pins {
		entries[i] = base
		entries[i].PinpointPath = p.Path
		entries[i].Excerpt = p.Excerpt
	}
	return entries, nil
}

// FormatCitations writes entries as structured text suitable for embedding
// in a prompt: one block per entry, provenance fields labeled.
func FormatCitations(entries []CitationEntry, w io.Writer) {
	for i, e := range entries {
		fmt.Fprintf(w, "[%d] %s (%s", i+1, e.Title, e.Type)
		if e.Body != "" {
			fmt.Fprintf(w, ", %s", e.Body)
		}
		fmt.Fprintln(w, ")")
		fmt.Fprintf(w, "    version: %s effective %s – %s\n",
			e.VersionID, e.EffectiveStart.Format("2006-01-02"), fmtBound(e.EffectiveEnd))
		if e.PinpointPath != "" {
			fmt.Fprintf(w, "    pinpoint: %s\n", e.PinpointPath)
		}
		if e.Excerpt != "" {
			fmt.Fprintf(w, "    excerpt: %s\n", e.Excerpt)
		}
		if e.SourceURL != "" {
			marker := ""
			if !e.URLValid {
				marker = " (link known dead; content retained)"
			}
			fmt.Fprintf(w, "    source: %s%s\n", e.SourceURL, marker)
		}
	}
}

// ExportJSON writes every reference's current citation entries to
// dir/export.json.
func (s *Store) ExportJSON(ctx context.Context, dir string) error {
	entries, err := s.exportEntries(ctx)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "export.json"), data, 0o644)
}

// ExportYAML writes every reference's current citation entries to
// dir/export.yaml.
func (s *Store) ExportYAML(ctx context.Context, dir string) error {
	entries, err := s.exportEntries(ctx)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "export.yaml"), data, 0o644)
}

func (s *Store) exportEntries(ctx context.Context) ([]CitationEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM refs ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("listing references: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var entries []CitationEntry
	for _, id := range ids {
		cites, err := s.Citations(ctx, id, time.Time{})
		if err != nil {
			// A reference with no effective version yet is skipped, not fatal.
			if IsOutOfRange(err) {
				continue
			}
			return nil, err
		}
		entries = append(entries, cites...)
	}
	return entries, nil
}

func firstLine(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			if len(line) > 120 {
				return line[:117] + "..."
			}
			return line
		}
	}
	return ""
}
