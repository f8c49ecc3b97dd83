// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert implements PDF-to-Markdown conversion with pluggable
// backends. Acquired PDF sources pass through here before cleaning; text
// formats skip conversion entirely.
package convert

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Converter transforms a PDF file into Markdown text. Different backends
// (markitdown, pdftotext) implement this interface.
type Converter interface {
	// Convert reads a PDF at pdfPath and returns the Markdown content.
	Convert(pdfPath string) (string, error)
}

// BatchResult holds the outcome of a batch conversion run.
type BatchResult struct {
	Converted int
	Skipped   int
	Failed    int
}

// Total returns the total number of files processed.
func (r BatchResult) Total() int {
	return r.Converted + r.Skipped + r.Failed
}

// HasFailures reports whether any files failed conversion.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// NeedsConversion reports whether a raw source file must be converted
// before cleaning can normalize it.
func NeedsConversion(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// ConvertFile converts one PDF, writing <slug>.md beside the source so
// cleaning picks it up in place of the PDF. An existing output skips the
// conversion.
func ConvertFile(c Converter, pdfPath string, w io.Writer) (string, bool, error) {
	slug := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	mdPath := filepath.Join(filepath.Dir(pdfPath), slug+".md")

	if _, err := os.Stat(mdPath); err == nil {
		fmt.Fprintf(w, "skipped: %s (already converted)\n", slug)
		return mdPath, true, nil
	}

	content, err := c.Convert(pdfPath)
	if err != nil {
		return "", false, fmt.Errorf("converting %s: %w", slug, err)
	}
	if err := os.WriteFile(mdPath, []byte(content), 0o644); err != nil {
		return "", false, fmt.Errorf("writing %s: %w", mdPath, err)
	}
	fmt.Fprintf(w, "converted: %s\n", slug)
	return mdPath, false, nil
}

// ConvertBatch converts every PDF in paths, printing per-file status to w
// and returning the summary plus the resulting paths for cleaning. Non-PDF
// paths pass through unchanged.
func ConvertBatch(c Converter, paths []string, w io.Writer) (BatchResult, []string) {
	var result BatchResult
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !NeedsConversion(p) {
			out = append(out, p)
			continue
		}
		mdPath, skipped, err := ConvertFile(c, p, w)
		if err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", filepath.Base(p), err)
			result.Failed++
			continue
		}
		if skipped {
			result.Skipped++
		} else {
			result.Converted++
		}
		out = append(out, mdPath)
	}
	fmt.Fprintf(w, "\nBatch summary: %d converted, %d skipped, %d failed (total: %d)\n",
		result.Converted, result.Skipped, result.Failed, result.Total())
	return result, out
}
