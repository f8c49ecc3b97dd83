// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/reference-engine/pkg/types"
)

func seedSearchStore(t *testing.T, s *Store) {
	t.Helper()
	refs := []struct {
		id    string
		typ   types.ReferenceType
		title string
		body  string
		text  string
		start time.Time
	}{
		{"sisa-1993", types.TypeAct, "Superannuation Industry (Supervision) Act 1993", "Treasury",
			"An Act about the prudential supervision of superannuation entities and trustee covenants.", date(2018, 1, 1)},
		{"sisr-1994", types.TypeRegulation, "Superannuation Industry (Supervision) Regulations 1994", "Treasury",
			"Regulations supporting the supervision of superannuation funds, including contribution standards.", date(2024, 1, 1)},
		{"gs-007", types.TypeGuidance, "Guidance Statement GS 007 Audit Implications", "AUASB",
			"Guidance on audit implications of outsourced investment management services.", date(2015, 1, 1)},
	}
	for _, r := range refs {
		ref := &types.Reference{
			ID: r.id, Type: r.typ, Title: r.title, Body: r.body,
			SourceURL: "https://example.gov/" + r.id, URLValid: true,
		}
		if err := s.InsertReference(context.Background(), ref); err != nil {
			t.Fatal(err)
		}
		putVersion(t, s, r.id, r.id+"-v1", r.start, time.Time{}, r.text)
	}
}

func TestSearchRanksAndFilters(t *testing.T) {
	s := testStore(t)
	seedSearchStore(t, s)

	out, err := s.Search(context.Background(), "superannuation supervision", SearchFilters{}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(out.Results))
	}
	for _, r := range out.Results {
		if r.Score <= 0 {
			t.Errorf("result %s has non-positive score %f", r.ReferenceID, r.Score)
		}
	}

	out, err = s.Search(context.Background(), "superannuation",
		SearchFilters{Type: types.TypeRegulation}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 1 || out.Results[0].ReferenceID != "sisr-1994" {
		t.Errorf("type filter gave %+v", out.Results)
	}

	out, err = s.Search(context.Background(), "audit", SearchFilters{Body: "AUASB"}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 1 || out.Results[0].ReferenceID != "gs-007" {
		t.Errorf("body filter gave %+v", out.Results)
	}
}

func TestSearchRecencyBoostBreaksTies(t *testing.T) {
	s := testStore(t)
	seedSearchStore(t, s)

	out, err := s.Search(context.Background(), "superannuation supervision", SearchFilters{}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(out.Results))
	}
	// The regulations took effect in 2024, well inside the recency window
	// relative to the fixed clock; they should not rank below the 2018 act
	// when lexical scores are close.
	if out.Results[0].LatestEffective.Before(out.Results[1].LatestEffective) {
		t.Errorf("older reference ranked first: %s before %s",
			out.Results[0].ReferenceID, out.Results[1].ReferenceID)
	}
}

func TestSearchDateRangeFilter(t *testing.T) {
	s := testStore(t)
	seedSearchStore(t, s)

	out, err := s.Search(context.Background(), "superannuation", SearchFilters{
		DateFrom: date(2023, 1, 1),
		DateTo:   date(2025, 1, 1),
	}, 10)
	if err != nil {
		t.Fatal(err)
	}
	// Both match: sisr-1994 starts inside the range, sisa-1993's open window
	// overlaps it.
	if len(out.Results) != 2 {
		t.Errorf("date range gave %d results, want 2", len(out.Results))
	}

	out, err = s.Search(context.Background(), "superannuation", SearchFilters{
		DateFrom: date(2010, 1, 1),
		DateTo:   date(2012, 1, 1),
	}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 0 {
		t.Errorf("range before any version gave %+v", out.Results)
	}
}

func TestSearchEmptyResultsCarrySuggestions(t *testing.T) {
	s := testStore(t)
	seedSearchStore(t, s)

	out, err := s.Search(context.Background(), "superannuatoin", SearchFilters{}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 0 {
		t.Fatalf("misspelled query matched %+v", out.Results)
	}
	if out.Message == "" {
		t.Error("empty result set without explanatory message")
	}
	var suggested bool
	for _, term := range out.Suggestions {
		if strings.HasPrefix(term, "sup") {
			suggested = true
		}
	}
	if !suggested {
		t.Errorf("suggestions %v do not include stored terms sharing the prefix", out.Suggestions)
	}
	if len(out.AvailableTypes) == 0 {
		t.Error("empty result set without available type filters")
	}
}

func TestSearchRejectsBlankQuery(t *testing.T) {
	s := testStore(t)
	var verr *ValidationError
	if _, err := s.Search(context.Background(), "   ", SearchFilters{}, 10); !asValidation(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestRetrieveAsOf(t *testing.T) {
	s := testStore(t)
	insertRef(t, s, "r1")
	putVersion(t, s, "r1", "v1", date(2019, 1, 1), time.Time{}, "first")
	putVersion(t, s, "r1", "v2", date(2023, 1, 1), time.Time{}, "second")

	ref, ver, err := s.Retrieve(context.Background(), "r1", date(2020, 6, 1))
	if err != nil {
		t.Fatal(err)
	}
	if ref.ID != "r1" || ver.ID != "v1" {
		t.Errorf("retrieved %s/%s, want r1/v1", ref.ID, ver.ID)
	}

	// Zero as-of means the current version.
	_, ver, err = s.Retrieve(context.Background(), "r1", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if ver.ID != "v2" {
		t.Errorf("current retrieve gave %s, want v2", ver.ID)
	}

	_, _, err = s.Retrieve(context.Background(), "r1", date(2000, 1, 1))
	if !IsOutOfRange(err) {
		t.Fatalf("expected out-of-range, got %v", err)
	}
}

func TestFormatTableEmptyOutput(t *testing.T) {
	out := SearchOutput{
		Suggestions:    []string{"superannuation", "supervision"},
		AvailableTypes: []types.ReferenceType{types.TypeAct},
		Message:        "no results matched the query",
	}
	var buf bytes.Buffer
	FormatTable(out, &buf)
	text := buf.String()
	if !strings.Contains(text, "superannuation") || !strings.Contains(text, "act") {
		t.Errorf("formatted output missing suggestions:\n%s", text)
	}
}

func TestCitationsIncludeProvenance(t *testing.T) {
	s := testStore(t)
	insertRef(t, s, "r1")
	putVersion(t, s, "r1", "v1", date(2020, 1, 1), time.Time{}, "Section 3 requires trustees to act honestly.\nMore text.")
	pins := []types.Pinpoint{
		{ID: "p1", ReferenceID: "r1", VersionID: "v1", Path: "s 3", Excerpt: "trustees must act honestly"},
	}
	if err := s.PutPinpoints(context.Background(), pins); err != nil {
		t.Fatal(err)
	}

	entries, err := s.Citations(context.Background(), "r1", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.VersionID != "v1" || e.PinpointPath != "s 3" || e.SourceURL == "" {
		t.Errorf("entry missing provenance: %+v", e)
	}

	var buf bytes.Buffer
	FormatCitations(entries, &buf)
	text := buf.String()
	if !strings.Contains(text, "s 3") || !strings.Contains(text, "trustees must act honestly") {
		t.Errorf("formatted citations missing pinpoint detail:\n%s", text)
	}
}
