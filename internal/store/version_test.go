// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/reference-engine/pkg/types"
)

func TestPutVersionClosesOpenPredecessor(t *testing.T) {
	s := testStore(t)
	insertRef(t, s, "r1")
	putVersion(t, s, "r1", "v1", date(2020, 1, 1), time.Time{}, "original text")
	putVersion(t, s, "r1", "v2", date(2023, 7, 1), time.Time{}, "amended text")

	history, err := s.VersionHistory(context.Background(), "r1")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d versions, want 2", len(history))
	}

	v1 := history[0]
	if v1.Open() {
		t.Error("predecessor still open after successor insert")
	}
	if !v1.EffectiveEnd.Equal(date(2023, 7, 1)) {
		t.Errorf("predecessor end = %s, want successor start", v1.EffectiveEnd)
	}

	v2 := history[1]
	if !v2.Open() {
		t.Errorf("latest version closed at %s", v2.EffectiveEnd)
	}
	if len(v2.Supersedes) != 1 || v2.Supersedes[0] != "v1" {
		t.Errorf("supersedes = %v, want [v1]", v2.Supersedes)
	}
}

func TestPutVersionHistoricalInsertGetsClosed(t *testing.T) {
	s := testStore(t)
	insertRef(t, s, "r1")
	putVersion(t, s, "r1", "v2", date(2023, 1, 1), time.Time{}, "later")
	// Backfill an earlier version; it must close at the later version's start.
	putVersion(t, s, "r1", "v1", date(2020, 1, 1), time.Time{}, "earlier")

	history, err := s.VersionHistory(context.Background(), "r1")
	if err != nil {
		t.Fatal(err)
	}
	if !history[0].EffectiveEnd.Equal(date(2023, 1, 1)) {
		t.Errorf("backfilled version end = %s, want 2023-01-01", history[0].EffectiveEnd)
	}
	if !history[1].Open() {
		t.Error("later version should remain open")
	}
}

func TestPutVersionRejectsOverlap(t *testing.T) {
	s := testStore(t)
	insertRef(t, s, "r1")
	putVersion(t, s, "r1", "v1", date(2020, 1, 1), date(2022, 1, 1), "a")

	err := s.PutVersion(context.Background(), "r1", &types.ReferenceVersion{
		ID:             "v2",
		ReferenceID:    "r1",
		EffectiveStart: date(2021, 6, 1),
		EffectiveEnd:   date(2021, 9, 1),
		Content:        "b",
	})
	var verr *ValidationError
	if !asValidation(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestPutVersionAdjacentWindowsAccepted(t *testing.T) {
	s := testStore(t)
	insertRef(t, s, "r1")
	putVersion(t, s, "r1", "v1", date(2020, 1, 1), date(2022, 1, 1), "a")
	// Half-open windows: a version starting exactly at the predecessor's end
	// is adjacent, not overlapping.
	putVersion(t, s, "r1", "v2", date(2022, 1, 1), time.Time{}, "b")

	got, err := s.ResolveAsOf(context.Background(), "r1", date(2022, 1, 1), false)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "v2" {
		t.Errorf("boundary date resolved to %s, want v2", got.ID)
	}
}

func TestPutVersionValidation(t *testing.T) {
	s := testStore(t)
	insertRef(t, s, "r1")

	err := s.PutVersion(context.Background(), "r1", &types.ReferenceVersion{ID: "v1"})
	var verr *ValidationError
	if !asValidation(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	err = s.PutVersion(context.Background(), "r1", &types.ReferenceVersion{
		ID:             "v1",
		EffectiveStart: date(2022, 1, 1),
		EffectiveEnd:   date(2020, 1, 1),
	})
	if !asValidation(err, &verr) {
		t.Fatalf("end before start accepted: %v", err)
	}

	err = s.PutVersion(context.Background(), "missing-ref", &types.ReferenceVersion{
		ID:             "v1",
		EffectiveStart: date(2022, 1, 1),
	})
	if !isNotFound(err) {
		t.Fatalf("expected ErrNotFound for unknown reference, got %v", err)
	}
}

func TestPutVersionUpdatesCurrentText(t *testing.T) {
	s := testStore(t)
	insertRef(t, s, "r1")
	putVersion(t, s, "r1", "v1", date(2020, 1, 1), time.Time{}, "current wording")

	got, err := s.GetReference(context.Background(), "r1")
	if err != nil {
		t.Fatal(err)
	}
	if got.CurrentText != "current wording" {
		t.Errorf("current_text = %q", got.CurrentText)
	}

	// A future-dated version must not replace the current text yet.
	putVersion(t, s, "r1", "v2", fixedNow.AddDate(1, 0, 0), time.Time{}, "future wording")
	got, err = s.GetReference(context.Background(), "r1")
	if err != nil {
		t.Fatal(err)
	}
	if got.CurrentText != "current wording" {
		t.Errorf("future version replaced current_text: %q", got.CurrentText)
	}
}

func TestResolveAsOf(t *testing.T) {
	s := testStore(t)
	insertRef(t, s, "r1")
	putVersion(t, s, "r1", "v1", date(2018, 1, 1), time.Time{}, "first")
	putVersion(t, s, "r1", "v2", date(2021, 1, 1), time.Time{}, "second")
	putVersion(t, s, "r1", "v3", date(2024, 1, 1), time.Time{}, "third")

	cases := []struct {
		name string
		asOf time.Time
		want string
	}{
		{"inside first window", date(2019, 6, 1), "v1"},
		{"at a boundary", date(2021, 1, 1), "v2"},
		{"day before boundary", date(2023, 12, 31), "v2"},
		{"open tail", date(2025, 3, 1), "v3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.ResolveAsOf(context.Background(), "r1", tc.asOf, false)
			if err != nil {
				t.Fatal(err)
			}
			if got.ID != tc.want {
				t.Errorf("resolved %s, want %s", got.ID, tc.want)
			}
		})
	}
}

func TestResolveAsOfOutOfRange(t *testing.T) {
	s := testStore(t)
	insertRef(t, s, "r1")
	putVersion(t, s, "r1", "v1", date(2018, 1, 1), date(2021, 1, 1), "first")
	putVersion(t, s, "r1", "v2", date(2021, 1, 1), date(2024, 1, 1), "second")

	_, err := s.ResolveAsOf(context.Background(), "r1", date(2010, 1, 1), false)
	oor, ok := err.(*OutOfRangeError)
	if !ok {
		t.Fatalf("expected OutOfRangeError, got %v", err)
	}
	if oor.Bound != BeforeEarliest {
		t.Errorf("bound = %v, want BeforeEarliest", oor.Bound)
	}
	if !oor.Earliest.Equal(date(2018, 1, 1)) {
		t.Errorf("earliest = %s", oor.Earliest)
	}

	_, err = s.ResolveAsOf(context.Background(), "r1", date(2025, 1, 1), false)
	oor, ok = err.(*OutOfRangeError)
	if !ok {
		t.Fatalf("expected OutOfRangeError, got %v", err)
	}
	if oor.Bound != AfterLatest {
		t.Errorf("bound = %v, want AfterLatest", oor.Bound)
	}
	if !oor.Latest.Equal(date(2024, 1, 1)) {
		t.Errorf("latest = %s", oor.Latest)
	}
	// The remediation message names the usable bound.
	if msg := oor.Error(); !strings.Contains(msg, "2024-01-01") {
		t.Errorf("error does not name the covered bound: %q", msg)
	}
}

func TestResolveAsOfSkipsFutureVersions(t *testing.T) {
	s := testStore(t)
	insertRef(t, s, "r1")
	future := fixedNow.AddDate(0, 6, 0)
	putVersion(t, s, "r1", "v1", date(2020, 1, 1), time.Time{}, "effective")
	putVersion(t, s, "r1", "v2", future, time.Time{}, "not yet effective")

	// A date inside the future window resolves to the currently effective
	// version when the future is excluded.
	got, err := s.ResolveAsOf(context.Background(), "r1", future.AddDate(0, 1, 0), false)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "v1" {
		t.Errorf("resolved %s, want v1", got.ID)
	}

	got, err = s.ResolveAsOf(context.Background(), "r1", future.AddDate(0, 1, 0), true)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "v2" {
		t.Errorf("with includeFuture resolved %s, want v2", got.ID)
	}
}

func TestVersionAddedAuditEntries(t *testing.T) {
	s := testStore(t)
	insertRef(t, s, "r1")
	putVersion(t, s, "r1", "v1", date(2020, 1, 1), time.Time{}, "a")
	putVersion(t, s, "r1", "v2", date(2022, 1, 1), time.Time{}, "b")

	trail, err := s.AuditTrail(context.Background(), "r1")
	if err != nil {
		t.Fatal(err)
	}
	var added int
	for _, e := range trail {
		if e.Action == "version_added" {
			added++
		}
	}
	if added != 2 {
		t.Errorf("version_added entries = %d, want 2", added)
	}
}
