// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/pdiddy/reference-engine/pkg/types"
)

// PutVersion inserts a version for a reference and re-links neighboring
// effective windows so that versions stay strictly ordered and
// non-overlapping. The read-close-insert sequence runs in one transaction,
// the sole point in the store requiring atomicity against concurrent
// writers on the same reference.
//
// Linking rules, applied before validation:
//   - an existing open version starting before the new one is closed at the
//     new version's effective start (half-open windows make them adjacent);
//   - a new open-ended version inserted before an existing later version is
//     closed at that version's effective start.
//
// Writes that would still overlap after re-linking are rejected with a
// ValidationError, never coerced.
func (s *Store) PutVersion(ctx context.Context, refID string, v *types.ReferenceVersion) error {
	if err := validateVersion(refID, v); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT count(*) FROM refs WHERE id = ?`, refID).Scan(&exists); err != nil {
		return fmt.Errorf("checking reference: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("reference %s: %w", refID, ErrNotFound)
	}

	existing, err := loadVersionsTx(ctx, tx, refID)
	if err != nil {
		return err
	}

	// Close the open predecessor at the new start.
	var closedPred *types.ReferenceVersion
	for i := range existing {
		ev := &existing[i]
		if ev.Open() && ev.EffectiveStart.Before(v.EffectiveStart) {
			if _, err := tx.ExecContext(ctx,
				`UPDATE versions SET effective_end = ? WHERE id = ?`,
				timeToCol(v.EffectiveStart), ev.ID); err != nil {
				return fmt.Errorf("closing version %s: %w", ev.ID, err)
			}
			ev.EffectiveEnd = v.EffectiveStart
			closedPred = ev
		}
	}

	// A historical insert before a later version gets closed at that
	// version's start.
	if v.Open() {
		for i := range existing {
			ev := existing[i]
			if ev.EffectiveStart.After(v.EffectiveStart) {
				if v.EffectiveEnd.IsZero() || ev.EffectiveStart.Before(v.EffectiveEnd) {
					v.EffectiveEnd = ev.EffectiveStart
				}
			}
		}
	}

	for _, ev := range existing {
		if overlaps(ev, *v) {
			return &ValidationError{Reason: fmt.Sprintf(
				"version window [%s, %s) overlaps existing version %s [%s, %s)",
				fmtBound(v.EffectiveStart), fmtBound(v.EffectiveEnd),
				ev.ID, fmtBound(ev.EffectiveStart), fmtBound(ev.EffectiveEnd))}
		}
	}

	if len(v.Supersedes) == 0 && closedPred != nil {
		v.Supersedes = []string{closedPred.ID}
	}

	supersedes, _ := json.Marshal(v.Supersedes)
	amends, _ := json.Marshal(v.Amends)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO versions (id, reference_id, effective_start, effective_end, change_summary, content, supersedes, amends)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, refID, timeToCol(v.EffectiveStart), timeToCol(v.EffectiveEnd),
		v.ChangeSummary, v.Content, string(supersedes), string(amends))
	if err != nil {
		return fmt.Errorf("inserting version %s: %w", v.ID, err)
	}

	// Keep the canonical current_text aligned with the currently effective
	// version. Future-dated versions do not change it until they take effect.
	now := s.now()
	current := currentOf(append(existing, *v), now)
	if current != nil && current.ID == v.ID {
		if _, err := tx.ExecContext(ctx,
			`UPDATE refs SET current_text = ? WHERE id = ?`, v.Content, refID); err != nil {
			return fmt.Errorf("updating current text: %w", err)
		}
	}

	if err := appendAudit(ctx, tx, refID, "version_added",
		fmt.Sprintf("version=%s start=%s", v.ID, fmtBound(v.EffectiveStart)), now); err != nil {
		return err
	}

	return tx.Commit()
}

// ResolveAsOf returns the version of a reference effective on the given
// date. When includeFuture is false, versions not yet effective relative to
// the store clock are skipped; a date landing in such a window resolves to
// the most recent version that is effective, or fails.
//
// Dates outside the covered range fail with an OutOfRangeError naming the
// covered bounds.
func (s *Store) ResolveAsOf(ctx context.Context, refID string, date time.Time, includeFuture bool) (*types.ReferenceVersion, error) {
	versions, err := s.VersionHistory(ctx, refID)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("reference %s has no versions: %w", refID, ErrNotFound)
	}

	now := s.now()
	considered := versions
	if !includeFuture {
		considered = make([]types.ReferenceVersion, 0, len(versions))
		for _, v := range versions {
			if !v.EffectiveStart.After(now) {
				considered = append(considered, v)
			}
		}
	}

	earliest := versions[0].EffectiveStart
	latest := latestBound(versions)

	if len(considered) == 0 || date.Before(considered[0].EffectiveStart) {
		return nil, &OutOfRangeError{
			ReferenceID: refID, Requested: date,
			Bound: BeforeEarliest, Earliest: earliest, Latest: latest,
		}
	}

	for i := range considered {
		if considered[i].Contains(date) {
			v := considered[i]
			return &v, nil
		}
	}

	// The date falls past the considered windows. If the tail version is
	// closed only because a future-dated successor exists, the most recent
	// effective version still answers the query.
	tail := considered[len(considered)-1]
	if !includeFuture && !tail.Open() && !date.Before(tail.EffectiveEnd) {
		if hasFutureSuccessor(versions, tail, now) {
			v := tail
			return &v, nil
		}
	}

	return nil, &OutOfRangeError{
		ReferenceID: refID, Requested: date,
		Bound: AfterLatest, Earliest: earliest, Latest: latest,
	}
}

// VersionHistory returns all versions of a reference ordered by effective
// start, with supersedes/amends links populated.
func (s *Store) VersionHistory(ctx context.Context, refID string) ([]types.ReferenceVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, reference_id, effective_start, effective_end, change_summary, content, supersedes, amends
		 FROM versions WHERE reference_id = ? ORDER BY effective_start`, refID)
	if err != nil {
		return nil, fmt.Errorf("querying versions: %w", err)
	}
	defer rows.Close()

	var versions []types.ReferenceVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	return versions, rows.Err()
}

// GetVersion loads one version by its ID.
func (s *Store) GetVersion(ctx context.Context, versionID string) (*types.ReferenceVersion, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, reference_id, effective_start, effective_end, change_summary, content, supersedes, amends
		 FROM versions WHERE id = ?`, versionID)
	v, err := scanVersion(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("version %s: %w", versionID, ErrNotFound)
	}
	return v, err
}

func validateVersion(refID string, v *types.ReferenceVersion) error {
	var missing []string
	if v.ID == "" {
		missing = append(missing, "id")
	}
	if refID == "" {
		missing = append(missing, "reference_id")
	}
	if v.EffectiveStart.IsZero() {
		missing = append(missing, "effective_start")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	if !v.EffectiveEnd.IsZero() && !v.EffectiveEnd.After(v.EffectiveStart) {
		return &ValidationError{Reason: "effective_end must be after effective_start"}
	}
	return nil
}

// overlaps reports whether two half-open windows intersect. An open end is
// treated as unbounded.
func overlaps(a, b types.ReferenceVersion) bool {
	aEndsBeforeB := !a.Open() && !a.EffectiveEnd.After(b.EffectiveStart)
	bEndsBeforeA := !b.Open() && !b.EffectiveEnd.After(a.EffectiveStart)
	return !aEndsBeforeB && !bEndsBeforeA
}

// currentOf returns the version effective at t, or nil.
func currentOf(versions []types.ReferenceVersion, t time.Time) *types.ReferenceVersion {
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].EffectiveStart.Before(versions[j].EffectiveStart)
	})
	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i].Contains(t) {
			return &versions[i]
		}
	}
	return nil
}

// latestBound returns the end of the covered range: the latest closed end,
// or the latest start when an open version exists.
func latestBound(versions []types.ReferenceVersion) time.Time {
	latest := versions[len(versions)-1]
	if latest.Open() {
		return latest.EffectiveStart
	}
	return latest.EffectiveEnd
}

// hasFutureSuccessor reports whether v was closed by a version that is not
// yet effective at now.
func hasFutureSuccessor(versions []types.ReferenceVersion, v types.ReferenceVersion, now time.Time) bool {
	for _, other := range versions {
		if other.EffectiveStart.Equal(v.EffectiveEnd) && other.EffectiveStart.After(now) {
			return true
		}
	}
	return false
}

func fmtBound(t time.Time) string {
	if t.IsZero() {
		return "open"
	}
	return t.Format("2006-01-02")
}

// loadVersionsTx reads a reference's versions inside the PutVersion
// transaction so re-linking sees a consistent snapshot.
func loadVersionsTx(ctx context.Context, tx *sql.Tx, refID string) ([]types.ReferenceVersion, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, reference_id, effective_start, effective_end, change_summary, content, supersedes, amends
		 FROM versions WHERE reference_id = ? ORDER BY effective_start`, refID)
	if err != nil {
		return nil, fmt.Errorf("querying versions: %w", err)
	}
	defer rows.Close()

	var versions []types.ReferenceVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	return versions, rows.Err()
}

func scanVersion(sc scanner) (*types.ReferenceVersion, error) {
	var (
		v          types.ReferenceVersion
		start      sql.NullString
		end        sql.NullString
		summary    sql.NullString
		content    sql.NullString
		supersedes sql.NullString
		amends     sql.NullString
	)
	err := sc.Scan(&v.ID, &v.ReferenceID, &start, &end, &summary, &content, &supersedes, &amends)
	if err != nil {
		return nil, err
	}
	v.EffectiveStart = colToTime(start)
	v.EffectiveEnd = colToTime(end)
	v.ChangeSummary = summary.String
	v.Content = content.String
	if supersedes.Valid && supersedes.String != "" {
		json.Unmarshal([]byte(supersedes.String), &v.Supersedes)
	}
	if amends.Valid && amends.String != "" {
		json.Unmarshal([]byte(amends.String), &v.Amends)
	}
	return &v, nil
}
