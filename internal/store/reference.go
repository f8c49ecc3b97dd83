// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode"

	"github.com/pdiddy/reference-engine/pkg/types"
)

// InsertReference stores a new canonical reference. The ID must be set by
// the caller and is immutable thereafter.
func (s *Store) InsertReference(ctx context.Context, ref *types.Reference) error {
	if err := validateReference(ref); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO refs (id, type, title, category, source_url, url_valid, body, published_at, current_text)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ref.ID, string(ref.Type), ref.Title, ref.Category, ref.SourceURL,
		boolToInt(ref.URLValid), ref.Body, timeToCol(ref.PublishedAt), ref.CurrentText)
	if err != nil {
		return fmt.Errorf("inserting reference %s: %w", ref.ID, err)
	}

	if err := appendAudit(ctx, tx, ref.ID, "created",
		fmt.Sprintf("type=%s title=%q", ref.Type, ref.Title), s.now()); err != nil {
		return err
	}

	return tx.Commit()
}

// GetReference loads one reference by ID.
func (s *Store) GetReference(ctx context.Context, id string) (*types.Reference, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, type, title, category, source_url, url_valid, body, published_at, current_text
		 FROM refs WHERE id = ?`, id)
	ref, err := scanReference(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("reference %s: %w", id, ErrNotFound)
	}
	return ref, err
}

// FindByDedupKey returns references whose normalized title and type match
// the given dedup key, for duplicate detection at ingestion. Matching by
// effective-date family is the caller's concern.
func (s *Store) FindByDedupKey(ctx context.Context, title string, refType types.ReferenceType) ([]*types.Reference, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, title, category, source_url, url_valid, body, published_at, current_text
		 FROM refs WHERE type = ?`, string(refType))
	if err != nil {
		return nil, fmt.Errorf("querying by dedup key: %w", err)
	}
	defer rows.Close()

	want := NormalizeTitle(title)
	var matches []*types.Reference
	for rows.Next() {
		ref, err := scanReference(rows)
		if err != nil {
			return nil, err
		}
		if NormalizeTitle(ref.Title) == want {
			matches = append(matches, ref)
		}
	}
	return matches, rows.Err()
}

// MergeMetadata fills empty metadata fields of an existing reference from
// src and audits the merge. Non-empty stored fields win; merge is additive,
// never destructive.
func (s *Store) MergeMetadata(ctx context.Context, refID string, src *types.Reference) error {
	ref, err := s.GetReference(ctx, refID)
	if err != nil {
		return err
	}

	var filled []string
	if ref.Category == "" && src.Category != "" {
		ref.Category = src.Category
		filled = append(filled, "category")
	}
	if ref.SourceURL == "" && src.SourceURL != "" {
		ref.SourceURL = src.SourceURL
		ref.URLValid = true
		filled = append(filled, "source_url")
	}
	if ref.Body == "" && src.Body != "" {
		ref.Body = src.Body
		filled = append(filled, "body")
	}
	if ref.PublishedAt.IsZero() && !src.PublishedAt.IsZero() {
		ref.PublishedAt = src.PublishedAt
		filled = append(filled, "published_at")
	}
	if len(filled) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE refs SET category = ?, source_url = ?, url_valid = ?, body = ?, published_at = ?
		 WHERE id = ?`,
		ref.Category, ref.SourceURL, boolToInt(ref.URLValid), ref.Body,
		timeToCol(ref.PublishedAt), refID)
	if err != nil {
		return fmt.Errorf("merging metadata into %s: %w", refID, err)
	}

	if err := appendAudit(ctx, tx, refID, "metadata_merged",
		"filled: "+strings.Join(filled, ", "), s.now()); err != nil {
		return err
	}

	return tx.Commit()
}

// MarkURLInvalid flags the reference's source URL as dead. Content is
// retained and the reference remains visible to all queries; the change is
// recorded in the audit log.
func (s *Store) MarkURLInvalid(ctx context.Context, refID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE refs SET url_valid = 0 WHERE id = ?`, refID)
	if err != nil {
		return fmt.Errorf("marking URL invalid for %s: %w", refID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("reference %s: %w", refID, ErrNotFound)
	}

	if err := appendAudit(ctx, tx, refID, "url_marked_invalid", "", s.now()); err != nil {
		return err
	}

	return tx.Commit()
}

// ReferenceTypes returns the distinct types present in the store, for
// suggesting available filters on empty search results.
func (s *Store) ReferenceTypes(ctx context.Context) ([]types.ReferenceType, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT type FROM refs ORDER BY type`)
	if err != nil {
		return nil, fmt.Errorf("querying reference types: %w", err)
	}
	defer rows.Close()

	var out []types.ReferenceType
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scanning type: %w", err)
		}
		out = append(out, types.ReferenceType(t))
	}
	return out, rows.Err()
}

// NormalizeTitle lowercases a title and strips punctuation so dedup keys
// survive formatting differences between sources.
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func validateReference(ref *types.Reference) error {
	var missing []string
	if ref.ID == "" {
		missing = append(missing, "id")
	}
	if ref.Title == "" {
		missing = append(missing, "title")
	}
	if ref.Type == "" {
		missing = append(missing, "type")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	if !types.ValidReferenceType(ref.Type) {
		return &ValidationError{Reason: fmt.Sprintf("unknown reference type %q", ref.Type)}
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanReference(sc scanner) (*types.Reference, error) {
	var (
		ref       types.Reference
		refType   string
		category  sql.NullString
		sourceURL sql.NullString
		urlValid  int
		body      sql.NullString
		published sql.NullString
		current   sql.NullString
	)
	err := sc.Scan(&ref.ID, &refType, &ref.Title, &category, &sourceURL,
		&urlValid, &body, &published, &current)
	if err != nil {
		return nil, err
	}
	ref.Type = types.ReferenceType(refType)
	ref.Category = category.String
	ref.SourceURL = sourceURL.String
	ref.URLValid = urlValid != 0
	ref.Body = body.String
	ref.PublishedAt = colToTime(published)
	ref.CurrentText = current.String
	return &ref, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
