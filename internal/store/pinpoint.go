// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pdiddy/reference-engine/pkg/types"
)

// PutPinpoints stores the pinpoints extracted for one version. Paths are
// unique within a version; a duplicate path rejects the whole batch.
func (s *Store) PutPinpoints(ctx context.Context, pins []types.Pinpoint) error {
	if len(pins) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO pinpoints (id, reference_id, version_id, path, excerpt, context)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range pins {
		if p.ID == "" || p.VersionID == "" || p.Path == "" {
			return &ValidationError{Missing: []string{"pinpoint id/version_id/path"}}
		}
		if _, err := stmt.ExecContext(ctx,
			p.ID, p.ReferenceID, p.VersionID, p.Path, p.Excerpt, p.Context); err != nil {
			return fmt.Errorf("inserting pinpoint %s (%s): %w", p.ID, p.Path, err)
		}
	}

	return tx.Commit()
}

// GetPinpoint resolves a pinpoint by reference and path. When the path
// appears in several versions, the one from the most recently effective
// version is returned.
func (s *Store) GetPinpoint(ctx context.Context, refID, path string) (*types.Pinpoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT p.id, p.reference_id, p.version_id, p.path, p.excerpt, p.context
		 FROM pinpoints p
		 JOIN versions v ON v.id = p.version_id
		 WHERE p.reference_id = ? AND p.path = ?
		 ORDER BY v.effective_start DESC LIMIT 1`, refID, path)
	p, err := scanPinpoint(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("pinpoint %s in %s: %w", path, refID, ErrNotFound)
	}
	return p, err
}

// GetPinpointByID loads one pinpoint by its ID.
func (s *Store) GetPinpointByID(ctx context.Context, id string) (*types.Pinpoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, reference_id, version_id, path, excerpt, context
		 FROM pinpoints WHERE id = ?`, id)
	p, err := scanPinpoint(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("pinpoint %s: %w", id, ErrNotFound)
	}
	return p, err
}

// VersionPinpoints returns all pinpoints of one version in path order.
func (s *Store) VersionPinpoints(ctx context.Context, versionID string) ([]types.Pinpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, reference_id, version_id, path, excerpt, context
		 FROM pinpoints WHERE version_id = ? ORDER BY path`, versionID)
	if err != nil {
		return nil, fmt.Errorf("querying pinpoints: %w", err)
	}
	defer rows.Close()

	var pins []types.Pinpoint
	for rows.Next() {
		p, err := scanPinpoint(rows)
		if err != nil {
			return nil, err
		}
		pins = append(pins, *p)
	}
	return pins, rows.Err()
}

func scanPinpoint(sc scanner) (*types.Pinpoint, error) {
	var (
		p       types.Pinpoint
		excerpt sql.NullString
		context sql.NullString
	)
	err := sc.Scan(&p.ID, &p.ReferenceID, &p.VersionID, &p.Path, &excerpt, &context)
	if err != nil {
		return nil, err
	}
	p.Excerpt = excerpt.String
	p.Context = context.String
	return &p, nil
}
