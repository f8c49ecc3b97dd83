// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store implements the temporal store: durable, queryable storage of
// references, versions, and pinpoints with correct as-of reconstruction,
// plus the job records for the acquisition, cleaning, and ingestion stages.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/reference-engine/pkg/types"
)

const dbFile = "references.db"

// Store manages the reference-engine SQLite database.
type Store struct {
	db         *sql.DB
	maxResults int
	recency    time.Duration

	// now is the clock used to decide whether future-dated versions are
	// effective yet. Tests substitute a fixed time.
	now func() time.Time
}

// Open opens or creates the database at cfg.StoreDir/references.db and
// creates the schema if it does not exist.
func Open(cfg types.StoreConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.StoreDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	dbPath := filepath.Join(cfg.StoreDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}
	recency := cfg.RecencyBiasWindow
	if recency <= 0 {
		recency = 2 * 365 * 24 * time.Hour
	}

	s := &Store{
		db:         db,
		maxResults: maxResults,
		recency:    recency,
		now:        time.Now,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		// "references" is an SQL keyword; the canonical table is "refs".
		`CREATE TABLE IF NOT EXISTS refs (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			category TEXT,
			source_url TEXT,
			url_valid INTEGER NOT NULL DEFAULT 1,
			body TEXT,
			published_at TEXT,
			current_text TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_refs_title_type ON refs(title, type)`,
		`CREATE INDEX IF NOT EXISTS idx_refs_type ON refs(type)`,
		`CREATE TABLE IF NOT EXISTS versions (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			reference_id TEXT NOT NULL REFERENCES refs(id),
			effective_start TEXT NOT NULL,
			effective_end TEXT,
			change_summary TEXT,
			content TEXT,
			supersedes TEXT,
			amends TEXT,
			UNIQUE(reference_id, effective_start)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_versions_ref_start ON versions(reference_id, effective_start)`,
		`CREATE INDEX IF NOT EXISTS idx_versions_start ON versions(effective_start)`,
		`CREATE TABLE IF NOT EXISTS pinpoints (
			id TEXT PRIMARY KEY,
			reference_id TEXT NOT NULL REFERENCES refs(id),
			version_id TEXT NOT NULL REFERENCES versions(id),
			path TEXT NOT NULL,
			excerpt TEXT,
			context TEXT,
			UNIQUE(version_id, path)
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			reference_id TEXT,
			action TEXT NOT NULL,
			detail TEXT,
			at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS review_queue (
			id TEXT PRIMARY KEY,
			doc_id TEXT NOT NULL,
			title TEXT,
			guessed_type TEXT,
			confidence REAL,
			reason TEXT,
			queued_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ingestion_jobs (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			outcomes TEXT,
			started_at TEXT,
			finished_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS scraping_jobs (
			id TEXT PRIMARY KEY,
			source_url TEXT NOT NULL,
			status TEXT NOT NULL,
			attempts TEXT,
			target_dir TEXT,
			type_hint TEXT,
			content_path TEXT,
			transcript_path TEXT,
			remediation TEXT,
			retry_count INTEGER NOT NULL DEFAULT 0,
			last_attempt_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS cleaning_jobs (
			id TEXT PRIMARY KEY,
			source_doc TEXT NOT NULL,
			operations TEXT,
			chunk_config TEXT,
			chunk_count INTEGER NOT NULL DEFAULT 0,
			started_at TEXT,
			finished_at TEXT
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table over reference title and current text, with
	// triggers keeping it in sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='refs_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE refs_fts USING fts5(id UNINDEXED, title, content)`,
			`CREATE TRIGGER refs_ai AFTER INSERT ON refs BEGIN
				INSERT INTO refs_fts(id, title, content) VALUES (new.id, new.title, new.current_text);
			END`,
			`CREATE TRIGGER refs_ad AFTER DELETE ON refs BEGIN
				DELETE FROM refs_fts WHERE id = old.id;
			END`,
			`CREATE TRIGGER refs_au AFTER UPDATE ON refs BEGIN
				DELETE FROM refs_fts WHERE id = old.id;
				INSERT INTO refs_fts(id, title, content) VALUES (new.id, new.title, new.current_text);
			END`,
			// Vocabulary view over the index, used for alternative keyword
			// suggestions when a search matches nothing.
			`CREATE VIRTUAL TABLE refs_vocab USING fts5vocab(refs_fts, 'row')`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// appendAudit records an audit entry inside an existing transaction.
func appendAudit(ctx context.Context, tx *sql.Tx, refID, action, detail string, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO audit_log (reference_id, action, detail, at) VALUES (?, ?, ?, ?)`,
		refID, action, detail, at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}
	return nil
}

// AuditEntry is one row of the append-only audit log.
type AuditEntry struct {
	Seq         int64
	ReferenceID string
	Action      string
	Detail      string
	At          time.Time
}

// AuditTrail returns the audit entries for a reference, oldest first.
func (s *Store) AuditTrail(ctx context.Context, refID string) ([]AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, reference_id, action, detail, at FROM audit_log
		 WHERE reference_id = ? ORDER BY seq`, refID)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var at string
		if err := rows.Scan(&e.Seq, &e.ReferenceID, &e.Action, &e.Detail, &at); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.At, _ = time.Parse(time.RFC3339Nano, at)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// timeToCol formats a time for storage; zero becomes NULL.
func timeToCol(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// colToTime parses a stored time column; NULL or empty becomes zero.
func colToTime(v sql.NullString) time.Time {
	if !v.Valid || v.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, v.String)
	if err != nil {
		return time.Time{}
	}
	return t
}
