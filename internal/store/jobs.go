// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pdiddy/reference-engine/pkg/types"
)

// SaveIngestionJob upserts an ingestion job record. Called once at creation
// and again as documents resolve; the job row is the source of truth for
// batch progress.
func (s *Store) SaveIngestionJob(ctx context.Context, job *types.IngestionJob) error {
	outcomes, _ := json.Marshal(job.Outcomes)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingestion_jobs (id, status, outcomes, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			status=excluded.status, outcomes=excluded.outcomes,
			started_at=excluded.started_at, finished_at=excluded.finished_at`,
		job.ID, string(job.Status), string(outcomes),
		timeToCol(job.StartedAt), timeToCol(job.FinishedAt))
	if err != nil {
		return fmt.Errorf("saving ingestion job %s: %w", job.ID, err)
	}
	return nil
}

// GetIngestionJob loads one ingestion job by ID.
func (s *Store) GetIngestionJob(ctx context.Context, id string) (*types.IngestionJob, error) {
	var (
		job      types.IngestionJob
		status   string
		outcomes sql.NullString
		started  sql.NullString
		finished sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, status, outcomes, started_at, finished_at FROM ingestion_jobs WHERE id = ?`, id,
	).Scan(&job.ID, &status, &outcomes, &started, &finished)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("ingestion job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading ingestion job: %w", err)
	}
	job.Status = types.JobStatus(status)
	if outcomes.Valid && outcomes.String != "" {
		json.Unmarshal([]byte(outcomes.String), &job.Outcomes)
	}
	job.StartedAt = colToTime(started)
	job.FinishedAt = colToTime(finished)
	return &job, nil
}

// ListIngestionJobs returns all ingestion jobs, newest first.
func (s *Store) ListIngestionJobs(ctx context.Context) ([]types.IngestionJob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM ingestion_jobs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing ingestion jobs: %w", err)
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

	jobs := make([]types.IngestionJob, 0, len(ids))
	for _, id := range ids {
		job, err := s.GetIngestionJob(ctx, id)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, nil
}

// SaveScrapingJob upserts a scraping job record. The acquisition loop calls
// this after every strategy attempt so the audit trail survives crashes
// mid-chain.
func (s *Store) SaveScrapingJob(ctx context.Context, job *types.ScrapingJob) error {
	attempts, _ := json.Marshal(job.Attempts)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scraping_jobs (id, source_url, status, attempts, target_dir, type_hint,
			content_path, transcript_path, remediation, retry_count, last_attempt_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			source_url=excluded.source_url, status=excluded.status, attempts=excluded.attempts,
			target_dir=excluded.target_dir, type_hint=excluded.type_hint,
			content_path=excluded.content_path, transcript_path=excluded.transcript_path,
			remediation=excluded.remediation, retry_count=excluded.retry_count,
			last_attempt_at=excluded.last_attempt_at`,
		job.ID, job.SourceURL, string(job.Status), string(attempts), job.TargetDir,
		job.TypeHint, job.ContentPath, job.TranscriptPath, job.Remediation,
		job.RetryCount, timeToCol(job.LastAttemptAt))
	if err != nil {
		return fmt.Errorf("saving scraping job %s: %w", job.ID, err)
	}
	return nil
}

// GetScrapingJob loads one scraping job by ID.
func (s *Store) GetScrapingJob(ctx context.Context, id string) (*types.ScrapingJob, error) {
	var (
		job         types.ScrapingJob
		status      string
		attempts    sql.NullString
		targetDir   sql.NullString
		typeHint    sql.NullString
		contentPath sql.NullString
		transcript  sql.NullString
		remediation sql.NullString
		lastAttempt sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source_url, status, attempts, target_dir, type_hint,
			content_path, transcript_path, remediation, retry_count, last_attempt_at
		 FROM scraping_jobs WHERE id = ?`, id,
	).Scan(&job.ID, &job.SourceURL, &status, &attempts, &targetDir, &typeHint,
		&contentPath, &transcript, &remediation, &job.RetryCount, &lastAttempt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("scraping job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading scraping job: %w", err)
	}
	job.Status = types.JobStatus(status)
	if attempts.Valid && attempts.String != "" {
		json.Unmarshal([]byte(attempts.String), &job.Attempts)
	}
	job.TargetDir = targetDir.String
	job.TypeHint = typeHint.String
	job.ContentPath = contentPath.String
	job.TranscriptPath = transcript.String
	job.Remediation = remediation.String
	job.LastAttemptAt = colToTime(lastAttempt)
	return &job, nil
}

// ListScrapingJobs returns scraping jobs filtered by status; an empty status
// returns all, newest attempt first.
func (s *Store) ListScrapingJobs(ctx context.Context, status types.JobStatus) ([]types.ScrapingJob, error) {
	query := `SELECT id FROM scraping_jobs`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY last_attempt_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing scraping jobs: %w", err)
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

	jobs := make([]types.ScrapingJob, 0, len(ids))
	for _, id := range ids {
		job, err := s.GetScrapingJob(ctx, id)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, nil
}

// SaveCleaningJob upserts a cleaning job record.
func (s *Store) SaveCleaningJob(ctx context.Context, job *types.CleaningJob) error {
	ops, _ := json.Marshal(job.Operations)
	cfg, _ := json.Marshal(job.ChunkConfig)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cleaning_jobs (id, source_doc, operations, chunk_config, chunk_count, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			source_doc=excluded.source_doc, operations=excluded.operations,
			chunk_config=excluded.chunk_config, chunk_count=excluded.chunk_count,
			started_at=excluded.started_at, finished_at=excluded.finished_at`,
		job.ID, job.SourceDoc, string(ops), string(cfg), job.ChunkCount,
		timeToCol(job.StartedAt), timeToCol(job.FinishedAt))
	if err != nil {
		return fmt.Errorf("saving cleaning job %s: %w", job.ID, err)
	}
	return nil
}

// GetCleaningJob loads one cleaning job by ID.
func (s *Store) GetCleaningJob(ctx context.Context, id string) (*types.CleaningJob, error) {
	var (
		job      types.CleaningJob
		ops      sql.NullString
		cfg      sql.NullString
		started  sql.NullString
		finished sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source_doc, operations, chunk_config, chunk_count, started_at, finished_at
		 FROM cleaning_jobs WHERE id = ?`, id,
	).Scan(&job.ID, &job.SourceDoc, &ops, &cfg, &job.ChunkCount, &started, &finished)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("cleaning job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading cleaning job: %w", err)
	}
	if ops.Valid && ops.String != "" {
		json.Unmarshal([]byte(ops.String), &job.Operations)
	}
	if cfg.Valid && cfg.String != "" {
		json.Unmarshal([]byte(cfg.String), &job.ChunkConfig)
	}
	job.StartedAt = colToTime(started)
	job.FinishedAt = colToTime(finished)
	return &job, nil
}

// JobCounts summarizes job rows per kind and status, for the derived
// progress report.
type JobCounts struct {
	Kind   string
	Status types.JobStatus
	Count  int
}

// CountJobs tallies every job table by status.
func (s *Store) CountJobs(ctx context.Context) ([]JobCounts, error) {
	var out []JobCounts
	for _, table := range []string{"scraping_jobs", "cleaning_jobs", "ingestion_jobs"} {
		query := fmt.Sprintf(`SELECT status, count(*) FROM %s GROUP BY status ORDER BY status`, table)
		// cleaning_jobs has no status column; completed rows are all there is.
		if table == "cleaning_jobs" {
			query = `SELECT 'completed', count(*) FROM cleaning_jobs`
		}
		rows, err := s.db.QueryContext(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("counting %s: %w", table, err)
		}
		for rows.Next() {
			var status string
			var count int
			if err := rows.Scan(&status, &count); err != nil {
				rows.Close()
				return nil, err
			}
			out = append(out, JobCounts{Kind: table, Status: types.JobStatus(status), Count: count})
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return out, nil
}

// EnqueueReview adds a low-confidence classification to the manual-review
// queue instead of auto-committing it.
func (s *Store) EnqueueReview(ctx context.Context, id, docID, title, guessedType string, confidence float64, reason string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO review_queue (id, doc_id, title, guessed_type, confidence, reason, queued_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, docID, title, guessedType, confidence, reason,
		s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("enqueueing review for %s: %w", docID, err)
	}
	return nil
}

// ReviewItem is one entry awaiting manual classification review.
type ReviewItem struct {
	ID          string
	DocID       string
	Title       string
	GuessedType string
	Confidence  float64
	Reason      string
	QueuedAt    time.Time
}

// PendingReviews lists the manual-review queue, oldest first.
func (s *Store) PendingReviews(ctx context.Context) ([]ReviewItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, doc_id, title, guessed_type, confidence, reason, queued_at
		 FROM review_queue ORDER BY queued_at`)
	if err != nil {
		return nil, fmt.Errorf("listing review queue: %w", err)
	}
	defer rows.Close()

	var items []ReviewItem
	for rows.Next() {
		var it ReviewItem
		var queued string
		if err := rows.Scan(&it.ID, &it.DocID, &it.Title, &it.GuessedType,
			&it.Confidence, &it.Reason, &queued); err != nil {
			return nil, err
		}
		it.QueuedAt, _ = time.Parse(time.RFC3339Nano, queued)
		items = append(items, it)
	}
	return items, rows.Err()
}
