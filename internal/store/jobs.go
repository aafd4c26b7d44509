package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const jobColumns = "id, owner, state, range_start, range_end, chunks_total, chunks_done, imported, skipped, errors, message, started_at, finished_at"

func scanJob(scanner rowScanner) (*JobRecord, error) {
	var (
		job         JobRecord
		startRaw    string
		endRaw      string
		startedRaw  string
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(&job.ID, &job.Owner, &job.State, &startRaw, &endRaw, &job.ChunksTotal, &job.ChunksDone,
		&job.Imported, &job.Skipped, &job.Errors, &job.Message, &startedRaw, &finishedRaw); err != nil {
		return nil, err
	}
	job.RangeStart, _ = parseTimeString(startRaw)
	job.RangeEnd, _ = parseTimeString(endRaw)
	job.StartedAt, _ = parseTimeString(startedRaw)
	job.FinishedAt = parseNullTime(finishedRaw)
	return &job, nil
}

// SaveJob inserts or updates an import job history row.
func (s *Store) SaveJob(ctx context.Context, job JobRecord) error {
	var finished any
	if job.FinishedAt != nil {
		finished = formatTime(*job.FinishedAt)
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO import_jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			chunks_total = excluded.chunks_total,
			chunks_done = excluded.chunks_done,
			imported = excluded.imported,
			skipped = excluded.skipped,
			errors = excluded.errors,
			message = excluded.message,
			finished_at = excluded.finished_at`,
		job.ID, job.Owner, job.State, formatTime(job.RangeStart), formatTime(job.RangeEnd),
		job.ChunksTotal, job.ChunksDone, job.Imported, job.Skipped, job.Errors, job.Message,
		formatTime(job.StartedAt), finished,
	)
	if err != nil {
		return fmt.Errorf("save import job: %w", err)
	}
	return nil
}

// GetJob fetches a job history row by id.
func (s *Store) GetJob(ctx context.Context, id string) (*JobRecord, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM import_jobs WHERE id = ?", id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get import job: %w", err)
	}
	return job, nil
}

// ListJobs returns the most recent jobs first. An empty owner lists all
// owners; limit <= 0 means no limit.
func (s *Store) ListJobs(ctx context.Context, owner string, limit int) ([]JobRecord, error) {
	ctx = ensureContext(ctx)
	query := "SELECT " + jobColumns + " FROM import_jobs"
	var args []any
	if owner != "" {
		query += " WHERE owner = ?"
		args = append(args, owner)
	}
	query += " ORDER BY started_at DESC, id"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list import jobs: %w", err)
	}
	defer rows.Close()
	var jobs []JobRecord
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan import job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}
