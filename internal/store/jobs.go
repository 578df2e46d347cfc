package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const jobSelectColumns = `SELECT id, filepath, job_type, status, assigned_to, created_at, updated_at, metadata FROM jobs`

func scanJob(row rowScanner) (Job, error) {
	var j Job
	err := row.Scan(&j.ID, &j.Filepath, &j.JobType, &j.Status, &j.AssignedTo, &j.CreatedAt, &j.UpdatedAt, &j.Metadata)
	return j, err
}

// InsertJob creates a job. A unique-key collision on filepath is treated as
// "already present", not an error (spec.md §4.1, §8 idempotence invariant).
func (s *Store) InsertJob(ctx context.Context, filepath string, jobType JobType, status JobStatus, metadata []byte) error {
	if metadata == nil {
		metadata = []byte("{}")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO jobs (filepath, job_type, status, metadata)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (filepath) DO NOTHING
	`, filepath, jobType, status, metadata)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// ClaimOneJob atomically selects the single oldest eligible row — pending,
// not an internal job type — using SELECT ... FOR UPDATE SKIP LOCKED so
// concurrent claimants never block on or double-claim a row (spec.md §4.1,
// §4.4, §5 at-most-once dispatch). It never returns a job of an internal
// type, regardless of status (spec.md §8).
func (s *Store) ClaimOneJob(ctx context.Context, hostname string, pauseDispatch bool) (Job, error) {
	if pauseDispatch {
		return Job{}, ErrQueueEmpty
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Job{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		SELECT id, filepath, job_type, status, assigned_to, created_at, updated_at, metadata
		FROM jobs
		WHERE status = 'pending' AND job_type NOT IN ('Rename Job', 'Quality Mismatch')
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`)
	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, ErrQueueEmpty
	}
	if err != nil {
		return Job{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if _, err := tx.Exec(ctx, `UPDATE jobs SET status = 'encoding', assigned_to = $2, updated_at = now() WHERE id = $1`, j.ID, hostname); err != nil {
		return Job{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Job{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	j.Status = JobEncoding
	assigned := hostname
	j.AssignedTo = &assigned
	return j, nil
}

// ClaimOneInternalJob is ArrJobProcessor's equivalent of ClaimOneJob: it
// drains Rename Job / pending rows under the same SKIP LOCKED discipline,
// bypassing the global dispatch pause (internal jobs are not worker
// dispatch, spec.md §4.6).
func (s *Store) ClaimOneInternalJob(ctx context.Context) (Job, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Job{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		SELECT id, filepath, job_type, status, assigned_to, created_at, updated_at, metadata
		FROM jobs
		WHERE status = 'pending' AND job_type = 'Rename Job'
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`)
	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, ErrQueueEmpty
	}
	if err != nil {
		return Job{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if _, err := tx.Exec(ctx, `UPDATE jobs SET status = 'encoding', updated_at = now() WHERE id = $1`, j.ID); err != nil {
		return Job{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Job{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	j.Status = JobEncoding
	return j, nil
}

// CompletionResult carries the worker-reported sizes for a terminal
// transcode/cleanup update (spec.md §6).
type CompletionResult struct {
	Worker       string
	OriginalSize int64
	NewSize      int64
}

// CompleteJob implements spec.md §4.4's completion contract: a transcode
// completion appends an EncodedFile row with sizes and removes the job; a
// cleanup completion appends a zero-size EncodedFile row and removes the
// job. A second call on a missing job returns ErrNotFound, not an error on
// the business layer (spec.md §4.1 idempotence).
func (s *Store) CompleteJob(ctx context.Context, jobID int64, result CompletionResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var filepath string
	err = tx.QueryRow(ctx, `SELECT filepath FROM jobs WHERE id = $1 AND status = 'encoding' FOR UPDATE`, jobID).Scan(&filepath)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO encoded_files (filepath, original_size, new_size, worker)
		VALUES ($1, $2, $3, $4)
	`, filepath, result.OriginalSize, result.NewSize, result.Worker); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, jobID); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return commitOrUnavailable(ctx, tx)
}

// CompleteInternalJob marks an internal job (Rename Job, Quality Mismatch)
// as completed in place; internal jobs are never deleted on success, only on
// explicit operator action (spec.md §4.4, §4.6).
func (s *Store) CompleteInternalJob(ctx context.Context, jobID int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE jobs SET status = 'completed', updated_at = now() WHERE id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FailJob implements spec.md §4.4: any failed update appends a FailedFile
// row and marks the job failed (kept, not deleted, so operators can
// requeue).
func (s *Store) FailJob(ctx context.Context, jobID int64, reason, logText string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var filepath string
	var jobType JobType
	err = tx.QueryRow(ctx, `SELECT filepath, job_type FROM jobs WHERE id = $1 FOR UPDATE`, jobID).Scan(&filepath, &jobType)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO failed_files (filepath, job_type, reason, log)
		VALUES ($1, $2, $3, $4)
	`, filepath, jobType, reason, logText); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if _, err := tx.Exec(ctx, `UPDATE jobs SET status = 'failed', updated_at = now() WHERE id = $1`, jobID); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return commitOrUnavailable(ctx, tx)
}

// Requeue resets a failed or orphaned job to pending, clearing assigned_to
// and bumping updated_at (spec.md §4.4). The stored failure log is left in
// place for audit (DESIGN.md open-question decision).
func (s *Store) Requeue(ctx context.Context, jobID int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = 'pending', assigned_to = NULL, updated_at = now()
		WHERE id = $1
	`, jobID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteJob removes a job row outright (operator "delete" action).
func (s *Store) DeleteJob(ctx context.Context, jobID int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearQueue deletes all pending jobs plus all jobs of internal types
// regardless of status (spec.md §4.4 — they are cheap to recompute).
func (s *Store) ClearQueue(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM jobs
		WHERE status = 'pending' OR job_type IN ('Rename Job', 'Quality Mismatch')
	`)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return tag.RowsAffected(), nil
}

// GetJob fetches a single job by id.
func (s *Store) GetJob(ctx context.Context, jobID int64) (Job, error) {
	row := s.pool.QueryRow(ctx, jobSelectColumns+` WHERE id = $1`, jobID)
	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return j, nil
}

// ListJobs returns a page of jobs ordered by spec.md §4.1's custom priority:
// encoding(1) < pending(2) < failed(3) < other(4), then created_at desc.
func (s *Store) ListJobs(ctx context.Context, filter JobFilter, page Page) ([]Job, error) {
	query := jobSelectColumns + `
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::text IS NULL OR job_type = $2)
		ORDER BY
			CASE status
				WHEN 'encoding' THEN 1
				WHEN 'pending'  THEN 2
				WHEN 'failed'   THEN 3
				ELSE 4
			END,
			created_at DESC
		OFFSET $3 LIMIT $4
	`
	var statusArg, typeArg *string
	if filter.Status != nil {
		v := string(*filter.Status)
		statusArg = &v
	}
	if filter.JobType != nil {
		v := string(*filter.JobType)
		typeArg = &v
	}
	limit := page.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, query, statusArg, typeArg, page.Offset, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// StuckJob describes an encoding job whose assigned, live worker has moved
// on to a later job without reporting a terminal status (spec.md §4.4,
// Glossary "Stuck job").
type StuckJob struct {
	Job
	WorkerHostname string
}

// ListStuckJobs derives stuck jobs: status=encoding, assigned_to has a fresh
// heartbeat, and that worker holds at least one other encoding job with a
// larger id.
func (s *Store) ListStuckJobs(ctx context.Context, freshness int64) ([]StuckJob, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT j.id, j.filepath, j.job_type, j.status, j.assigned_to, j.created_at, j.updated_at, j.metadata
		FROM jobs j
		JOIN nodes n ON n.hostname = j.assigned_to
		WHERE j.status = 'encoding'
		  AND now() - n.last_heartbeat < ($1 || ' seconds')::interval
		  AND EXISTS (
		      SELECT 1 FROM jobs j2
		      WHERE j2.assigned_to = j.assigned_to
		        AND j2.status = 'encoding'
		        AND j2.id > j.id
		  )
	`, freshness)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []StuckJob
	for rows.Next() {
		var sj StuckJob
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		sj.Job = j
		if j.AssignedTo != nil {
			sj.WorkerHostname = *j.AssignedTo
		}
		out = append(out, sj)
	}
	return out, rows.Err()
}

func commitOrUnavailable(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
