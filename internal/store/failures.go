package store

import (
	"context"
	"fmt"
)

// ListFailures returns FailedFile rows newest first, plus any derived stuck
// jobs rendered as synthetic failures with job_type "stuck_job" (spec.md §8
// scenario 6).
func (s *Store) ListFailures(ctx context.Context, freshnessSeconds int64) ([]FailedFile, error) {
	out, err := s.listPersistedFailures(ctx)
	if err != nil {
		return nil, err
	}

	stuck, err := s.ListStuckJobs(ctx, freshnessSeconds)
	if err != nil {
		return nil, err
	}
	for _, sj := range stuck {
		out = append(out, FailedFile{
			ID:       -sj.ID, // negative id marks a derived, non-persisted row
			Filepath: sj.Filepath,
			JobType:  "stuck_job",
			Reason:   fmt.Sprintf("worker %s claimed a later job (id > %d) without reporting a terminal status for this one", sj.WorkerHostname, sj.ID),
			FailedAt: sj.UpdatedAt,
		})
	}
	return out, nil
}

// ClearFailures deletes all FailedFile rows.
func (s *Store) ClearFailures(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM failed_files`)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
