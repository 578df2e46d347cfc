package store

import (
	"context"
	"fmt"
)

// ListHistory returns EncodedFile rows newest first.
func (s *Store) ListHistory(ctx context.Context) ([]EncodedFile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, filepath, original_size, new_size, worker, completed_at
		FROM encoded_files
		ORDER BY completed_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []EncodedFile
	for rows.Next() {
		var e EncodedFile
		if err := rows.Scan(&e.ID, &e.Filepath, &e.OriginalSize, &e.NewSize, &e.Worker, &e.CompletedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// HasEncodedHistory reports whether filepath already has a completed
// transcode/cleanup in history (spec.md §4.5 media-scan skip rule).
func (s *Store) HasEncodedHistory(ctx context.Context, filepath string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM encoded_files WHERE filepath = $1)`, filepath).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return exists, nil
}

// HasJob reports whether filepath is already present as a Job row,
// regardless of status (spec.md §4.5 media-scan skip rule).
func (s *Store) HasJob(ctx context.Context, filepath string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM jobs WHERE filepath = $1)`, filepath).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return exists, nil
}

// ClearHistory deletes all EncodedFile rows (operator "clear history").
func (s *Store) ClearHistory(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM encoded_files`)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
