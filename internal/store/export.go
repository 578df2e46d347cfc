package store

import (
	"context"
	"fmt"
)

// ExportDocument is the single JSON document spec.md §6 calls "data export".
// Round-tripping Export → wipe → Import reproduces Settings,
// MediaSourceType, Failures and EncodedFile contents, excluding generated
// ids (spec.md §8).
type ExportDocument struct {
	Settings         map[string]string `json:"settings"`
	MediaSourceTypes []MediaSourceType `json:"media_source_types"`
	Failures         []FailedFile      `json:"failures"`
	History          []EncodedFile     `json:"history"`
}

// Export snapshots the four exportable tables. Jobs and Nodes are
// deliberately excluded: they are live operational state, not configuration
// or audit history, and re-importing a stale queue would be unsafe.
func (s *Store) Export(ctx context.Context) (ExportDocument, error) {
	settings, err := s.AllSettings(ctx)
	if err != nil {
		return ExportDocument{}, err
	}
	sources, err := s.ListMediaSourceTypes(ctx)
	if err != nil {
		return ExportDocument{}, err
	}
	failures, err := s.listPersistedFailures(ctx)
	if err != nil {
		return ExportDocument{}, err
	}
	history, err := s.ListHistory(ctx)
	if err != nil {
		return ExportDocument{}, err
	}
	return ExportDocument{
		Settings:         settings,
		MediaSourceTypes: sources,
		Failures:         failures,
		History:          history,
	}, nil
}

// listPersistedFailures is ListFailures without the derived stuck-job rows,
// which must never be exported (they are not stored, and would re-import as
// phantom failures).
func (s *Store) listPersistedFailures(ctx context.Context) ([]FailedFile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, filepath, job_type, reason, log, failed_at
		FROM failed_files
		ORDER BY failed_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []FailedFile
	for rows.Next() {
		var f FailedFile
		if err := rows.Scan(&f.ID, &f.Filepath, &f.JobType, &f.Reason, &f.Log, &f.FailedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Import wipes and repopulates the four exportable tables from doc, inside a
// single transaction. Ids are regenerated; callers comparing round-trip
// equality must exclude them.
func (s *Store) Import(ctx context.Context, doc ExportDocument) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, stmt := range []string{
		`DELETE FROM settings`,
		`DELETE FROM media_source_types`,
		`DELETE FROM failed_files`,
		`DELETE FROM encoded_files`,
	} {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	for k, v := range doc.Settings {
		if _, err := tx.Exec(ctx, `INSERT INTO settings (key, value) VALUES ($1, $2)`, k, v); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	for _, m := range doc.MediaSourceTypes {
		if _, err := tx.Exec(ctx, `
			INSERT INTO media_source_types (source_name, scanner_type, media_type, is_hidden)
			VALUES ($1, $2, $3, $4)
		`, m.SourceName, m.ScannerType, m.MediaType, m.IsHidden); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	for _, f := range doc.Failures {
		if _, err := tx.Exec(ctx, `
			INSERT INTO failed_files (filepath, job_type, reason, log, failed_at)
			VALUES ($1, $2, $3, $4, $5)
		`, f.Filepath, f.JobType, f.Reason, f.Log, f.FailedAt); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	for _, h := range doc.History {
		if _, err := tx.Exec(ctx, `
			INSERT INTO encoded_files (filepath, original_size, new_size, worker, completed_at)
			VALUES ($1, $2, $3, $4, $5)
		`, h.Filepath, h.OriginalSize, h.NewSize, h.Worker, h.CompletedAt); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	return commitOrUnavailable(ctx, tx)
}
