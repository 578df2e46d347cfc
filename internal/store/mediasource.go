package store

import (
	"context"
	"fmt"
)

// UpsertMediaSourceType records (or updates) a scanned source's classification.
func (s *Store) UpsertMediaSourceType(ctx context.Context, m MediaSourceType) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO media_source_types (source_name, scanner_type, media_type, is_hidden)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source_name, scanner_type) DO UPDATE SET
			media_type = EXCLUDED.media_type,
			is_hidden  = EXCLUDED.is_hidden
	`, m.SourceName, m.ScannerType, m.MediaType, m.IsHidden)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// ListMediaSourceTypes returns every classified source.
func (s *Store) ListMediaSourceTypes(ctx context.Context) ([]MediaSourceType, error) {
	rows, err := s.pool.Query(ctx, `SELECT source_name, scanner_type, media_type, is_hidden FROM media_source_types`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []MediaSourceType
	for rows.Next() {
		var m MediaSourceType
		if err := rows.Scan(&m.SourceName, &m.ScannerType, &m.MediaType, &m.IsHidden); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
