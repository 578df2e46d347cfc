// Package backup implements BackupScheduler (spec.md §4, §6): a daily
// pg_dump-style snapshot of the exportable tables, written atomically and
// pruned by a retention window.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/renameio/v2"

	"github.com/librarrarian/dashboard/internal/log"
	"github.com/librarrarian/dashboard/internal/settings"
	"github.com/librarrarian/dashboard/internal/store"
)

// filenameLayout matches spec.md §6's "timestamped dumps
// YYYYMMDD.HHMMSS.tar.gz".
const filenameLayout = "20060102.150405"

// DefaultRetentionDays is used when the setting is unset or invalid
// (spec.md §8 "non-integer defaults to 7").
const DefaultRetentionDays = 7

// Scheduler runs a daily snapshot and prunes old backups to the configured
// retention window.
type Scheduler struct {
	store    *store.Store
	settings *settings.Accessor
	dir      string
}

func New(st *store.Store, acc *settings.Accessor, dir string) *Scheduler {
	return &Scheduler{store: st, settings: acc, dir: dir}
}

// Run loops once per day, snapshotting and pruning, until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := log.WithComponent("backup-scheduler")
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				logger.Error().Err(err).Msg("scheduled backup failed")
			}
		}
	}
}

// RunOnce snapshots the current exportable state to a timestamped tarball
// and prunes anything beyond the retention window.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("backup: create directory: %w", err)
	}

	doc, err := s.store.Export(ctx)
	if err != nil {
		return fmt.Errorf("backup: export: %w", err)
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("backup: marshal export: %w", err)
	}

	name := time.Now().UTC().Format(filenameLayout) + ".tar.gz"
	path := filepath.Join(s.dir, name)
	if err := writeTarballAtomic(path, "export.json", raw); err != nil {
		return fmt.Errorf("backup: write %s: %w", name, err)
	}

	return s.prune(ctx)
}

// writeTarballAtomic builds a single-entry gzip-compressed tar archive and
// commits it with renameio's fsync-then-rename, so a crash mid-write never
// leaves a torn backup file (grounded on the teacher's renameio usage).
func writeTarballAtomic(path, entryName string, content []byte) error {
	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return err
	}
	defer func() { _ = pending.Cleanup() }()

	gz := gzip.NewWriter(pending)
	tw := tar.NewWriter(gz)

	if err := tw.WriteHeader(&tar.Header{
		Name: entryName,
		Mode: 0o644,
		Size: int64(len(content)),
	}); err != nil {
		return err
	}
	if _, err := tw.Write(content); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}

	return pending.CloseAtomicallyReplace()
}

// RetentionDays returns the clamped retention window (spec.md §8:
// "<1 clamp to 1; >365 clamp to 365; non-integer defaults to 7").
func (s *Scheduler) RetentionDays(ctx context.Context) int {
	return clampRetentionDays(s.settings.GetInt(ctx, settings.KeyBackupRetentionDays, DefaultRetentionDays))
}

// clampRetentionDays applies spec.md §8's boundary rule to an already
// integer-parsed days value (settings.Accessor.GetInt already falls back to
// DefaultRetentionDays for anything non-integer).
func clampRetentionDays(days int) int {
	if days < 1 {
		return 1
	}
	if days > 365 {
		return 365
	}
	return days
}

func (s *Scheduler) prune(ctx context.Context) error {
	retention := s.RetentionDays(ctx)
	files, err := s.List()
	if err != nil {
		return err
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retention)
	for _, f := range files {
		if f.CreatedAt.Before(cutoff) {
			if err := os.Remove(filepath.Join(s.dir, f.Name)); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
	}
	return nil
}

// File describes one backup tarball.
type File struct {
	Name      string
	CreatedAt time.Time
	SizeBytes int64
}

// List returns every backup file, newest first.
func (s *Scheduler) List() ([]File, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []File
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".tar.gz") {
			continue
		}
		ts, ok := parseTimestamp(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, File{Name: e.Name(), CreatedAt: ts, SizeBytes: info.Size()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Delete removes a single named backup file, rejecting any name that is not
// a plain basename produced by RunOnce (defense against path traversal via
// an operator-supplied filename).
func (s *Scheduler) Delete(name string) error {
	if filepath.Base(name) != name {
		return fmt.Errorf("backup: invalid file name %q", name)
	}
	return os.Remove(filepath.Join(s.dir, name))
}

// Path returns the absolute path of a named backup, for the download
// endpoint. Same traversal guard as Delete.
func (s *Scheduler) Path(name string) (string, error) {
	if filepath.Base(name) != name {
		return "", fmt.Errorf("backup: invalid file name %q", name)
	}
	return filepath.Join(s.dir, name), nil
}

func parseTimestamp(name string) (time.Time, bool) {
	base := strings.TrimSuffix(name, ".tar.gz")
	t, err := time.Parse(filenameLayout, base)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
