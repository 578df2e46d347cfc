package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/librarrarian/dashboard/internal/settings"
	"github.com/librarrarian/dashboard/internal/store"
)

// CleanupScan derives scan roots from the configured Plex libraries (with an
// optional host-path rewrite), walks them, and creates awaiting_approval
// cleanup jobs for stray `.lock` files and `tmp_`-prefixed files (spec.md
// §4.5). Awaiting-approval is the default so operators review before
// deletion.
func (o *Orchestrator) CleanupScan(ctx context.Context) error {
	roots, err := o.cleanupRoots(ctx)
	if err != nil {
		return err
	}

	return o.run(ctx, SourcePlex, KindMedia, 0, func(ctx context.Context, publish func(int, string, float64)) error {
		step := 0
		for _, root := range roots {
			err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return nil
				}
				if o.cancelled() {
					return errStopWalk
				}
				if d.IsDir() {
					return nil
				}
				name := d.Name()
				if !strings.HasSuffix(name, ".lock") && !strings.HasPrefix(name, "tmp_") {
					return nil
				}
				step++
				publish(step, path, 0)
				return o.store.InsertJob(ctx, path, store.JobCleanup, store.JobAwaitingApproval, nil)
			})
			if err != nil && !errors.Is(err, errStopWalk) {
				return err
			}
			if o.cancelled() {
				break
			}
		}
		return nil
	})
}

// cleanupRoots derives filesystem roots from the Plex library list, applying
// an optional host-path rewrite (spec.md §4.5 "with an optional host-path
// rewrite from/to").
func (o *Orchestrator) cleanupRoots(ctx context.Context) ([]string, error) {
	if o.plex == nil {
		return nil, fmt.Errorf("cleanup scan requires a Plex connection")
	}
	from := o.settings.GetString(ctx, settings.KeyCleanupPathRewriteFrom, "")
	to := o.settings.GetString(ctx, settings.KeyCleanupPathRewriteTo, "")

	libraries, err := o.plex.ListLibraries(ctx)
	if err != nil {
		return nil, err
	}
	var roots []string
	for _, lib := range libraries {
		items, err := o.plex.LibraryMedia(ctx, lib.Key)
		if err != nil {
			continue
		}
		for _, item := range items {
			dir := filepath.Dir(item.FilePath)
			if from != "" && strings.HasPrefix(dir, from) {
				dir = to + strings.TrimPrefix(dir, from)
			}
			roots = append(roots, dir)
		}
	}
	return dedupe(roots), nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
