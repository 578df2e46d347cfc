package scan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/librarrarian/dashboard/internal/settings"
	"github.com/librarrarian/dashboard/internal/store"
)

// errStopWalk unwinds filepath.WalkDir early on cancellation without
// surfacing a spurious error to the caller.
var errStopWalk = errors.New("scan: walk stopped by cancellation")

// transcodeExtensions is the fixed set of extensions the internal scanner
// walks (spec.md §4.5).
var transcodeExtensions = map[string]bool{
	".mkv": true, ".mp4": true, ".avi": true, ".mov": true,
	".wmv": true, ".flv": true, ".webm": true,
}

// candidate is one file discovered by a media scan, before the skip-set and
// duplicate checks are applied.
type candidate struct {
	Filepath string
	Codec    string
}

// skipSet returns the set of codecs a media scan treats as already-encoded,
// starting from {hevc,h265} and widening per the allow-reencode settings
// (spec.md §4.5).
func (o *Orchestrator) skipSet(ctx context.Context) map[string]bool {
	skip := map[string]bool{"hevc": true, "h265": true}
	if !o.settings.GetBool(ctx, settings.KeyAllowAV1, false) {
		skip["av1"] = true
	}
	if !o.settings.GetBool(ctx, settings.KeyAllowVP9, false) {
		skip["vp9"] = true
	}
	return skip
}

// MediaScan runs the internal-or-Plex discovery scan (spec.md §4.5). When
// force is true, existing Jobs/EncodedFile membership does not suppress a
// candidate — a manual trigger "forces full behaviour".
func (o *Orchestrator) MediaScan(ctx context.Context, force bool) error {
	scannerType := o.settings.GetString(ctx, settings.KeyMediaScannerType, "internal")
	src := SourceInternal
	if scannerType == "plex" {
		src = SourcePlex
	}

	return o.run(ctx, src, KindMedia, 0, func(ctx context.Context, publish func(int, string, float64)) error {
		var candidates []candidate
		var err error
		if src == SourcePlex {
			candidates, err = o.plexCandidates(ctx)
		} else {
			candidates, err = o.internalCandidates(ctx)
		}
		if err != nil {
			return err
		}

		skip := o.skipSet(ctx)
		total := len(candidates)
		inserted := 0
		for i, c := range candidates {
			if o.cancelled() {
				break
			}
			publish(i+1, c.Filepath, float64(i+1)/float64(max(total, 1))*100)

			codec := strings.ToLower(c.Codec)
			if skip[codec] {
				continue
			}
			if !force {
				if exists, err := o.store.HasJob(ctx, c.Filepath); err == nil && exists {
					continue
				}
				if done, err := o.store.HasEncodedHistory(ctx, c.Filepath); err == nil && done {
					continue
				}
			}
			if err := o.store.InsertJob(ctx, c.Filepath, store.JobTranscode, store.JobPending, nil); err != nil {
				return err
			}
			inserted++
		}
		publish(total, fmt.Sprintf("inserted %d transcode jobs", inserted), 100)
		return nil
	})
}

// internalCandidates walks the configured scan paths under the media root,
// probing each eligible file's video codec with ffprobe (spec.md §4.5).
func (o *Orchestrator) internalCandidates(ctx context.Context) ([]candidate, error) {
	rootsRaw := o.settings.GetString(ctx, settings.KeyInternalScanPaths, "")
	var out []candidate
	for _, root := range strings.Split(rootsRaw, ",") {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // unreadable entries are skipped, not fatal
			}
			if o.cancelled() {
				return errStopWalk
			}
			if d.IsDir() {
				return nil
			}
			if !transcodeExtensions[strings.ToLower(filepath.Ext(path))] {
				return nil
			}
			codec, err := probeCodec(ctx, path)
			if err != nil {
				return nil // unreadable/unsupported files are skipped, not fatal
			}
			out = append(out, candidate{Filepath: path, Codec: codec})
			return nil
		})
		if err != nil && !errors.Is(err, errStopWalk) {
			return nil, err
		}
	}
	return out, nil
}

// plexCandidates enumerates every monitored Plex library's media, deriving
// each item's on-disk path and primary codec (spec.md §4.5).
func (o *Orchestrator) plexCandidates(ctx context.Context) ([]candidate, error) {
	if o.plex == nil {
		return nil, fmt.Errorf("media_scanner_type=plex but no Plex connection is configured")
	}
	libraries, err := o.plex.ListLibraries(ctx)
	if err != nil {
		return nil, err
	}
	var out []candidate
	for _, lib := range libraries {
		items, err := o.plex.LibraryMedia(ctx, lib.Key)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if item.FilePath == "" {
				continue
			}
			out = append(out, candidate{Filepath: item.FilePath, Codec: item.Codec})
		}
	}
	return out, nil
}

// probeCodec shells out to ffprobe to read a file's primary video codec,
// mirroring the worker-side probing idiom.
func probeCodec(ctx context.Context, path string) (string, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_name",
		"-of", "json",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	var parsed struct {
		Streams []struct {
			CodecName string `json:"codec_name"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(out, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Streams) == 0 {
		return "", fmt.Errorf("no video stream in %s", path)
	}
	return parsed.Streams[0].CodecName, nil
}
