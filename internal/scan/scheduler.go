package scan

import (
	"context"
	"errors"
	"time"

	"github.com/librarrarian/dashboard/internal/log"
	"github.com/librarrarian/dashboard/internal/settings"
)

// RunMediaScanScheduler loops on rescan_delay_minutes, triggering a
// non-forced media scan each tick. A value of 0 disables the timer; manual
// triggers still work via MediaScan (spec.md §4.5 "A value of 0 disables
// the timer; only manual triggers start scans"). It returns when ctx is
// cancelled, matching the errgroup-supervised background task shape
// cmd/dashboard wires up.
func (o *Orchestrator) RunMediaScanScheduler(ctx context.Context) error {
	logger := log.WithComponent("scan-scheduler")
	for {
		delay := o.settings.GetDurationMinutes(ctx, settings.KeyScanIntervalMinutes, 0)
		if delay <= 0 {
			// Disabled: re-check periodically in case an operator enables it.
			delay = time.Minute
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		interval := o.settings.GetDurationMinutes(ctx, settings.KeyScanIntervalMinutes, 0)
		if interval <= 0 {
			continue
		}
		if err := o.MediaScan(ctx, false); err != nil && !errors.Is(err, ErrScanBusy) {
			logger.Error().Err(err).Msg("scheduled media scan failed")
		}
	}
}
