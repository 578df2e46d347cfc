// Package queue implements spec.md §4.4's JobQueue: worker-facing claim and
// completion semantics layered over the store's SKIP LOCKED primitives, plus
// the pause_job_distribution dispatch switch.
package queue

import (
	"context"
	"errors"

	"github.com/librarrarian/dashboard/internal/metrics"
	"github.com/librarrarian/dashboard/internal/posthook"
	"github.com/librarrarian/dashboard/internal/settings"
	"github.com/librarrarian/dashboard/internal/store"
	"github.com/librarrarian/dashboard/internal/telemetry"
)

// Queue is the business-layer job dispatcher. It knows about the global
// pause switch; the store itself does not.
type Queue struct {
	store    *store.Store
	settings *settings.Accessor
	hook     *posthook.Hook
}

// New returns a Queue backed by st. hook may be nil (no post-complete
// follow-up is fired, e.g. in tests); production wiring always supplies one.
func New(st *store.Store, acc *settings.Accessor, hook *posthook.Hook) *Queue {
	return &Queue{store: st, settings: acc, hook: hook}
}

// Claim hands the oldest eligible pending job to hostname, or
// store.ErrQueueEmpty when nothing is eligible or dispatch is paused
// (spec.md §4.4, §6 — request_job must not distinguish the two cases to the
// caller).
func (q *Queue) Claim(ctx context.Context, hostname string) (store.Job, error) {
	paused := q.settings.GetBool(ctx, settings.KeyPauseJobDistribution, false)
	job, err := q.store.ClaimOneJob(ctx, hostname, paused)
	switch {
	case err == nil:
		metrics.RecordJobClaimed(string(job.JobType))
		telemetry.EmitDispatchObs(ctx, hostname, string(job.JobType), telemetry.DispatchClaimed)
	case errors.Is(err, store.ErrQueueEmpty):
		outcome := telemetry.DispatchEmpty
		if paused {
			outcome = telemetry.DispatchPaused
		}
		telemetry.EmitDispatchObs(ctx, hostname, "", outcome)
	default:
		telemetry.EmitDispatchObs(ctx, hostname, "", telemetry.DispatchError)
	}
	return job, err
}

// Complete records a successful transcode or cleanup result. On a successful
// transcode completion it fires PostCompleteHook in the background
// (spec.md §4.7): best-effort, and never allowed to delay or fail this call.
func (q *Queue) Complete(ctx context.Context, jobID int64, result store.CompletionResult) error {
	job, jobErr := q.store.GetJob(ctx, jobID)
	if err := q.store.CompleteJob(ctx, jobID, result); err != nil {
		return err
	}
	if jobErr == nil {
		metrics.RecordJobCompleted(string(job.JobType))
		if q.hook != nil && job.JobType == store.JobTranscode {
			go q.hook.OnTranscodeCompleted(context.WithoutCancel(ctx), job.Filepath)
		}
	}
	return nil
}

// Fail records a terminal failure, keeping the job visible in the failures
// list for operator triage.
func (q *Queue) Fail(ctx context.Context, jobID int64, reason, logText string) error {
	job, jobErr := q.store.GetJob(ctx, jobID)
	if err := q.store.FailJob(ctx, jobID, reason, logText); err != nil {
		return err
	}
	if jobErr == nil {
		metrics.RecordJobFailed(string(job.JobType))
	}
	return nil
}

// Requeue resets a failed job back to pending.
func (q *Queue) Requeue(ctx context.Context, jobID int64) error {
	return q.store.Requeue(ctx, jobID)
}

// Delete removes a single job outright.
func (q *Queue) Delete(ctx context.Context, jobID int64) error {
	return q.store.DeleteJob(ctx, jobID)
}

// Clear empties the pending queue and all internal job rows, returning the
// number of rows removed.
func (q *Queue) Clear(ctx context.Context) (int64, error) {
	return q.store.ClearQueue(ctx)
}

// List returns a filtered, paged view of jobs in priority order.
func (q *Queue) List(ctx context.Context, filter store.JobFilter, page store.Page) ([]store.Job, error) {
	return q.store.ListJobs(ctx, filter, page)
}

// Get fetches a single job by id.
func (q *Queue) Get(ctx context.Context, jobID int64) (store.Job, error) {
	return q.store.GetJob(ctx, jobID)
}

// Enqueue inserts a new job, ignoring a duplicate filepath (idempotent,
// spec.md §4.1).
func (q *Queue) Enqueue(ctx context.Context, filepath string, jobType store.JobType, metadata []byte) error {
	return q.store.InsertJob(ctx, filepath, jobType, store.JobPending, metadata)
}

// Paused reports whether worker job distribution is currently paused.
func (q *Queue) Paused(ctx context.Context) bool {
	return q.settings.GetBool(ctx, settings.KeyPauseJobDistribution, false)
}

// SetPaused flips the global dispatch switch.
func (q *Queue) SetPaused(ctx context.Context, paused bool) error {
	return q.settings.PutBool(ctx, settings.KeyPauseJobDistribution, paused)
}
