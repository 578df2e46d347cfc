// SPDX-License-Identifier: MIT

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Dispatch observability keys (frozen).
const (
	AttrDispatchOutcome = "dashboard.dispatch.outcome"
	AttrDispatchJobType = "dashboard.dispatch.job_type"
	AttrDispatchWorker  = "dashboard.dispatch.worker"
)

// Dispatch outcomes.
const (
	DispatchClaimed = "claimed"
	DispatchEmpty   = "empty"
	DispatchPaused  = "paused"
	DispatchError   = "error"
)

// EmitDispatchObs records one job-dispatch decision: it sets attributes on
// the current span and bumps the dispatch counter. The meter provider is
// looked up at call time, never rebound at init, so a provider installed
// after package load is still honoured.
func EmitDispatchObs(ctx context.Context, worker, jobType, outcome string) {
	span := trace.SpanFromContext(ctx)

	meter := otel.GetMeterProvider().Meter("dashboard.dispatch")

	dispatchTotal, _ := meter.Int64Counter("dashboard_dispatch_total",
		metric.WithDescription("Total job dispatch decisions"))
	dispatchTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("job_type", jobType),
	))

	span.SetAttributes(
		attribute.String(AttrDispatchOutcome, outcome),
		attribute.String(AttrDispatchJobType, jobType),
		attribute.String(AttrDispatchWorker, worker),
	)
}
