package api

import (
	"context"
	"errors"
)

// errNotConfigured is returned by handleProviderTest when the requested
// provider has no client wired (no base URL/API key configured).
var errNotConfigured = errors.New("provider not configured")

// detachedContext returns a background context for scan triggers: the
// handler that starts a scan returns immediately, so the scan must not be
// tied to that request's context (spec.md §4.5 — scans run to completion
// independent of the triggering HTTP call).
func detachedContext() context.Context {
	return context.Background()
}
