// Package session implements spec.md §4.3's SessionRegistry: at-most-one
// active worker per hostname, impostor rejection, and the validation every
// worker-authenticated endpoint requires.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/librarrarian/dashboard/internal/config"
	"github.com/librarrarian/dashboard/internal/store"
)

// Registry validates and records worker identities. It holds no state of
// its own beyond the freshness window; all identity state lives in Store.
type Registry struct {
	store     *store.Store
	freshness time.Duration
}

// New returns a Registry backed by st, using spec.md's 5-minute freshness
// window.
func New(st *store.Store) *Registry {
	return &Registry{store: st, freshness: config.HeartbeatFreshness}
}

// Register implements the registration decision table of spec.md §4.3.
func (r *Registry) Register(ctx context.Context, hostname, sessionToken, version string) error {
	return r.store.UpsertNodeOnRegister(ctx, hostname, sessionToken, version, r.freshness)
}

// Validate checks a worker-supplied (hostname, session_token) pair. It
// returns store.ErrMissingSession if either is empty and
// store.ErrSessionInvalid on mismatch, matching spec.md §4.3/§7.
func (r *Registry) Validate(ctx context.Context, hostname, sessionToken string) error {
	return r.store.ValidateSession(ctx, hostname, sessionToken)
}

// NewSessionToken generates a random 32-byte hex token, matching the shape a
// worker is expected to generate client-side (spec.md §4.3). Exposed for
// tests.
func NewSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
