package store

import "errors"

// Sentinel errors form the sum-typed results the business layer branches on
// (spec.md §9 "Exceptions for control flow" → sum-typed results).
var (
	// ErrRegistrationConflict is returned by UpsertNodeOnRegister when a live
	// node already holds a different session token for the same hostname.
	ErrRegistrationConflict = errors.New("store: registration conflict")

	// ErrSessionInvalid is returned when a worker's (hostname, session_token)
	// pair does not match the stored session.
	ErrSessionInvalid = errors.New("store: session invalid")

	// ErrMissingSession is returned when a worker call omits hostname or
	// session_token entirely.
	ErrMissingSession = errors.New("store: missing session")

	// ErrNotFound covers missing jobs, history rows, nodes, or backup files.
	ErrNotFound = errors.New("store: not found")

	// ErrQueueEmpty signals ClaimOneJob found no eligible job. Not an error
	// condition at the business layer; callers translate it to "no work".
	ErrQueueEmpty = errors.New("store: queue empty")

	// ErrUnavailable wraps transient database errors (connection, timeout).
	ErrUnavailable = errors.New("store: unavailable")
)
