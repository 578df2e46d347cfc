package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// UpsertNodeOnRegister implements spec.md §4.3's registration decision table.
// It fails with ErrRegistrationConflict when an existing row is live
// (heartbeat within freshness) and holds a different session token.
// Otherwise it inserts or overwrites the row, resets connected_at and sets
// status=booting.
func (s *Store) UpsertNodeOnRegister(ctx context.Context, hostname, sessionToken, version string, freshness time.Duration) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var existingToken string
	var lastHeartbeat time.Time
	err = tx.QueryRow(ctx, `SELECT session_token, last_heartbeat FROM nodes WHERE hostname = $1 FOR UPDATE`, hostname).
		Scan(&existingToken, &lastHeartbeat)

	now := time.Now().UTC()
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// No row: accept.
	case err != nil:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		live := now.Sub(lastHeartbeat) < freshness
		if live && existingToken != "" && existingToken != sessionToken {
			return ErrRegistrationConflict
		}
		// Stale, or token matches: fall through to accept/re-register.
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO nodes (hostname, session_token, version, status, command, last_heartbeat, connected_at)
		VALUES ($1, $2, $3, 'booting', 'idle', $4, $4)
		ON CONFLICT (hostname) DO UPDATE SET
			session_token = EXCLUDED.session_token,
			version       = EXCLUDED.version,
			status        = 'booting',
			last_heartbeat = EXCLUDED.last_heartbeat,
			connected_at   = EXCLUDED.connected_at
	`, hostname, sessionToken, version, now)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// ValidateSession checks a worker-supplied (hostname, session_token) pair
// against the stored session, per spec.md §4.3.
func (s *Store) ValidateSession(ctx context.Context, hostname, sessionToken string) error {
	if hostname == "" || sessionToken == "" {
		return ErrMissingSession
	}
	var stored string
	err := s.pool.QueryRow(ctx, `SELECT session_token FROM nodes WHERE hostname = $1`, hostname).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrSessionInvalid
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if stored != sessionToken {
		return ErrSessionInvalid
	}
	return nil
}

// HeartbeatFields are the columns a worker may update on every poll. Never
// touches session_token or connected_at.
type HeartbeatFields struct {
	Status        NodeStatus
	Progress      float64
	FPS           float64
	CurrentFile   string
	TotalDuration float64
	JobStartTime  *time.Time
}

// Heartbeat updates heartbeat columns only. Callers must have already
// validated the session.
func (s *Store) Heartbeat(ctx context.Context, hostname string, f HeartbeatFields) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE nodes SET
			last_heartbeat = now(),
			status         = $2,
			progress       = $3,
			fps            = $4,
			current_file   = $5,
			total_duration = $6,
			job_start_time = $7
		WHERE hostname = $1
	`, hostname, f.Status, f.Progress, f.FPS, f.CurrentFile, f.TotalDuration, f.JobStartTime)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// SetCommand sets the operator-issued command a worker will read on its next
// poll (start/stop/pause/resume/quit).
func (s *Store) SetCommand(ctx context.Context, hostname string, cmd NodeCommand) error {
	tag, err := s.pool.Exec(ctx, `UPDATE nodes SET command = $2 WHERE hostname = $1`, hostname, cmd)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteNode removes a node row entirely (used when an operator clears a
// quit worker; spec.md §9 open question resolved in DESIGN.md).
func (s *Store) DeleteNode(ctx context.Context, hostname string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM nodes WHERE hostname = $1`, hostname)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkOffline flips a node's status to offline without deleting the row.
func (s *Store) MarkOffline(ctx context.Context, hostname string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE nodes SET status = 'offline' WHERE hostname = $1`, hostname)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetNode fetches a single node by hostname.
func (s *Store) GetNode(ctx context.Context, hostname string) (Node, error) {
	row := s.pool.QueryRow(ctx, nodeSelectColumns+` WHERE hostname = $1`, hostname)
	n, err := scanNode(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Node{}, ErrNotFound
	}
	if err != nil {
		return Node{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n, nil
}

const nodeSelectColumns = `SELECT hostname, session_token, version, status, command, last_heartbeat, connected_at, progress, fps, current_file, total_duration, job_start_time FROM nodes`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (Node, error) {
	var n Node
	err := row.Scan(&n.Hostname, &n.SessionToken, &n.Version, &n.Status, &n.Command,
		&n.LastHeartbeat, &n.ConnectedAt, &n.Progress, &n.FPS, &n.CurrentFile,
		&n.TotalDuration, &n.JobStartTime)
	return n, err
}

// ListNodes returns every node ordered by hostname ascending (spec.md §4.1).
func (s *Store) ListNodes(ctx context.Context) ([]Node, error) {
	rows, err := s.pool.Query(ctx, nodeSelectColumns+` ORDER BY hostname ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// IsLive reports whether a node's last heartbeat is within freshness of now.
func IsLive(n Node, freshness time.Duration) bool {
	return time.Since(n.LastHeartbeat) < freshness
}
