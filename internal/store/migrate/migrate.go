// Package migrate applies the controller's ordered schema migrations,
// gated by a schema_version row (spec.md §4.2). A fresh database is
// initialised directly at the target version; an existing one replays only
// the migrations numbered above its current version. Migration failure is
// fatal: cmd/dashboard exits before opening the HTTP surface.
package migrate

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/librarrarian/dashboard/internal/log"
)

// Migration is one numbered, idempotent schema step.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// TargetVersion is the schema version a fresh database is initialised at.
func TargetVersion() int {
	return migrations[len(migrations)-1].Version
}

// Run applies every migration whose version exceeds the database's current
// schema_version, committing after each version bump. If schema_version is
// absent entirely this is a fresh database: every migration runs in one
// transaction and schema_version is set straight to the target version.
func Run(ctx context.Context, pool *pgxpool.Pool) error {
	logger := log.WithComponent("migrator")

	fresh, err := ensureVersionTable(ctx, pool)
	if err != nil {
		return fmt.Errorf("migrate: ensure schema_version: %w", err)
	}

	if fresh {
		logger.Info().Int("version", TargetVersion()).Msg("initialising fresh database at target schema version")
		return initFresh(ctx, pool)
	}

	current, err := currentVersion(ctx, pool)
	if err != nil {
		return fmt.Errorf("migrate: read schema_version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		logger.Info().Int("version", m.Version).Str("name", m.Name).Msg("applying migration")
		tx, err := pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("migrate: begin tx for v%d: %w", m.Version, err)
		}
		if _, err := tx.Exec(ctx, m.SQL); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("migrate: apply v%d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := tx.Exec(ctx, `UPDATE schema_version SET version = $1`, m.Version); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("migrate: bump schema_version to v%d: %w", m.Version, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("migrate: commit v%d: %w", m.Version, err)
		}
	}

	return nil
}

// ensureVersionTable creates the schema_version table if absent and reports
// whether the database was fresh (no prior row).
func ensureVersionTable(ctx context.Context, pool *pgxpool.Pool) (fresh bool, err error) {
	_, err = pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`)
	if err != nil {
		return false, err
	}
	var count int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM schema_version`).Scan(&count); err != nil {
		return false, err
	}
	if count == 0 {
		if _, err := pool.Exec(ctx, `INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func currentVersion(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var v int
	if err := pool.QueryRow(ctx, `SELECT version FROM schema_version`).Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}

// initFresh runs the SQL of every migration in order inside a single
// transaction and records the target version; there is no separate
// consolidated schema, and no per-version bump is recorded.
func initFresh(ctx context.Context, pool *pgxpool.Pool) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if _, err := tx.Exec(ctx, m.SQL); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("migrate: fresh init v%d (%s): %w", m.Version, m.Name, err)
		}
	}
	if _, err := tx.Exec(ctx, `UPDATE schema_version SET version = $1`, TargetVersion()); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
