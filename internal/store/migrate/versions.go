package migrate

// migrations is the ordered, append-only list of schema steps. Never edit a
// committed entry; add a new one instead.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		SQL: `
CREATE TABLE IF NOT EXISTS nodes (
	hostname        TEXT PRIMARY KEY,
	session_token   TEXT NOT NULL,
	version         TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'booting',
	command         TEXT NOT NULL DEFAULT 'idle',
	last_heartbeat  TIMESTAMPTZ NOT NULL DEFAULT now(),
	connected_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	progress        DOUBLE PRECISION NOT NULL DEFAULT 0,
	fps             DOUBLE PRECISION NOT NULL DEFAULT 0,
	current_file    TEXT NOT NULL DEFAULT '',
	total_duration  DOUBLE PRECISION NOT NULL DEFAULT 0,
	job_start_time  TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS jobs (
	id          BIGSERIAL PRIMARY KEY,
	filepath    TEXT NOT NULL UNIQUE,
	job_type    TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'pending',
	assigned_to TEXT REFERENCES nodes(hostname) ON DELETE SET NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	metadata    JSONB NOT NULL DEFAULT '{}'::jsonb
);

CREATE INDEX IF NOT EXISTS idx_jobs_status_type ON jobs (status, job_type);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs (created_at);
CREATE INDEX IF NOT EXISTS idx_jobs_assigned_to ON jobs (assigned_to);

CREATE TABLE IF NOT EXISTS encoded_files (
	id            BIGSERIAL PRIMARY KEY,
	filepath      TEXT NOT NULL,
	original_size BIGINT NOT NULL DEFAULT 0,
	new_size      BIGINT NOT NULL DEFAULT 0,
	worker        TEXT NOT NULL DEFAULT '',
	completed_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_encoded_files_filepath ON encoded_files (filepath);

CREATE TABLE IF NOT EXISTS failed_files (
	id         BIGSERIAL PRIMARY KEY,
	filepath   TEXT NOT NULL,
	job_type   TEXT NOT NULL,
	reason     TEXT NOT NULL DEFAULT '',
	log        TEXT NOT NULL DEFAULT '',
	failed_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS media_source_types (
	source_name  TEXT NOT NULL,
	scanner_type TEXT NOT NULL,
	media_type   TEXT NOT NULL DEFAULT '',
	is_hidden    BOOLEAN NOT NULL DEFAULT false,
	PRIMARY KEY (source_name, scanner_type)
);
`,
	},
	{
		Version: 2,
		Name:    "failed_files_status_index",
		SQL: `
-- Supports ListFailures ordering by recency without a seq scan.
CREATE INDEX IF NOT EXISTS idx_failed_files_failed_at ON failed_files (failed_at DESC);
`,
	},
}
