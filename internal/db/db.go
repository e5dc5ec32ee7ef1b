package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// DB wraps the Postgres pool holding render jobs and their outputs.
type DB struct {
	*sql.DB
}

func New(databaseURL string) (*DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &DB{DB: conn}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS render_jobs (
	id                 UUID PRIMARY KEY,
	status             TEXT NOT NULL,
	languages          TEXT[] NOT NULL,
	input_dir          TEXT NOT NULL,
	images_dir         TEXT,
	output_dir         TEXT NOT NULL,
	shorts_mode        TEXT NOT NULL DEFAULT 'off',
	wrap_intro_outro   BOOLEAN NOT NULL DEFAULT TRUE,
	secondary_language TEXT,
	options            JSONB,
	attempts           INTEGER NOT NULL DEFAULT 0,
	started_at         TIMESTAMPTZ,
	finished_at        TIMESTAMPTZ,
	error_message      TEXT,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS render_outputs (
	id           UUID PRIMARY KEY,
	job_id       UUID NOT NULL REFERENCES render_jobs(id) ON DELETE CASCADE,
	language     TEXT NOT NULL,
	kind         TEXT NOT NULL,
	format       TEXT NOT NULL,
	local_path   TEXT NOT NULL,
	storage_path TEXT,
	byte_size    BIGINT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS render_outputs_job_id_idx ON render_outputs (job_id);
`

// Migrate creates the tables when they do not exist yet.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
