// Package migrations registers the postgres schema with goose. Files are
// named <version>_<name>.go; goose takes the version from the file name.
package migrations

import (
	"database/sql"

	"github.com/pressly/goose"
)

func init() {
	goose.AddMigration(upInit, downInit)
}

const initSchema = `
CREATE TABLE xw_jobs (
	id                   TEXT PRIMARY KEY,
	type                 TEXT NOT NULL,
	topic                TEXT NOT NULL DEFAULT '',
	scope_id             TEXT NOT NULL DEFAULT '',
	tenant_id            TEXT NOT NULL DEFAULT '',
	lock_owner           TEXT,
	lock_expiration_time TIMESTAMPTZ,
	data                 JSONB NOT NULL
);
CREATE INDEX xw_jobs_topic_idx ON xw_jobs (topic, id);
CREATE INDEX xw_jobs_owner_idx ON xw_jobs (lock_owner, id) WHERE lock_owner IS NOT NULL;
CREATE INDEX xw_jobs_scope_idx ON xw_jobs (scope_id, id);

CREATE TABLE xw_dead_letter_jobs (
	id        TEXT PRIMARY KEY,
	topic     TEXT NOT NULL DEFAULT '',
	scope_id  TEXT NOT NULL DEFAULT '',
	tenant_id TEXT NOT NULL DEFAULT '',
	data      JSONB NOT NULL
);

CREATE TABLE xw_error_details (
	ref     TEXT PRIMARY KEY,
	details TEXT NOT NULL
);

CREATE TABLE xw_scope_instances (
	id   TEXT PRIMARY KEY,
	data JSONB NOT NULL
);

CREATE TABLE xw_identity_links (
	correlation_id TEXT NOT NULL,
	kind           CHAR(1) NOT NULL,
	name           TEXT NOT NULL,
	PRIMARY KEY (correlation_id, kind, name)
);
`

func upInit(tx *sql.Tx) error {
	_, err := tx.Exec(initSchema)
	return err
}

func downInit(tx *sql.Tx) error {
	_, err := tx.Exec(`
DROP TABLE IF EXISTS xw_identity_links;
DROP TABLE IF EXISTS xw_scope_instances;
DROP TABLE IF EXISTS xw_error_details;
DROP TABLE IF EXISTS xw_dead_letter_jobs;
DROP TABLE IF EXISTS xw_jobs;`)
	return err
}
