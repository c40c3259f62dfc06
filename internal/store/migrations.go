package store

import "database/sql"

// schema holds the tables backing the SQLite store. It runs on startup and
// is safe to apply repeatedly.
const schema = `
CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS hashes (
    key TEXT NOT NULL,
    field TEXT NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (key, field)
);

CREATE TABLE IF NOT EXISTS sets (
    key TEXT NOT NULL,
    member TEXT NOT NULL,
    PRIMARY KEY (key, member)
);
`

func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
