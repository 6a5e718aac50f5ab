package oracle

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS entities (
	uri  TEXT NOT NULL,
	kind TEXT NOT NULL,
	PRIMARY KEY (uri, kind)
);

CREATE INDEX IF NOT EXISTS idx_entities_kind ON entities(kind);
`

// DB is an offline Oracle backed by a SQLite table of reference entities.
type DB struct {
	conn *sql.DB
}

// Verify *DB satisfies Oracle at compile time.
var _ Oracle = (*DB)(nil)

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("oracle: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("oracle: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("oracle: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
