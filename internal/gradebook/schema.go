// Package gradebook provides SQLite-backed storage of graded answers.
package gradebook

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS grades (
	id          TEXT PRIMARY KEY,
	question_id TEXT NOT NULL,
	student_id  TEXT NOT NULL,
	checksum    TEXT NOT NULL DEFAULT '',
	semitones   INTEGER NOT NULL DEFAULT 0,
	score       INTEGER NOT NULL DEFAULT 0,
	max_points  REAL NOT NULL DEFAULT 0,
	awarded     REAL NOT NULL DEFAULT 0,
	report      TEXT NOT NULL DEFAULT '{}',
	graded_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(question_id, student_id)
);

CREATE INDEX IF NOT EXISTS idx_grades_question ON grades(question_id);
`

// DB wraps a sql.DB with gradebook operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("gradebook: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("gradebook: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("gradebook: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}
