package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// OpenDB opens (or creates) a SQLite database at the given path, ensuring
// that the parent directory exists.
func OpenDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open db at %s: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db at %s: %w", path, err)
	}

	return db, nil
}

// InitSchema creates all tables: messages, import_state, quotes,
// personalities, milestones.
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			channel_id INTEGER NOT NULL,
			role TEXT NOT NULL,
			username TEXT NOT NULL,
			content TEXT NOT NULL,
			timestamp INTEGER NOT NULL DEFAULT (unixepoch())
		);
		CREATE INDEX IF NOT EXISTS idx_messages_channel_id ON messages(channel_id, id);

		CREATE TABLE IF NOT EXISTS import_state (
			channel_id INTEGER PRIMARY KEY,
			last_message_id INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS quotes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			channel_id INTEGER NOT NULL,
			message_id INTEGER NOT NULL,
			username TEXT NOT NULL,
			content TEXT NOT NULL,
			quoted_by TEXT NOT NULL,
			timestamp INTEGER NOT NULL DEFAULT (unixepoch())
		);
		CREATE INDEX IF NOT EXISTS idx_quotes_channel_id ON quotes(channel_id, id);

		CREATE TABLE IF NOT EXISTS personalities (
			channel_id INTEGER PRIMARY KEY,
			personality TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS milestones (
			user_id INTEGER PRIMARY KEY,
			username TEXT NOT NULL,
			last_event_at INTEGER NOT NULL
		);
	`)
	return err
}
