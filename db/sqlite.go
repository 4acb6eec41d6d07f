// Package db keeps a local SQLite copy of the conversations fetched from the
// knowledge-base server. It backs the offline conversation list and the
// history search view; the server stays the source of truth.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
	fts  bool
}

// New opens (creating if needed) the mirror at dbPath. ":memory:" is
// accepted for tests.
func New(dbPath string) (*DB, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = "file:" + dbPath
	}
	dsn += "?_foreign_keys=on&_busy_timeout=5000"

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection: also keeps ":memory:" databases alive across calls.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// FullTextSearch reports whether the SQLite build has FTS5. Without it
// search falls back to LIKE matching.
func (db *DB) FullTextSearch() bool {
	return db.fts
}

func (db *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id INTEGER PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			module_id INTEGER NOT NULL DEFAULT 0,
			system_id INTEGER,
			module_name TEXT NOT NULL DEFAULT '',
			system_name TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL DEFAULT '',
			synced_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id INTEGER NOT NULL,
			server_id INTEGER NOT NULL DEFAULT 0,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			image_url TEXT NOT NULL DEFAULT '',
			knowledge_ids TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT '',
			FOREIGN KEY(conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS knowledge_attachments (
			conversation_id INTEGER NOT NULL,
			key TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL,
			PRIMARY KEY (conversation_id, key),
			FOREIGN KEY(conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_messages_conversation_id ON messages(conversation_id, id)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_position ON conversations(position)`,
	}

	for _, migration := range migrations {
		if _, err := db.conn.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, migration)
		}
	}

	return db.migrateFTS()
}

// migrateFTS creates the full-text index. go-sqlite3 only ships FTS5 when
// built with the sqlite_fts5 tag, so a missing module is not an error.
func (db *DB) migrateFTS() error {
	_, err := db.conn.Exec(`CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
		content,
		conversation_id UNINDEXED,
		content=messages,
		content_rowid=id
	)`)
	if err != nil {
		if strings.Contains(err.Error(), "no such module") {
			db.fts = false
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}
	db.fts = true

	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS messages_ai AFTER INSERT ON messages BEGIN
			INSERT INTO messages_fts(rowid, content, conversation_id)
			VALUES (new.id, new.content, new.conversation_id);
		END`,

		`CREATE TRIGGER IF NOT EXISTS messages_ad AFTER DELETE ON messages BEGIN
			INSERT INTO messages_fts(messages_fts, rowid, content, conversation_id)
			VALUES ('delete', old.id, old.content, old.conversation_id);
		END`,

		`CREATE TRIGGER IF NOT EXISTS messages_au AFTER UPDATE ON messages BEGIN
			INSERT INTO messages_fts(messages_fts, rowid, content, conversation_id)
			VALUES ('delete', old.id, old.content, old.conversation_id);
			INSERT INTO messages_fts(rowid, content, conversation_id)
			VALUES (new.id, new.content, new.conversation_id);
		END`,
	}
	for _, trigger := range triggers {
		if _, err := db.conn.Exec(trigger); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, trigger)
		}
	}
	return nil
}

// DBStats represents database statistics
type DBStats struct {
	ConversationCount int64
	MessageCount      int64
	AttachmentCount   int64
	DBSizeBytes       int64
}

// GetStats returns database statistics
func (db *DB) GetStats() (*DBStats, error) {
	stats := &DBStats{}

	counts := []struct {
		table string
		dest  *int64
	}{
		{"conversations", &stats.ConversationCount},
		{"messages", &stats.MessageCount},
		{"knowledge_attachments", &stats.AttachmentCount},
	}
	for _, c := range counts {
		if err := db.conn.QueryRow("SELECT COUNT(*) FROM " + c.table).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.table, err)
		}
	}

	var pageCount, pageSize int64
	if err := db.conn.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, fmt.Errorf("failed to get page count: %w", err)
	}
	if err := db.conn.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, fmt.Errorf("failed to get page size: %w", err)
	}
	stats.DBSizeBytes = pageCount * pageSize

	return stats, nil
}

// Vacuum optimizes the database file
func (db *DB) Vacuum() error {
	if _, err := db.conn.Exec("VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	return nil
}

// Clear removes everything from the mirror, including its owner. Called on
// logout and from the settings dialog.
func (db *DB) Clear() error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := clearTx(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func clearTx(tx *sql.Tx) error {
	for _, table := range []string{"knowledge_attachments", "messages", "conversations", "meta"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// Owner returns the email of the user the mirrored rows belong to, or ""
// when the mirror has no owner.
func (db *DB) Owner() (string, error) {
	var owner string
	err := db.conn.QueryRow(`SELECT value FROM meta WHERE key = 'owner'`).Scan(&owner)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read mirror owner: %w", err)
	}
	return owner, nil
}

// ClaimOwner hands the mirror to email. Rows left by anyone else, or by an
// unknown owner, are deleted first. It reports whether the owner changed.
func (db *DB) ClaimOwner(email string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	tx, err := db.conn.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var owner string
	err = tx.QueryRow(`SELECT value FROM meta WHERE key = 'owner'`).Scan(&owner)
	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("failed to read mirror owner: %w", err)
	}
	if owner == email {
		return false, nil
	}

	if err := clearTx(tx); err != nil {
		return false, err
	}
	if _, err := tx.Exec(`INSERT INTO meta (key, value) VALUES ('owner', ?)`, email); err != nil {
		return false, fmt.Errorf("failed to set mirror owner: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit owner change: %w", err)
	}
	return true, nil
}
