package db

import (
	"database/sql"
	"errors"
	"fmt"

	"askforge-client/api"
)

// ErrNotFound is returned when a conversation is not in the mirror.
var ErrNotFound = errors.New("conversation not found")

const upsertConversation = `
	INSERT INTO conversations (id, title, module_id, system_id, module_name, system_name, position, created_at, updated_at, synced_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		module_id = excluded.module_id,
		system_id = excluded.system_id,
		module_name = excluded.module_name,
		system_name = excluded.system_name,
		position = excluded.position,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at,
		synced_at = CURRENT_TIMESTAMP`

// SyncConversations makes the mirror's list match the server's list: rows
// are upserted in the given order and conversations the server no longer
// returns are dropped with their messages.
func (db *DB) SyncConversations(convs []api.Conversation) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	keep := make(map[int64]bool, len(convs))
	for i, c := range convs {
		keep[c.ID] = true
		if _, err := tx.Exec(upsertConversation, c.ID, c.Title, c.ModuleID, nullableID(c.SystemID),
			c.ModuleName, c.SystemName, i, c.CreatedAt, c.UpdatedAt); err != nil {
			return fmt.Errorf("failed to save conversation %d: %w", c.ID, err)
		}
	}

	rows, err := tx.Query("SELECT id FROM conversations")
	if err != nil {
		return fmt.Errorf("failed to list conversations: %w", err)
	}
	var stale []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan conversation id: %w", err)
		}
		if !keep[id] {
			stale = append(stale, id)
		}
	}
	rows.Close()

	for _, id := range stale {
		if err := deleteConversation(tx, id); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SaveConversation upserts one conversation at the top of the list. Used
// when a send creates a conversation before the next full sync.
func (db *DB) SaveConversation(c api.Conversation) error {
	_, err := db.conn.Exec(upsertConversation, c.ID, c.Title, c.ModuleID, nullableID(c.SystemID),
		c.ModuleName, c.SystemName, -1, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}

// GetConversation retrieves a conversation by ID
func (db *DB) GetConversation(id int64) (*api.Conversation, error) {
	conv, err := scanConversation(db.conn.QueryRow(
		"SELECT "+conversationColumns+" FROM conversations WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

// ListConversations returns the mirrored list in server order.
func (db *DB) ListConversations() ([]api.Conversation, error) {
	rows, err := db.conn.Query(
		"SELECT " + conversationColumns + " FROM conversations ORDER BY position ASC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []api.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

// RenameConversation updates a conversation's title
func (db *DB) RenameConversation(id int64, title string) error {
	_, err := db.conn.Exec("UPDATE conversations SET title = ? WHERE id = ?", title, id)
	if err != nil {
		return fmt.Errorf("failed to rename conversation: %w", err)
	}
	return nil
}

// DeleteConversation deletes a conversation and all its messages
func (db *DB) DeleteConversation(id int64) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteConversation(tx, id); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteConversation(tx *sql.Tx, id int64) error {
	for _, stmt := range []string{
		"DELETE FROM knowledge_attachments WHERE conversation_id = ?",
		"DELETE FROM messages WHERE conversation_id = ?",
		"DELETE FROM conversations WHERE id = ?",
	} {
		if _, err := tx.Exec(stmt, id); err != nil {
			return fmt.Errorf("failed to delete conversation %d: %w", id, err)
		}
	}
	return nil
}
