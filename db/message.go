package db

import (
	"fmt"

	"askforge-client/api"
)

const insertMessage = `INSERT INTO messages (conversation_id, server_id, role, content, image_url, knowledge_ids, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

// ReplaceMessages stores the full message list of a conversation as loaded
// from the server. The conversation must already be mirrored.
func (db *DB) ReplaceMessages(conversationID int64, messages []api.Message) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM messages WHERE conversation_id = ?", conversationID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}

	stmt, err := tx.Prepare(insertMessage)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range messages {
		if _, err := stmt.Exec(conversationID, m.ID, m.Role, m.Content, m.ImageURL,
			encodeIDs(m.UsedKnowledgeIDs), m.CreatedAt); err != nil {
			return fmt.Errorf("failed to save message: %w", err)
		}
	}

	return tx.Commit()
}

// AppendMessage adds one message to the end of a conversation. Locally
// attached image data is not stored.
func (db *DB) AppendMessage(conversationID int64, m api.Message) error {
	_, err := db.conn.Exec(insertMessage, conversationID, m.ID, m.Role, m.Content, m.ImageURL,
		encodeIDs(m.UsedKnowledgeIDs), m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// ListMessages returns a conversation's messages in order.
func (db *DB) ListMessages(conversationID int64) ([]api.Message, error) {
	rows, err := db.conn.Query(
		"SELECT "+messageColumns+" FROM messages WHERE conversation_id = ? ORDER BY id ASC",
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []api.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// SaveAttachments records the knowledge attachments a conversation's
// answers may reference. Ids are normalized to "ANEXO_n".
func (db *DB) SaveAttachments(conversationID int64, list []api.KnowledgeAttachment) error {
	if len(list) == 0 {
		return nil
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for key, att := range api.AttachmentIndex(list) {
		if _, err := tx.Exec(`INSERT INTO knowledge_attachments (conversation_id, key, name, url)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(conversation_id, key) DO UPDATE SET name = excluded.name, url = excluded.url`,
			conversationID, key, att.Name, att.URL); err != nil {
			return fmt.Errorf("failed to save attachment %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// Attachments returns the stored attachments of a conversation.
func (db *DB) Attachments(conversationID int64) ([]api.KnowledgeAttachment, error) {
	rows, err := db.conn.Query(
		"SELECT key, name, url FROM knowledge_attachments WHERE conversation_id = ? ORDER BY key",
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	defer rows.Close()

	var list []api.KnowledgeAttachment
	for rows.Next() {
		var att api.KnowledgeAttachment
		if err := rows.Scan(&att.ID, &att.Name, &att.URL); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		list = append(list, att)
	}
	return list, rows.Err()
}

// Detail assembles a conversation from the mirror in the shape the server
// returns, for use when the server cannot be reached.
func (db *DB) Detail(conversationID int64) (*api.ConversationDetail, error) {
	conv, err := db.GetConversation(conversationID)
	if err != nil {
		return nil, err
	}
	messages, err := db.ListMessages(conversationID)
	if err != nil {
		return nil, err
	}
	attachments, err := db.Attachments(conversationID)
	if err != nil {
		return nil, err
	}
	return &api.ConversationDetail{Conversation: *conv, Messages: messages, Attachments: attachments}, nil
}
