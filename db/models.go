package db

import (
	"database/sql"
	"encoding/json"

	"askforge-client/api"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const conversationColumns = "id, title, module_id, system_id, module_name, system_name, created_at, updated_at"

func scanConversation(row rowScanner) (api.Conversation, error) {
	var conv api.Conversation
	var systemID sql.NullInt64
	err := row.Scan(&conv.ID, &conv.Title, &conv.ModuleID, &systemID,
		&conv.ModuleName, &conv.SystemName, &conv.CreatedAt, &conv.UpdatedAt)
	if systemID.Valid {
		id := systemID.Int64
		conv.SystemID = &id
	}
	return conv, err
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

const messageColumns = "server_id, role, content, image_url, knowledge_ids, created_at"

func scanMessage(row rowScanner) (api.Message, error) {
	var msg api.Message
	var ids string
	if err := row.Scan(&msg.ID, &msg.Role, &msg.Content, &msg.ImageURL, &ids, &msg.CreatedAt); err != nil {
		return msg, err
	}
	msg.UsedKnowledgeIDs = decodeIDs(ids)
	return msg, nil
}

// Knowledge ids are opaque server values; they are stored as a JSON array.
func encodeIDs(ids []any) string {
	if len(ids) == 0 {
		return ""
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return ""
	}
	return string(data)
}

func decodeIDs(s string) []any {
	if s == "" {
		return nil
	}
	var ids []any
	if err := json.Unmarshal([]byte(s), &ids); err != nil {
		return nil
	}
	return ids
}
