package db

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// SearchResult represents a search result
type SearchResult struct {
	ConversationID    int64
	ConversationTitle string
	Role              string
	Content           string
	// Snippet marks matches with ** so it renders as markdown bold.
	Snippet string
}

const snippetRadius = 60

// SearchMessages finds messages containing every word of query, best match
// first.
func (db *DB) SearchMessages(query string, limit int) ([]*SearchResult, error) {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return nil, nil
	}
	if db.fts {
		return db.searchFTS(terms, limit)
	}
	return db.searchLike(terms, limit)
}

func (db *DB) searchFTS(terms []string, limit int) ([]*SearchResult, error) {
	// Each term is quoted so user input is never parsed as FTS syntax.
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"*`
	}

	rows, err := db.conn.Query(`
		SELECT m.conversation_id, c.title, m.role, m.content,
		       snippet(messages_fts, 0, '**', '**', '...', 16) AS snippet
		FROM messages_fts
		JOIN messages m ON messages_fts.rowid = m.id
		JOIN conversations c ON m.conversation_id = c.id
		WHERE messages_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, strings.Join(quoted, " "), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	defer rows.Close()

	var results []*SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ConversationID, &r.ConversationTitle, &r.Role, &r.Content, &r.Snippet); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		results = append(results, &r)
	}
	return results, rows.Err()
}

func (db *DB) searchLike(terms []string, limit int) ([]*SearchResult, error) {
	sqlQuery := `
		SELECT m.conversation_id, c.title, m.role, m.content
		FROM messages m
		JOIN conversations c ON m.conversation_id = c.id
		WHERE 1 = 1`
	args := make([]any, 0, len(terms)+1)
	for _, t := range terms {
		sqlQuery += ` AND m.content LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(t)+"%")
	}
	sqlQuery += " ORDER BY m.id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.conn.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	defer rows.Close()

	var results []*SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ConversationID, &r.ConversationTitle, &r.Role, &r.Content); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		r.Snippet = excerpt(r.Content, terms[0], snippetRadius)
		results = append(results, &r)
	}
	return results, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// excerpt cuts content around the first case-insensitive occurrence of
// term and marks it bold.
func excerpt(content, term string, radius int) string {
	lower := strings.ToLower(content)
	idx := strings.Index(lower, strings.ToLower(term))
	if idx < 0 || len(lower) != len(content) {
		// Lowercasing changed byte offsets; show the start instead.
		return clip(content, 0, 2*radius)
	}

	start := idx - radius
	if start < 0 {
		start = 0
	}
	end := idx + len(term) + radius
	if end > len(content) {
		end = len(content)
	}
	for start > 0 && !utf8.RuneStart(content[start]) {
		start--
	}
	for end < len(content) && !utf8.RuneStart(content[end]) {
		end++
	}

	var b strings.Builder
	if start > 0 {
		b.WriteString("...")
	}
	b.WriteString(content[start:idx])
	b.WriteString("**" + content[idx:idx+len(term)] + "**")
	b.WriteString(content[idx+len(term) : end])
	if end < len(content) {
		b.WriteString("...")
	}
	return b.String()
}

func clip(s string, start, n int) string {
	if len(s) <= start+n {
		return s[start:]
	}
	end := start + n
	for end > start && !utf8.RuneStart(s[end]) {
		end--
	}
	return s[start:end] + "..."
}
