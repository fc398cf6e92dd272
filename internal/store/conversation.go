package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/agent-bridge/internal/model"
)

func (s *SQLiteStore) AppendConversation(ctx context.Context, p ConversationParams) (*model.ConversationEntry, error) {
	if p.Speaker == "" {
		return nil, fmt.Errorf("speaker is required")
	}
	now := time.Now().UTC()
	id := s.ids.New()

	var metaPtr *string
	if p.Meta != "" {
		metaPtr = &p.Meta
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation (id, session_id, speaker, text, meta, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, p.SessionID, p.Speaker, p.Text, metaPtr, now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("insert conversation entry: %w", err)
	}

	return &model.ConversationEntry{
		ID:        id,
		SessionID: p.SessionID,
		Speaker:   p.Speaker,
		Text:      p.Text,
		Meta:      p.Meta,
		CreatedAt: now,
	}, nil
}

func (s *SQLiteStore) ListConversation(ctx context.Context, p ListParams) ([]model.ConversationEntry, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	where, args := conversationFilter("", p.SessionID, p.Speaker)

	// Newest N by insertion order, returned oldest first
	query := fmt.Sprintf(`
		SELECT id, session_id, speaker, text, meta, created_at FROM (
			SELECT rowid AS seq, id, session_id, speaker, text, meta, created_at
			FROM conversation %s
			ORDER BY rowid DESC LIMIT ?
		) ORDER BY seq ASC`, where)
	args = append(args, limit)

	return s.queryConversation(ctx, query, args...)
}

// SearchParams holds parameters for a full-text transcript search.
type SearchParams struct {
	SessionID string
	Speaker   string
	Query     string
	Limit     int
}

// SearchConversation matches entries whose text contains every word of the
// query, best match first.
func (s *SQLiteStore) SearchConversation(ctx context.Context, p SearchParams) ([]model.ConversationEntry, error) {
	match := ftsQuery(p.Query)
	if match == "" {
		return nil, nil
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	where, args := conversationFilter("c.", p.SessionID, p.Speaker)
	if where == "" {
		where = "WHERE conversation_fts MATCH ?"
	} else {
		where += " AND conversation_fts MATCH ?"
	}
	args = append(args, match, limit)

	query := fmt.Sprintf(`
		SELECT c.id, c.session_id, c.speaker, c.text, c.meta, c.created_at
		FROM conversation_fts
		JOIN conversation c ON c.rowid = conversation_fts.rowid
		%s
		ORDER BY bm25(conversation_fts), c.rowid DESC
		LIMIT ?`, where)

	return s.queryConversation(ctx, query, args...)
}

// ExportConversation returns the full transcript in insertion order,
// optionally for a single session.
func (s *SQLiteStore) ExportConversation(ctx context.Context, sessionID string) ([]model.ConversationEntry, error) {
	where, args := conversationFilter("", sessionID, "")
	query := `SELECT id, session_id, speaker, text, meta, created_at
	          FROM conversation ` + where + ` ORDER BY rowid`
	return s.queryConversation(ctx, query, args...)
}

func conversationFilter(prefix, sessionID, speaker string) (string, []interface{}) {
	var where []string
	var args []interface{}
	if sessionID != "" {
		where = append(where, prefix+"session_id = ?")
		args = append(args, sessionID)
	}
	if speaker != "" {
		where = append(where, prefix+"speaker = ?")
		args = append(args, speaker)
	}
	if len(where) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(where, " AND "), args
}

// ftsQuery quotes each word so user text is never read as FTS5 syntax.
func ftsQuery(q string) string {
	var terms []string
	for _, w := range strings.Fields(q) {
		terms = append(terms, `"`+strings.ReplaceAll(w, `"`, `""`)+`"`)
	}
	return strings.Join(terms, " ")
}

func (s *SQLiteStore) queryConversation(ctx context.Context, query string, args ...interface{}) ([]model.ConversationEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.ConversationEntry
	for rows.Next() {
		e, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanConversation(row scanner) (model.ConversationEntry, error) {
	var e model.ConversationEntry
	var meta sql.NullString
	var createdAt string

	if err := row.Scan(&e.ID, &e.SessionID, &e.Speaker, &e.Text, &meta, &createdAt); err != nil {
		return e, err
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if meta.Valid {
		e.Meta = meta.String
	}
	return e, nil
}
