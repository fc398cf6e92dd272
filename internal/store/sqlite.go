package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rcliao/agent-bridge/internal/identity"
	"github.com/rcliao/agent-bridge/internal/model"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	ids *identity.ULIDs
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:  db,
		ids: identity.NewULIDs(),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS preferences (
		id          TEXT PRIMARY KEY,
		key         TEXT NOT NULL,
		value       TEXT NOT NULL,
		version     INTEGER NOT NULL DEFAULT 1,
		supersedes  TEXT,
		created_at  TEXT NOT NULL,
		deleted_at  TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_preferences_key ON preferences(key, version DESC);
	CREATE INDEX IF NOT EXISTS idx_preferences_deleted ON preferences(deleted_at);

	CREATE TABLE IF NOT EXISTS conversation (
		id          TEXT PRIMARY KEY,
		session_id  TEXT NOT NULL DEFAULT '',
		speaker     TEXT NOT NULL,
		text        TEXT NOT NULL,
		meta        TEXT,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversation_session ON conversation(session_id);
	CREATE INDEX IF NOT EXISTS idx_conversation_speaker ON conversation(speaker);

	CREATE VIRTUAL TABLE IF NOT EXISTS conversation_fts USING fts5(
		text,
		content=conversation,
		content_rowid=rowid
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// FTS5 triggers keep the index in sync with the log
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS conversation_ai AFTER INSERT ON conversation BEGIN
			INSERT INTO conversation_fts(rowid, text) VALUES (new.rowid, new.text);
		END`,
		`CREATE TRIGGER IF NOT EXISTS conversation_ad AFTER DELETE ON conversation BEGIN
			INSERT INTO conversation_fts(conversation_fts, rowid, text) VALUES('delete', old.rowid, old.text);
		END`,
	}
	for _, stmt := range triggers {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create trigger: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) SetPreference(ctx context.Context, key, value string) (*model.Preference, error) {
	if key == "" {
		return nil, fmt.Errorf("preference key is required")
	}
	now := time.Now().UTC()
	id := s.ids.New()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Check for existing latest version
	var prevID string
	var prevVersion int
	err = tx.QueryRowContext(ctx,
		`SELECT id, version FROM preferences
		 WHERE key = ? AND deleted_at IS NULL
		 ORDER BY version DESC LIMIT 1`, key).Scan(&prevID, &prevVersion)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lookup preference: %w", err)
	}

	version := 1
	var supersedes *string
	if err == nil {
		version = prevVersion + 1
		supersedes = &prevID
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO preferences (id, key, value, version, supersedes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, key, value, version, supersedes, now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("insert preference: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	pref := &model.Preference{
		ID:        id,
		Key:       key,
		Value:     value,
		Version:   version,
		CreatedAt: now,
	}
	if supersedes != nil {
		pref.Supersedes = *supersedes
	}
	return pref, nil
}

func (s *SQLiteStore) GetPreference(ctx context.Context, key string) (*model.Preference, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, key, value, version, supersedes, created_at, deleted_at
		 FROM preferences WHERE key = ? AND deleted_at IS NULL
		 ORDER BY version DESC LIMIT 1`, key)
	p, err := scanPreference(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("preference %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteStore) PreferenceHistory(ctx context.Context, key string) ([]model.Preference, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, key, value, version, supersedes, created_at, deleted_at
		 FROM preferences WHERE key = ? AND deleted_at IS NULL
		 ORDER BY version DESC`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prefs []model.Preference
	for rows.Next() {
		p, err := scanPreference(rows)
		if err != nil {
			return nil, err
		}
		prefs = append(prefs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(prefs) == 0 {
		return nil, fmt.Errorf("preference %q: %w", key, ErrNotFound)
	}
	return prefs, nil
}

func (s *SQLiteStore) RemovePreference(ctx context.Context, key string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE preferences SET deleted_at = ? WHERE key = ? AND deleted_at IS NULL`,
		now, key)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("preference %q: %w", key, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPreference(row scanner) (model.Preference, error) {
	var p model.Preference
	var supersedes, deletedAt sql.NullString
	var createdAt string

	err := row.Scan(&p.ID, &p.Key, &p.Value, &p.Version, &supersedes, &createdAt, &deletedAt)
	if err != nil {
		return p, err
	}

	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if supersedes.Valid {
		p.Supersedes = supersedes.String
	}
	if deletedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, deletedAt.String)
		p.DeletedAt = &t
	}
	return p, nil
}
