package store

import (
	"context"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath              string         `json:"db_path"`
	DBSizeBytes         int64          `json:"db_size_bytes"`
	PreferenceVersions  int            `json:"preference_versions"`
	ActivePreferences   int            `json:"active_preferences"`
	ConversationEntries int            `json:"conversation_entries"`
	Sessions            int            `json:"sessions"`
	Speakers            []SpeakerStats `json:"speakers"`
}

// SpeakerStats holds per-speaker entry counts.
type SpeakerStats struct {
	Speaker string `json:"speaker"`
	Count   int    `json:"count"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	// DB file size
	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	counts := []struct {
		query string
		dst   *int
	}{
		{`SELECT COUNT(*) FROM preferences`, &st.PreferenceVersions},
		{`SELECT COUNT(DISTINCT key) FROM preferences WHERE deleted_at IS NULL`, &st.ActivePreferences},
		{`SELECT COUNT(*) FROM conversation`, &st.ConversationEntries},
		{`SELECT COUNT(DISTINCT session_id) FROM conversation`, &st.Sessions},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return st, err
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT speaker, COUNT(*) AS cnt
		FROM conversation
		GROUP BY speaker ORDER BY cnt DESC, speaker`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var sp SpeakerStats
		if err := rows.Scan(&sp.Speaker, &sp.Count); err != nil {
			return st, err
		}
		st.Speakers = append(st.Speakers, sp)
	}

	return st, rows.Err()
}
