package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSetAndGetPreference(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	pref, err := s.SetPreference(ctx, "favorite_color", "blue")
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if pref.Version != 1 {
		t.Errorf("expected version 1, got %d", pref.Version)
	}
	if pref.ID == "" {
		t.Error("expected non-empty ID")
	}

	got, err := s.GetPreference(ctx, "favorite_color")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Value != "blue" {
		t.Errorf("expected 'blue', got %q", got.Value)
	}
}

func TestGetMissingPreference(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetPreference(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPreferenceVersioning(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.SetPreference(ctx, "name", "Ada")
	p2, _ := s.SetPreference(ctx, "name", "Grace")

	if p2.Version != 2 {
		t.Errorf("expected version 2, got %d", p2.Version)
	}
	if p2.Supersedes == "" {
		t.Error("expected supersedes to be set")
	}

	// Get latest
	got, _ := s.GetPreference(ctx, "name")
	if got.Value != "Grace" {
		t.Errorf("expected 'Grace', got %q", got.Value)
	}

	// Get history
	hist, err := s.PreferenceHistory(ctx, "name")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(hist))
	}
	if hist[0].Value != "Grace" || hist[1].Value != "Ada" {
		t.Errorf("expected newest first, got %q then %q", hist[0].Value, hist[1].Value)
	}
}

func TestRemovePreference(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.SetPreference(ctx, "k", "v1")
	s.SetPreference(ctx, "k", "v2")

	if err := s.RemovePreference(ctx, "k"); err != nil {
		t.Fatalf("rm: %v", err)
	}

	if _, err := s.GetPreference(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after remove, got %v", err)
	}
	if _, err := s.PreferenceHistory(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected empty history after remove, got %v", err)
	}
	if err := s.RemovePreference(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound removing twice, got %v", err)
	}

	// Setting again starts over at version 1
	p, _ := s.SetPreference(ctx, "k", "v3")
	if p.Version != 1 || p.Supersedes != "" {
		t.Errorf("expected fresh version after remove, got %+v", p)
	}
}

func TestEmptyKeyRejected(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.SetPreference(context.Background(), "", "x"); err == nil {
		t.Error("expected error for empty key")
	}
}

func TestDBPathCreation(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("expected db file to be created")
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	s.SetPreference(ctx, "k", "v")
	s.AppendConversation(ctx, ConversationParams{Speaker: "Player", Text: "hi there"})
	s.Close()

	s, err = NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer s.Close()

	if got, err := s.GetPreference(ctx, "k"); err != nil || got.Value != "v" {
		t.Errorf("preference lost after reopen: %v %v", got, err)
	}
	if res, _ := s.SearchConversation(ctx, SearchParams{Query: "hi"}); len(res) != 1 {
		t.Errorf("expected search index to survive reopen, got %d results", len(res))
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.SetPreference(ctx, "a", "1")
	s.SetPreference(ctx, "a", "2")
	s.SetPreference(ctx, "b", "1")
	s.AppendConversation(ctx, ConversationParams{SessionID: "s1", Speaker: "Player", Text: "hello"})
	s.AppendConversation(ctx, ConversationParams{SessionID: "s1", Speaker: "Assistant", Text: "hi"})
	s.AppendConversation(ctx, ConversationParams{SessionID: "s2", Speaker: "Assistant", Text: "again"})

	st, err := s.Stats(ctx, "")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.PreferenceVersions != 3 || st.ActivePreferences != 2 {
		t.Errorf("unexpected preference counts: %+v", st)
	}
	if st.ConversationEntries != 3 || st.Sessions != 2 {
		t.Errorf("unexpected conversation counts: %+v", st)
	}
	if len(st.Speakers) != 2 || st.Speakers[0].Speaker != "Assistant" || st.Speakers[0].Count != 2 {
		t.Errorf("unexpected speakers: %+v", st.Speakers)
	}
}
