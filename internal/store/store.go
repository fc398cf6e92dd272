// Package store provides the preferences and conversation storage interface
// and its SQLite implementation.
package store

import (
	"context"
	"errors"

	"github.com/rcliao/agent-bridge/internal/model"
)

// ErrNotFound is returned when a preference key has no live version.
var ErrNotFound = errors.New("not found")

// ConversationParams holds parameters for appending a transcript entry.
type ConversationParams struct {
	SessionID string
	Speaker   string
	Text      string
	Meta      string
}

// ListParams holds parameters for listing transcript entries.
type ListParams struct {
	SessionID string
	Speaker   string
	Limit     int
}

// Store defines the bridge storage interface.
type Store interface {
	// SetPreference stores a new version of key. Returns the created version.
	SetPreference(ctx context.Context, key, value string) (*model.Preference, error)

	// GetPreference returns the latest live version of key, or ErrNotFound.
	GetPreference(ctx context.Context, key string) (*model.Preference, error)

	// PreferenceHistory returns every live version of key, newest first.
	PreferenceHistory(ctx context.Context, key string) ([]model.Preference, error)

	// RemovePreference soft-deletes all versions of key.
	RemovePreference(ctx context.Context, key string) error

	// AppendConversation records one transcript entry.
	AppendConversation(ctx context.Context, p ConversationParams) (*model.ConversationEntry, error)

	// ListConversation returns the latest entries in chronological order.
	ListConversation(ctx context.Context, p ListParams) ([]model.ConversationEntry, error)

	// Close closes the store.
	Close() error
}
