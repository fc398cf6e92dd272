// Package model defines the persisted bridge data types.
package model

import "time"

// Preference is one version of a remembered key/value pair.
type Preference struct {
	ID         string     `json:"id"`
	Key        string     `json:"key"`
	Value      string     `json:"value"`
	Version    int        `json:"version"`
	Supersedes string     `json:"supersedes,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}

// ConversationEntry is one line of the session transcript.
type ConversationEntry struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	Meta      string    `json:"meta,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Speakers recorded in the conversation log.
const (
	SpeakerAssistant = "Assistant"
	SpeakerPlayer    = "Player"
)
