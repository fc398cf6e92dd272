// Package events carries the bridge's UI-facing notifications.
package events

import (
	"encoding/json"
	"time"

	"github.com/rcliao/agent-bridge/internal/calendar"
)

// EventType identifies a UI-facing notification.
type EventType string

const (
	AIResponse        EventType = "ai.response"
	ConnectionChanged EventType = "connection.changed"
	AskQuestion       EventType = "dialogue.question"
	EventCreated      EventType = "dialogue.event_created"
	FlowCancelled     EventType = "dialogue.cancelled"
	VoiceProcessed    EventType = "voice.processed"
	BackendError      EventType = "backend.error"
)

// Envelope wraps every notification handed to subscribers.
type Envelope struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	SessionID string          `json:"session_id"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}

type TextData struct {
	Text string `json:"text"`
}

type ConnectionData struct {
	Connected bool `json:"connected"`
}

type VoiceData struct {
	Transcription string `json:"transcription"`
	AIResponse    string `json:"ai_response,omitempty"`
}

type EventCreatedData struct {
	Record calendar.EventRecord `json:"record"`
}
