// Package protocol defines the JSON frames exchanged with the AI backend.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/agent-bridge/internal/calendar"
)

// Inbound message kinds.
const (
	KindConnected      = "connected"
	KindRegistered     = "registered"
	KindChatResponse   = "chat_response"
	KindVoiceProcessed = "voice_processed"
	KindError          = "error"
	KindPong           = "pong"
)

// Outbound request types.
const (
	TypeRegister            = "register"
	TypeChat                = "chat"
	TypeCreateCalendarEvent = "create_calendar_event"
)

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

// Inbound is a decoded backend frame. Kind selects which of the optional
// fields are meaningful; unknown kinds are returned as-is with Raw set.
type Inbound struct {
	Kind          string          `json:"type"`
	ClientID      string          `json:"clientId,omitempty"`
	PlayerID      string          `json:"playerId,omitempty"`
	Text          string          `json:"text,omitempty"`
	Transcription string          `json:"transcription,omitempty"`
	AIResponse    string          `json:"aiResponse,omitempty"`
	Error         string          `json:"error,omitempty"`
	Raw           json.RawMessage `json:"-"`
}

// Known reports whether Kind is one the bridge understands.
func (m Inbound) Known() bool {
	switch m.Kind {
	case KindConnected, KindRegistered, KindChatResponse, KindVoiceProcessed, KindError, KindPong:
		return true
	}
	return false
}

// DecodeInbound parses one text frame. It fails on invalid JSON, a missing
// type, or a string field carrying a non-string value.
func DecodeInbound(data []byte) (Inbound, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return Inbound{}, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return Inbound{}, badRequest("missing message type", "type")
	}

	var msg Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return Inbound{}, badRequest("invalid field", typeErr.Field)
		}
		return Inbound{}, badRequest("invalid "+typ+" frame", "")
	}
	msg.Kind = typ
	msg.Raw = append(json.RawMessage(nil), data...)
	return msg, nil
}

// Register announces the player after the socket is up.
type Register struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
}

// Chat carries free-form user text.
type Chat struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CreateCalendarEvent hands a confirmed event to the backend.
type CreateCalendarEvent struct {
	Type            string `json:"type"`
	EventName       string `json:"eventName"`
	DateTime        string `json:"dateTime"`
	DurationMinutes int    `json:"durationMinutes"`
	Location        string `json:"location"`
	Notes           string `json:"notes"`
	Priority        int    `json:"priority"`
}

func NewRegister(playerID string) Register {
	return Register{Type: TypeRegister, PlayerID: playerID}
}

func NewChat(text string) Chat {
	return Chat{Type: TypeChat, Text: text}
}

// NewCreateCalendarEvent maps a confirmed record onto the wire shape.
// dateTime is ISO-8601 with the record's UTC offset.
func NewCreateCalendarEvent(rec calendar.EventRecord) CreateCalendarEvent {
	return CreateCalendarEvent{
		Type:            TypeCreateCalendarEvent,
		EventName:       rec.Name,
		DateTime:        rec.When.Format(time.RFC3339),
		DurationMinutes: rec.DurationMinutes,
		Location:        rec.Location,
		Notes:           rec.Notes,
		Priority:        rec.Priority,
	}
}

// Encode serializes an outbound request. Free text is escaped by the JSON
// encoder, so quotes and control characters in user input cannot break the
// frame.
func Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return b, nil
}
