package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/rcliao/agent-bridge/internal/logging"
)

// Publisher delivers UI envelopes to every subscribed channel of one session.
// Emit never waits on a slow reader; if its channel is full the envelope is
// dropped for that reader and a warning is logged.
type Publisher struct {
	sessionID string
	logger    zerolog.Logger

	subMu       sync.RWMutex
	subscribers map[string]chan Envelope
}

// NewPublisher returns a Publisher with no subscribers whose envelopes carry
// sessionID.
func NewPublisher(sessionID string) *Publisher {
	return &Publisher{
		sessionID:   sessionID,
		logger:      logging.WithComponent("events"),
		subscribers: make(map[string]chan Envelope),
	}
}

// Emit JSON-encodes data into a fresh envelope and fans it out. It fails only
// when data cannot be encoded.
func (p *Publisher) Emit(eventType EventType, data any) error {
	env := Envelope{
		ID:        xid.New().String(),
		Type:      eventType,
		SessionID: p.sessionID,
		Timestamp: time.Now().UTC(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		env.Data = raw
	}

	p.subMu.RLock()
	defer p.subMu.RUnlock()
	for id, ch := range p.subscribers {
		select {
		case ch <- env:
		default:
			p.logger.Warn().Str("subscriber", id).Str("event_type", string(eventType)).
				Msg("event dropped: subscriber buffer full")
		}
	}
	return nil
}

// Subscribe opens a buffered channel under id, closing any channel already
// held by that id. bufSize <= 0 means 64.
func (p *Publisher) Subscribe(id string, bufSize int) <-chan Envelope {
	if bufSize <= 0 {
		bufSize = 64
	}
	ch := make(chan Envelope, bufSize)
	p.subMu.Lock()
	if old, ok := p.subscribers[id]; ok {
		close(old)
	}
	p.subscribers[id] = ch
	p.subMu.Unlock()
	return ch
}

// Unsubscribe closes the channel held by id. Unknown ids are ignored.
func (p *Publisher) Unsubscribe(id string) {
	p.subMu.Lock()
	if ch, ok := p.subscribers[id]; ok {
		close(ch)
		delete(p.subscribers, id)
	}
	p.subMu.Unlock()
}

// Close closes every subscriber channel.
func (p *Publisher) Close() {
	p.subMu.Lock()
	for id, ch := range p.subscribers {
		close(ch)
		delete(p.subscribers, id)
	}
	p.subMu.Unlock()
}
