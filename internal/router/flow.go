package router

import (
	"github.com/rcliao/agent-bridge/internal/calendar"
	"github.com/rcliao/agent-bridge/internal/events"
)

// flowListener and handoff are called by the engine while the router mutex
// is held, so they use the locked helpers.

type flowListener struct{ r *Router }

func (l flowListener) AskQuestion(question string) {
	l.r.emit(events.AskQuestion, events.TextData{Text: question})
}

func (l flowListener) EventCreated(rec calendar.EventRecord) {
	l.r.emit(events.EventCreated, events.EventCreatedData{Record: rec})
}

func (l flowListener) FlowCancelled() {
	l.r.emit(events.FlowCancelled, nil)
}

type handoff struct{ r *Router }

func (h handoff) SendEvent(rec calendar.EventRecord) error {
	err := h.r.sendEventLocked(rec)
	h.r.handoffErr = err
	return err
}
