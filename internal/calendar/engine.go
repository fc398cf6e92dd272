package calendar

import (
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rcliao/agent-bridge/internal/logging"
	"github.com/rcliao/agent-bridge/internal/metrics"
)

var (
	// ErrFlowActive is returned by StartFlow while another flow is running.
	ErrFlowActive = errors.New("calendar flow already in progress")
	// ErrNotActive is returned when an operation needs a running flow.
	ErrNotActive = errors.New("no calendar flow in progress")
	// ErrNoHandoff means the engine has nowhere to deliver a confirmed event.
	ErrNoHandoff = errors.New("no hand-off target registered")
)

// Listener receives the engine's output. Calls happen synchronously on the
// goroutine that drove the engine.
type Listener interface {
	AskQuestion(question string)
	EventCreated(rec EventRecord)
	FlowCancelled()
}

// Handoff delivers a confirmed event to the backend.
type Handoff interface {
	SendEvent(rec EventRecord) error
}

type nopListener struct{}

func (nopListener) AskQuestion(string)       {}
func (nopListener) EventCreated(EventRecord) {}
func (nopListener) FlowCancelled()           {}

// step describes one turn of the flow. apply parses the answer into the
// record and reports whether it was accepted; it must leave the record
// untouched on rejection.
type step struct {
	state    State
	question func(rec *EventRecord) string
	apply    func(e *Engine, answer string) bool
}

func fixedQuestion(q string) func(*EventRecord) string {
	return func(*EventRecord) string { return q }
}

var steps = []step{
	{
		state:    AskingName,
		question: fixedQuestion("What would you like to call this event?"),
		apply: func(e *Engine, answer string) bool {
			name := strings.TrimSpace(answer)
			if len([]rune(name)) < 2 {
				return false
			}
			e.record.Name = name
			return true
		},
	},
	{
		state:    AskingDateTime,
		question: fixedQuestion("When would you like to schedule it? (e.g., 'tomorrow at 2pm', 'today at 10:30am')"),
		apply: func(e *Engine, answer string) bool {
			when, ok := ParseDateTime(answer, e.now())
			if !ok {
				return false
			}
			e.record.When = when
			return true
		},
	},
	{
		state:    AskingDuration,
		question: fixedQuestion("How long will it take? (e.g., '1 hour', '30 minutes')"),
		apply: func(e *Engine, answer string) bool {
			minutes := ParseDuration(answer)
			if minutes <= 0 {
				return false
			}
			e.record.DurationMinutes = minutes
			return true
		},
	},
	{
		state:    AskingLocation,
		question: fixedQuestion("Where will this take place? (or say 'none')"),
		apply: func(e *Engine, answer string) bool {
			e.record.Location = optionalText(answer)
			return true
		},
	},
	{
		state:    AskingNotes,
		question: fixedQuestion("Any notes or details? (or say 'none')"),
		apply: func(e *Engine, answer string) bool {
			e.record.Notes = optionalText(answer)
			return true
		},
	},
	{
		state:    AskingPriority,
		question: fixedQuestion("How important is this event? (1-10, where 10 is most important)"),
		apply: func(e *Engine, answer string) bool {
			p := ExtractNumber(answer)
			if p < 1 || p > 10 {
				return false
			}
			e.record.Priority = p
			return true
		},
	},
	{
		state: Confirming,
		question: func(rec *EventRecord) string {
			return ConfirmationMessage(*rec)
		},
		// Confirming is handled in SubmitAnswer: a decline cancels instead of
		// retrying.
		apply: func(e *Engine, answer string) bool {
			return IsAffirmative(answer)
		},
	},
}

const idle = -1

// Engine drives a single calendar flow. It is not safe for concurrent use;
// the owner must serialize calls.
type Engine struct {
	idx      int
	record   EventRecord
	listener Listener
	handoff  Handoff
	now      func() time.Time
	logger   zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithListener sets the receiver of questions and flow outcomes.
func WithListener(l Listener) Option {
	return func(e *Engine) {
		if l != nil {
			e.listener = l
		}
	}
}

// WithHandoff sets the target that receives confirmed events.
func WithHandoff(h Handoff) Option {
	return func(e *Engine) { e.handoff = h }
}

// WithClock overrides time.Now, used to resolve relative dates.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine returns an idle engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		idx:      idle,
		listener: nopListener{},
		now:      time.Now,
		logger:   logging.WithComponent("calendar"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetHandoff replaces the hand-off target. Used when the target is built
// after the engine.
func (e *Engine) SetHandoff(h Handoff) {
	e.handoff = h
}

// State returns the current state.
func (e *Engine) State() State {
	if e.idx == idle {
		return Idle
	}
	return steps[e.idx].state
}

// IsActive reports whether a flow is in progress.
func (e *Engine) IsActive() bool {
	return e.idx != idle
}

// Record returns a copy of the record under construction. It is the zero
// value while idle.
func (e *Engine) Record() EventRecord {
	return e.record
}

// CurrentQuestion returns the prompt for the current state, or "" when idle.
func (e *Engine) CurrentQuestion() string {
	if e.idx == idle {
		return ""
	}
	return steps[e.idx].question(&e.record)
}

// StartFlow begins a new flow and asks the first question. It refuses to
// replace a flow that is already running.
func (e *Engine) StartFlow() error {
	if e.IsActive() {
		e.logger.Warn().Str("state", e.State().String()).Msg("start requested while a flow is in progress")
		return ErrFlowActive
	}
	e.record = EventRecord{}
	e.idx = 0
	metrics.FlowsStarted.Inc()
	e.logger.Info().Msg("calendar flow started")
	e.ask()
	return nil
}

// SubmitAnswer feeds one user reply into the flow. A rejected answer leaves
// the state and record unchanged and repeats the question. Declining the
// confirmation cancels the flow.
func (e *Engine) SubmitAnswer(text string) {
	if e.idx == idle {
		e.logger.Warn().Msg("answer received outside of a calendar flow, ignoring")
		return
	}

	cur := steps[e.idx]
	e.logger.Debug().Str("state", cur.state.String()).Str("answer", text).Msg("processing answer")

	if cur.state == Confirming {
		if !cur.apply(e, text) {
			e.logger.Info().Msg("event declined by user")
			e.Cancel()
			return
		}
		e.record.Complete = true
		e.deliver()
		return
	}

	if !cur.apply(e, text) {
		metrics.AnswersRejected.WithLabelValues(cur.state.String()).Inc()
		e.logger.Warn().Str("state", cur.state.String()).Msg("invalid answer, asking again")
		e.ask()
		return
	}

	e.idx++
	e.logger.Debug().Str("state", e.State().String()).Msg("advanced")
	e.ask()
}

// Cancel discards the flow and notifies the listener. It is a no-op when idle.
func (e *Engine) Cancel() {
	if e.idx == idle {
		return
	}
	e.logger.Info().Str("state", e.State().String()).Msg("calendar flow cancelled")
	e.reset()
	metrics.FlowsCancelled.Inc()
	e.listener.FlowCancelled()
}

// RetryHandoff re-attempts delivery of a confirmed event whose earlier
// hand-off failed.
func (e *Engine) RetryHandoff() error {
	if e.idx == idle || !e.record.Complete {
		return ErrNotActive
	}
	return e.deliver()
}

// deliver hands the completed record off exactly once. On failure the
// record and the Confirming state are kept so the caller can retry.
func (e *Engine) deliver() error {
	if e.handoff == nil {
		metrics.HandoffFailures.Inc()
		e.logger.Error().Err(ErrNoHandoff).Msg("could not deliver calendar event")
		return ErrNoHandoff
	}
	rec := e.record
	if err := e.handoff.SendEvent(rec); err != nil {
		metrics.HandoffFailures.Inc()
		e.logger.Error().Err(err).Msg("could not deliver calendar event")
		return err
	}
	e.logger.Info().Str("name", rec.Name).Time("when", rec.When).Msg("calendar event handed off")
	e.reset()
	metrics.FlowsCompleted.Inc()
	e.listener.EventCreated(rec)
	return nil
}

func (e *Engine) ask() {
	q := e.CurrentQuestion()
	if q == "" {
		return
	}
	e.logger.Debug().Str("question", q).Msg("asking")
	e.listener.AskQuestion(q)
}

func (e *Engine) reset() {
	e.idx = idle
	e.record = EventRecord{}
}
