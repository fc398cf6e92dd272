// Package router dispatches backend messages and user input for one bridge
// session. It owns the calendar engine and the session's connected flag.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rcliao/agent-bridge/internal/calendar"
	"github.com/rcliao/agent-bridge/internal/events"
	"github.com/rcliao/agent-bridge/internal/logging"
	"github.com/rcliao/agent-bridge/internal/metrics"
	"github.com/rcliao/agent-bridge/internal/model"
	"github.com/rcliao/agent-bridge/internal/protocol"
	"github.com/rcliao/agent-bridge/internal/store"
	"github.com/rcliao/agent-bridge/internal/transport"
)

// ErrNotConnected is returned when a request is dropped because the session
// is offline. Nothing is queued.
var ErrNotConnected = errors.New("session not connected")

// ErrEventNotSent wraps the cause when a confirmed event could not be handed
// off. The flow stays at confirmation so RetryEventHandoff can resend it.
var ErrEventNotSent = errors.New("event not sent, use retry")

// Sender is the outbound side of the transport.
type Sender interface {
	Send(text string) error
}

// Memory is the preferences and conversation collaborator.
type Memory interface {
	SetPreference(ctx context.Context, key, value string) (*model.Preference, error)
	GetPreference(ctx context.Context, key string) (*model.Preference, error)
	AppendConversation(ctx context.Context, p store.ConversationParams) (*model.ConversationEntry, error)
}

// Options configures a Router.
type Options struct {
	PlayerID     string
	SessionID    string
	ProbeDelay   time.Duration
	ProbeText    string
	EnableMemory bool
	Clock        func() time.Time
	Logger       *zerolog.Logger
}

// Router serializes every session mutation behind one mutex, so transport
// callbacks, user input and timers may arrive from any goroutine.
type Router struct {
	opts   Options
	logger zerolog.Logger
	memory Memory
	pub    *events.Publisher
	engine *calendar.Engine

	mu           sync.Mutex
	sender       Sender
	connected    bool
	registerSent bool
	ready        bool
	probe        *time.Timer
	probeGen     uint64
	handoffErr   error
	closed       bool
}

// New builds a router. memory may be nil; the sender is attached later with
// SetSender because the transport needs the router as its handler.
func New(opts Options, memory Memory, pub *events.Publisher) *Router {
	logger := logging.WithComponent("router")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	if opts.ProbeText == "" {
		opts.ProbeText = "Hello from agent-bridge!"
	}
	r := &Router{
		opts:   opts,
		logger: logger,
		memory: memory,
		pub:    pub,
	}

	engineOpts := []calendar.Option{
		calendar.WithListener(flowListener{r}),
		calendar.WithHandoff(handoff{r}),
		calendar.WithClock(opts.Clock),
	}
	if opts.Logger != nil {
		engineOpts = append(engineOpts, calendar.WithLogger(*opts.Logger))
	}
	r.engine = calendar.NewEngine(engineOpts...)
	return r
}

// SetSender attaches the outbound transport.
func (r *Router) SetSender(s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sender = s
}

// IsConnected reports the session's connected flag.
func (r *Router) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

// IsReady reports whether the backend acknowledged registration on the
// current connection.
func (r *Router) IsReady() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

// FlowState returns the calendar engine's state.
func (r *Router) FlowState() calendar.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.engine.State()
}

// HandleMessage decodes and dispatches one inbound frame. Undecodable or
// unknown frames are logged and dropped.
func (r *Router) HandleMessage(text string) {
	msg, err := protocol.DecodeInbound([]byte(text))
	if err != nil {
		metrics.InboundDecodeErrors.Inc()
		r.logger.Error().Err(err).Msg("dropping undecodable message")
		return
	}

	kind := msg.Kind
	if !msg.Known() {
		kind = "unknown"
	}
	metrics.InboundMessages.WithLabelValues(kind).Inc()

	r.mu.Lock()
	defer r.mu.Unlock()

	switch msg.Kind {
	case protocol.KindConnected:
		r.logger.Info().Str("client_id", msg.ClientID).Msg("backend connected")
		if r.registerSent {
			r.logger.Debug().Msg("already registered on this connection")
			return
		}
		if err := r.registerLocked(); err != nil {
			r.logger.Error().Err(err).Msg("registration failed")
		}

	case protocol.KindRegistered:
		r.logger.Info().Str("player_id", msg.PlayerID).Msg("registered")
		r.ready = true
		r.scheduleProbeLocked()

	case protocol.KindChatResponse:
		r.logger.Info().Str("text", msg.Text).Msg("ai response")
		r.rememberLocked(model.SpeakerAssistant, msg.Text, `{"source":"chat_response"}`)
		r.emit(events.AIResponse, events.TextData{Text: msg.Text})

	case protocol.KindVoiceProcessed:
		r.logger.Info().Str("transcription", msg.Transcription).Msg("voice processed")
		r.emit(events.VoiceProcessed, events.VoiceData{
			Transcription: msg.Transcription,
			AIResponse:    msg.AIResponse,
		})

	case protocol.KindError:
		r.logger.Error().Str("error", msg.Error).Msg("backend error")
		r.emit(events.BackendError, events.TextData{Text: msg.Error})

	case protocol.KindPong:

	default:
		r.logger.Warn().Str("type", msg.Kind).Msg("unknown message type")
	}
}

// HandleConnectedChanged is the only writer of the connected flag besides
// HandleTransportError.
func (r *Router) HandleConnectedChanged(connected bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := r.connected != connected
	r.setConnectedLocked(connected)
	if changed {
		r.logger.Info().Bool("connected", connected).Msg("connection changed")
		r.emit(events.ConnectionChanged, events.ConnectionData{Connected: connected})
	}
}

// HandleTransportError marks the session offline and tells the UI.
func (r *Router) HandleTransportError(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Error().Str("error", text).Msg("transport error")
	r.setConnectedLocked(false)
	r.emit(events.ConnectionChanged, events.ConnectionData{Connected: false})
}

func (r *Router) setConnectedLocked(connected bool) {
	r.connected = connected
	if connected {
		metrics.Connected.Set(1)
		return
	}
	metrics.Connected.Set(0)
	r.registerSent = false
	r.ready = false
	r.stopProbeLocked()
}

// HandleUserInput routes one line typed by the user. While a calendar flow
// is active the line answers the current question, and the word "cancel"
// ends the flow. Otherwise it is sent as free chat.
func (r *Router) HandleUserInput(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.engine.IsActive() {
		if strings.EqualFold(text, "cancel") {
			r.engine.Cancel()
			return nil
		}
		r.handoffErr = nil
		r.engine.SubmitAnswer(text)
		if err := r.handoffErr; err != nil {
			r.handoffErr = nil
			return fmt.Errorf("%w: %w", ErrEventNotSent, err)
		}
		return nil
	}
	return r.sendChatLocked(text)
}

// StartEventFlow begins a calendar flow. It fails with
// calendar.ErrFlowActive if one is running.
func (r *Router) StartEventFlow() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.engine.StartFlow()
}

// CancelEventFlow discards the running calendar flow.
func (r *Router) CancelEventFlow() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.engine.IsActive() {
		return calendar.ErrNotActive
	}
	r.engine.Cancel()
	return nil
}

// RetryEventHandoff re-sends a confirmed event whose hand-off failed.
func (r *Router) RetryEventHandoff() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.engine.RetryHandoff()
}

// SendChat sends free-form text and records it in the conversation log.
func (r *Router) SendChat(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sendChatLocked(text)
}

// Register announces the player id.
func (r *Router) Register() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerLocked()
}

// SendEvent ships a calendar event to the backend.
func (r *Router) SendEvent(rec calendar.EventRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sendEventLocked(rec)
}

// AddMemory stores a preference. It is a no-op when memory is disabled.
func (r *Router) AddMemory(ctx context.Context, key, value string) error {
	if !r.memoryEnabled() {
		return nil
	}
	if _, err := r.memory.SetPreference(ctx, key, value); err != nil {
		return fmt.Errorf("add memory %q: %w", key, err)
	}
	r.logger.Debug().Str("key", key).Msg("memory added")
	return nil
}

// GetMemory returns a stored preference, or "" when it is missing or memory
// is disabled.
func (r *Router) GetMemory(ctx context.Context, key string) string {
	if !r.memoryEnabled() {
		return ""
	}
	pref, err := r.memory.GetPreference(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			r.logger.Warn().Err(err).Str("key", key).Msg("memory lookup failed")
		}
		return ""
	}
	return pref.Value
}

// Close stops the probe timer. Later timer callbacks are ignored.
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.stopProbeLocked()
}

func (r *Router) memoryEnabled() bool {
	return r.opts.EnableMemory && r.memory != nil
}

func (r *Router) registerLocked() error {
	if err := r.sendLocked(protocol.TypeRegister, protocol.NewRegister(r.opts.PlayerID)); err != nil {
		return err
	}
	r.registerSent = true
	return nil
}

func (r *Router) sendChatLocked(text string) error {
	if err := r.sendLocked(protocol.TypeChat, protocol.NewChat(text)); err != nil {
		return err
	}
	r.rememberLocked(model.SpeakerPlayer, text, "")
	return nil
}

func (r *Router) sendEventLocked(rec calendar.EventRecord) error {
	return r.sendLocked(protocol.TypeCreateCalendarEvent, protocol.NewCreateCalendarEvent(rec))
}

// sendLocked checks the connected flag before encoding; a send while
// offline is dropped and reported, never queued.
func (r *Router) sendLocked(typ string, v any) error {
	if !r.connected || r.sender == nil {
		metrics.OutboundDropped.WithLabelValues(typ).Inc()
		r.logger.Warn().Str("type", typ).Msg("not connected, dropping request")
		return ErrNotConnected
	}

	frame, err := protocol.Encode(v)
	if err != nil {
		return err
	}
	if err := r.sender.Send(string(frame)); err != nil {
		metrics.OutboundDropped.WithLabelValues(typ).Inc()
		if errors.Is(err, transport.ErrNotConnected) {
			r.logger.Warn().Str("type", typ).Msg("transport offline, dropping request")
			return ErrNotConnected
		}
		r.logger.Error().Err(err).Str("type", typ).Msg("send failed")
		return fmt.Errorf("send %s: %w", typ, err)
	}
	metrics.OutboundSent.WithLabelValues(typ).Inc()
	r.logger.Debug().Str("type", typ).Msg("sent")
	return nil
}

func (r *Router) rememberLocked(speaker, text, meta string) {
	if !r.memoryEnabled() {
		return
	}
	_, err := r.memory.AppendConversation(context.Background(), store.ConversationParams{
		SessionID: r.opts.SessionID,
		Speaker:   speaker,
		Text:      text,
		Meta:      meta,
	})
	if err != nil {
		r.logger.Warn().Err(err).Str("speaker", speaker).Msg("could not record conversation entry")
	}
}

func (r *Router) emit(t events.EventType, data any) {
	if r.pub == nil {
		return
	}
	if err := r.pub.Emit(t, data); err != nil {
		r.logger.Error().Err(err).Str("event_type", string(t)).Msg("emit failed")
	}
}
