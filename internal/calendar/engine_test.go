package calendar

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rcliao/agent-bridge/internal/logging"
)

type recorder struct {
	questions []string
	created   []EventRecord
	cancelled int
}

func (r *recorder) AskQuestion(q string)         { r.questions = append(r.questions, q) }
func (r *recorder) EventCreated(rec EventRecord) { r.created = append(r.created, rec) }
func (r *recorder) FlowCancelled()               { r.cancelled++ }

func (r *recorder) lastQuestion() string {
	if len(r.questions) == 0 {
		return ""
	}
	return r.questions[len(r.questions)-1]
}

type sink struct {
	sent []EventRecord
	err  error
}

func (s *sink) SendEvent(rec EventRecord) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, rec)
	return nil
}

var flowStart = time.Date(2026, time.October, 15, 9, 30, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *recorder, *sink) {
	t.Helper()
	rec := &recorder{}
	out := &sink{}
	e := NewEngine(
		WithListener(rec),
		WithHandoff(out),
		WithClock(func() time.Time { return flowStart }),
		WithLogger(logging.Nop()),
	)
	return e, rec, out
}

// answersUpTo feeds valid answers until the engine reaches target.
func answersUpTo(t *testing.T, e *Engine, target State) {
	t.Helper()
	valid := map[State]string{
		AskingName:     "Dentist",
		AskingDateTime: "tomorrow at 2pm",
		AskingDuration: "1 hour",
		AskingLocation: "none",
		AskingNotes:    "none",
		AskingPriority: "8",
	}
	for e.State() != target {
		ans, ok := valid[e.State()]
		if !ok {
			t.Fatalf("cannot advance from %s to %s", e.State(), target)
		}
		e.SubmitAnswer(ans)
	}
}

func TestHappyPath(t *testing.T) {
	e, rec, out := newTestEngine(t)

	if err := e.StartFlow(); err != nil {
		t.Fatalf("StartFlow: %v", err)
	}
	for _, ans := range []string{"Dentist", "tomorrow at 2pm", "1 hour", "none", "none", "8", "yes"} {
		e.SubmitAnswer(ans)
	}

	if e.State() != Idle {
		t.Errorf("state = %s, want idle", e.State())
	}
	if !e.Record().IsZero() {
		t.Errorf("record not cleared: %+v", e.Record())
	}
	if len(out.sent) != 1 {
		t.Fatalf("hand-offs = %d, want 1", len(out.sent))
	}
	got := out.sent[0]
	if got.Name != "Dentist" || got.DurationMinutes != 60 || got.Location != "" || got.Notes != "" || got.Priority != 8 {
		t.Errorf("unexpected record: %+v", got)
	}
	if !got.Complete {
		t.Error("expected Complete on handed-off record")
	}
	want := time.Date(2026, time.October, 16, 14, 0, 0, 0, time.UTC)
	if !got.When.Equal(want) {
		t.Errorf("when = %v, want %v", got.When, want)
	}
	if len(rec.created) != 1 {
		t.Errorf("EventCreated calls = %d, want 1", len(rec.created))
	}
	if rec.cancelled != 0 {
		t.Errorf("unexpected cancellation")
	}
	// One question per state: six fixed prompts plus the confirmation.
	if len(rec.questions) != 7 {
		t.Errorf("questions asked = %d, want 7", len(rec.questions))
	}
}

func TestStartFlowAsksFirstQuestion(t *testing.T) {
	e, rec, _ := newTestEngine(t)
	if e.CurrentQuestion() != "" {
		t.Errorf("idle question = %q, want empty", e.CurrentQuestion())
	}
	e.StartFlow()
	if e.State() != AskingName {
		t.Errorf("state = %s, want asking_name", e.State())
	}
	if rec.lastQuestion() != e.CurrentQuestion() || rec.lastQuestion() == "" {
		t.Errorf("first question not emitted: %q", rec.lastQuestion())
	}
	if !e.IsActive() {
		t.Error("expected active flow")
	}
}

func TestStartFlowWhileActive(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.StartFlow()
	e.SubmitAnswer("Dentist")

	err := e.StartFlow()
	if !errors.Is(err, ErrFlowActive) {
		t.Fatalf("err = %v, want ErrFlowActive", err)
	}
	if e.State() != AskingDateTime || e.Record().Name != "Dentist" {
		t.Errorf("active flow was disturbed: state=%s record=%+v", e.State(), e.Record())
	}
}

func TestInvalidAnswerRetries(t *testing.T) {
	invalid := map[State]string{
		AskingName:     " x ",
		AskingDateTime: "next thursday",
		AskingDuration: "banana",
		AskingPriority: "eleven",
	}

	for state, bad := range invalid {
		t.Run(state.String(), func(t *testing.T) {
			e, rec, _ := newTestEngine(t)
			e.StartFlow()
			answersUpTo(t, e, state)

			before := e.Record()
			question := e.CurrentQuestion()
			asked := len(rec.questions)

			e.SubmitAnswer(bad)

			if e.State() != state {
				t.Errorf("state = %s, want %s", e.State(), state)
			}
			if e.Record() != before {
				t.Errorf("record changed: %+v -> %+v", before, e.Record())
			}
			if len(rec.questions) != asked+1 || rec.lastQuestion() != question {
				t.Errorf("question not repeated: %q", rec.lastQuestion())
			}
		})
	}
}

func TestPriorityOutOfRange(t *testing.T) {
	for _, bad := range []string{"0", "11", "priority 42"} {
		e, _, _ := newTestEngine(t)
		e.StartFlow()
		answersUpTo(t, e, AskingPriority)
		e.SubmitAnswer(bad)
		if e.State() != AskingPriority {
			t.Errorf("%q advanced to %s", bad, e.State())
		}
	}
}

func TestOptionalFieldsKeepText(t *testing.T) {
	e, _, out := newTestEngine(t)
	e.StartFlow()
	answersUpTo(t, e, AskingLocation)
	e.SubmitAnswer("  Main St clinic ")
	e.SubmitAnswer("bring \"insurance\" card")
	e.SubmitAnswer("10")
	e.SubmitAnswer("ok")

	if len(out.sent) != 1 {
		t.Fatalf("hand-offs = %d, want 1", len(out.sent))
	}
	if out.sent[0].Location != "Main St clinic" {
		t.Errorf("location = %q", out.sent[0].Location)
	}
	if out.sent[0].Notes != "bring \"insurance\" card" {
		t.Errorf("notes = %q", out.sent[0].Notes)
	}
}

func TestDeclineCancels(t *testing.T) {
	e, rec, out := newTestEngine(t)
	e.StartFlow()
	answersUpTo(t, e, Confirming)

	e.SubmitAnswer("no")

	if e.State() != Idle {
		t.Errorf("state = %s, want idle", e.State())
	}
	if !e.Record().IsZero() {
		t.Errorf("record not cleared")
	}
	if rec.cancelled != 1 {
		t.Errorf("cancellations = %d, want 1", rec.cancelled)
	}
	if len(out.sent) != 0 {
		t.Errorf("declined event was handed off")
	}

	asked := len(rec.questions)
	e.StartFlow()
	if e.State() != AskingName || !e.Record().IsZero() {
		t.Errorf("restart: state=%s record=%+v", e.State(), e.Record())
	}
	if len(rec.questions) != asked+1 || !strings.Contains(rec.lastQuestion(), "call this event") {
		t.Errorf("first question not asked again: %q", rec.lastQuestion())
	}
}

func TestCancelFromAnyState(t *testing.T) {
	for _, target := range []State{AskingName, AskingDateTime, AskingDuration, AskingLocation, AskingNotes, AskingPriority, Confirming} {
		t.Run(target.String(), func(t *testing.T) {
			e, rec, _ := newTestEngine(t)
			e.StartFlow()
			answersUpTo(t, e, target)

			e.Cancel()

			if e.State() != Idle {
				t.Errorf("state = %s, want idle", e.State())
			}
			if rec.cancelled != 1 {
				t.Errorf("cancellations = %d, want 1", rec.cancelled)
			}
		})
	}
}

func TestIdleIgnoresInput(t *testing.T) {
	e, rec, out := newTestEngine(t)
	e.SubmitAnswer("Dentist")
	e.Cancel()

	if e.State() != Idle || len(rec.questions) != 0 || rec.cancelled != 0 || len(out.sent) != 0 {
		t.Errorf("idle engine reacted: state=%s rec=%+v", e.State(), rec)
	}
}

func TestMissingHandoffKeepsRecord(t *testing.T) {
	rec := &recorder{}
	e := NewEngine(
		WithListener(rec),
		WithClock(func() time.Time { return flowStart }),
		WithLogger(logging.Nop()),
	)
	e.StartFlow()
	answersUpTo(t, e, Confirming)
	e.SubmitAnswer("yes")

	if e.State() != Confirming {
		t.Fatalf("state = %s, want confirming", e.State())
	}
	if e.Record().Name != "Dentist" || !e.Record().Complete {
		t.Errorf("record lost: %+v", e.Record())
	}
	if len(rec.created) != 0 {
		t.Error("EventCreated fired without a hand-off")
	}

	out := &sink{}
	e.SetHandoff(out)
	if err := e.RetryHandoff(); err != nil {
		t.Fatalf("RetryHandoff: %v", err)
	}
	if len(out.sent) != 1 || e.State() != Idle || len(rec.created) != 1 {
		t.Errorf("retry did not complete: sent=%d state=%s", len(out.sent), e.State())
	}
}

func TestHandoffErrorThenRetry(t *testing.T) {
	e, rec, out := newTestEngine(t)
	out.err = errors.New("offline")
	e.StartFlow()
	answersUpTo(t, e, Confirming)
	e.SubmitAnswer("yes")

	if e.State() != Confirming {
		t.Fatalf("state = %s, want confirming", e.State())
	}

	out.err = nil
	e.SubmitAnswer("yes")
	if len(out.sent) != 1 || len(rec.created) != 1 || e.State() != Idle {
		t.Errorf("second confirmation did not deliver exactly once: sent=%d created=%d", len(out.sent), len(rec.created))
	}
}

func TestRetryHandoffRequiresConfirmedRecord(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if err := e.RetryHandoff(); !errors.Is(err, ErrNotActive) {
		t.Errorf("idle: err = %v", err)
	}
	e.StartFlow()
	if err := e.RetryHandoff(); !errors.Is(err, ErrNotActive) {
		t.Errorf("unconfirmed: err = %v", err)
	}
}

func TestConfirmationMessage(t *testing.T) {
	rec := EventRecord{
		Name:            "Dentist",
		When:            time.Date(2026, time.October, 16, 14, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
		Priority:        8,
	}
	msg := ConfirmationMessage(rec)
	for _, want := range []string{"Dentist", "October 16, 2026 at 02:00 PM", "60 minutes", "8/10", "Should I create this event?"} {
		if strings.Count(msg, want) != 1 {
			t.Errorf("message missing %q exactly once:\n%s", want, msg)
		}
	}
	if strings.Contains(msg, "📍") || strings.Contains(msg, "📝") {
		t.Errorf("empty location/notes rendered:\n%s", msg)
	}

	rec.Location = "Clinic"
	rec.Notes = "Bring card"
	msg = ConfirmationMessage(rec)
	if strings.Count(msg, "Clinic") != 1 || strings.Count(msg, "Bring card") != 1 {
		t.Errorf("location/notes not rendered once:\n%s", msg)
	}
}

func TestStateString(t *testing.T) {
	if Idle.String() != "idle" || Confirming.String() != "confirming" {
		t.Errorf("unexpected names: %s %s", Idle, Confirming)
	}
	if State(99).String() != "unknown" {
		t.Errorf("out of range name = %s", State(99))
	}
}
