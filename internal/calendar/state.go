// Package calendar implements the question/answer flow that collects a
// calendar event from free-form user replies.
package calendar

// State identifies where a flow currently is.
type State int

const (
	Idle State = iota
	AskingName
	AskingDateTime
	AskingDuration
	AskingLocation
	AskingNotes
	AskingPriority
	Confirming
)

var stateNames = [...]string{
	Idle:           "idle",
	AskingName:     "asking_name",
	AskingDateTime: "asking_datetime",
	AskingDuration: "asking_duration",
	AskingLocation: "asking_location",
	AskingNotes:    "asking_notes",
	AskingPriority: "asking_priority",
	Confirming:     "confirming",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
