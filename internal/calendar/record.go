package calendar

import "time"

// EventRecord is the event being assembled by a flow.
// Location and Notes use the empty string for "none".
type EventRecord struct {
	Name            string    `json:"name"`
	When            time.Time `json:"when"`
	DurationMinutes int       `json:"duration_minutes"`
	Location        string    `json:"location,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	Priority        int       `json:"priority"`
	Complete        bool      `json:"complete"`
}

// IsZero reports whether no field has been populated yet.
func (r EventRecord) IsZero() bool {
	return r == EventRecord{}
}
