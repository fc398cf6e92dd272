package calendar

import (
	"fmt"
	"strings"
)

// DisplayTimeLayout formats event times for people.
const DisplayTimeLayout = "January 02, 2006 at 03:04 PM"

// ConfirmationMessage renders rec for the user to approve. Location and
// notes lines are left out when empty.
func ConfirmationMessage(rec EventRecord) string {
	var b strings.Builder
	b.WriteString("Here's what I have:\n\n")
	fmt.Fprintf(&b, "📅 %s\n", rec.Name)
	fmt.Fprintf(&b, "⏰ %s\n", rec.When.Format(DisplayTimeLayout))
	fmt.Fprintf(&b, "⏱️ Duration: %d minutes\n", rec.DurationMinutes)
	if rec.Location != "" {
		fmt.Fprintf(&b, "📍 %s\n", rec.Location)
	}
	if rec.Notes != "" {
		fmt.Fprintf(&b, "📝 %s\n", rec.Notes)
	}
	fmt.Fprintf(&b, "⭐ Priority: %d/10\n\n", rec.Priority)
	b.WriteString("Should I create this event?")
	return b.String()
}
