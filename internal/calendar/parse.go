package calendar

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ExtractNumber returns the first run of ASCII digits in input, or 0 when
// there is none. Scanning stops at the first non-digit after a run starts,
// so "at 2pm and 30 min" yields 2.
func ExtractNumber(input string) int {
	start, end := -1, -1
	for i := 0; i < len(input); i++ {
		c := input[i]
		if c >= '0' && c <= '9' {
			if start < 0 {
				start = i
			}
			end = i + 1
			continue
		}
		if start >= 0 {
			break
		}
	}
	if start < 0 {
		return 0
	}
	n, err := strconv.Atoi(input[start:end])
	if err != nil {
		return 0
	}
	return n
}

// MaxDurationMinutes is the longest event duration accepted, one week.
const MaxDurationMinutes = 7 * 24 * 60

// ParseDuration converts answers like "1 hour", "30 minutes" or "45" into
// minutes. A result of 0 means the answer was rejected, including anything
// longer than MaxDurationMinutes.
func ParseDuration(input string) int {
	lower := strings.ToLower(strings.TrimSpace(input))
	n := ExtractNumber(lower)
	if n <= 0 {
		return 0
	}
	if strings.Contains(lower, "hour") {
		if n > MaxDurationMinutes/60 {
			return 0
		}
		n *= 60
	}
	// "minute", "min" or no unit at all.
	if n > MaxDurationMinutes {
		return 0
	}
	return n
}

var (
	meridiemPattern = regexp.MustCompile(`\d\s*(am|pm)\b`)
	minutesPattern  = regexp.MustCompile(`:(\d{2})\s*(am|pm)\b`)
	atPattern       = regexp.MustCompile(`\bat\b`)
)

// ParseDateTime resolves "today" or "tomorrow", optionally followed by a
// clock time such as "at 2pm" or "at 10:30am", relative to now. Anything
// else, including absolute dates, is rejected.
//
// The hour is the first digit run of the answer. "at" with no digits, as in
// "at lunch", means noon; digits without am/pm are rejected. No clock time at
// all keeps the current time of day.
func ParseDateTime(input string, now time.Time) (time.Time, bool) {
	lower := strings.ToLower(strings.TrimSpace(input))

	var day time.Time
	switch {
	case strings.Contains(lower, "tomorrow"):
		day = now.AddDate(0, 0, 1)
	case strings.Contains(lower, "today"):
		day = now
	default:
		return time.Time{}, false
	}

	if m := meridiemPattern.FindStringSubmatch(lower); m != nil {
		hour := ExtractNumber(lower)
		if hour < 1 || hour > 12 {
			return time.Time{}, false
		}
		minute := 0
		if mm := minutesPattern.FindStringSubmatch(lower); mm != nil {
			minute, _ = strconv.Atoi(mm[1])
			if minute > 59 {
				return time.Time{}, false
			}
		}
		switch m[1] {
		case "pm":
			if hour < 12 {
				hour += 12
			}
		case "am":
			if hour == 12 {
				hour = 0
			}
		}
		return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, now.Location()), true
	}

	if atPattern.MatchString(lower) {
		// A clock time without am/pm, such as "at 14:00", is not understood.
		if strings.ContainsAny(lower, "0123456789") {
			return time.Time{}, false
		}
		return time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, now.Location()), true
	}

	return day.Truncate(time.Minute), true
}

var affirmatives = map[string]bool{
	"yes":     true,
	"yeah":    true,
	"yep":     true,
	"sure":    true,
	"ok":      true,
	"okay":    true,
	"y":       true,
	"confirm": true,
	"correct": true,
	"right":   true,
}

// IsAffirmative reports whether answer is one of the accepted "yes" words,
// ignoring case and surrounding whitespace.
func IsAffirmative(answer string) bool {
	return affirmatives[strings.ToLower(strings.TrimSpace(answer))]
}

// optionalText maps "none", "no" and "skip" to the empty string.
func optionalText(answer string) string {
	trimmed := strings.TrimSpace(answer)
	switch strings.ToLower(trimmed) {
	case "none", "no", "skip":
		return ""
	}
	return trimmed
}
