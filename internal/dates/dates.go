// Package dates parses archive timestamps into comparable instants and
// renders relative ages.
package dates

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Instant is a point in time that may be invalid. The zero value is invalid.
type Instant struct {
	t     time.Time
	valid bool
}

// Invalid returns an invalid Instant.
func Invalid() Instant { return Instant{} }

// At wraps t as a valid Instant.
func At(t time.Time) Instant { return Instant{t: t, valid: true} }

// Valid reports whether the instant was parsed successfully.
func (i Instant) Valid() bool { return i.valid }

// Time returns the underlying time and whether it is valid.
func (i Instant) Time() (time.Time, bool) { return i.t, i.valid }

// Year returns the calendar year in loc, or false for invalid instants.
func (i Instant) Year(loc *time.Location) (int, bool) {
	if !i.valid {
		return 0, false
	}
	return i.t.In(loc).Year(), true
}

// String renders the instant in RFC 3339, or "invalid".
func (i Instant) String() string {
	if !i.valid {
		return "invalid"
	}
	return i.t.Format(time.RFC3339)
}

// Compare orders instants; an invalid instant is less than every valid one
// and equal to any other invalid instant.
func Compare(a, b Instant) int {
	switch {
	case !a.valid && !b.valid:
		return 0
	case !a.valid:
		return -1
	case !b.valid:
		return 1
	}
	return a.t.Compare(b.t)
}

// Sub returns a-b. The boolean is false when either side is invalid, in which
// case the duration carries no meaning.
func Sub(a, b Instant) (time.Duration, bool) {
	if !a.valid || !b.valid {
		return 0, false
	}
	return a.t.Sub(b.t), true
}

// Parse converts an export timestamp such as "2024-03-01 14:22:05 UTC".
// The trailing zone marker is stripped and the remainder is read as UTC.
// Empty or unparsable input yields an invalid Instant.
func Parse(s string) Instant {
	s = StripZoneMarker(strings.TrimSpace(s))
	if s == "" {
		return Invalid()
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return Invalid()
	}
	return At(t)
}

// StripZoneMarker removes a trailing zone abbreviation such as "UTC" or
// "CEST": a space-separated token of 2 to 5 upper-case letters. Meridiem
// markers (AM/PM) are kept.
func StripZoneMarker(s string) string {
	i := strings.LastIndexByte(s, ' ')
	if i < 0 {
		return s
	}
	token := s[i+1:]
	if token == "" {
		return strings.TrimSpace(s)
	}
	if !isZoneToken(token) {
		return s
	}
	return strings.TrimSpace(s[:i])
}

func isZoneToken(token string) bool {
	if len(token) < 2 || len(token) > 5 || token == "AM" || token == "PM" {
		return false
	}
	for _, r := range token {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// TimeAgo renders the age of i relative to now: "Just now", "N minutes ago",
// up to "N years ago". Months are days/30 and years are days/365, floored.
// The largest non-zero unit wins.
func TimeAgo(now time.Time, i Instant) string {
	if !i.valid {
		return "Unknown date"
	}
	d := now.Sub(i.t)
	if d < time.Minute {
		return "Just now"
	}
	minutes := int64(d / time.Minute)
	hours := int64(d / time.Hour)
	days := hours / 24

	switch {
	case days/365 > 0:
		return plural(days/365, "year")
	case days/30 > 0:
		return plural(days/30, "month")
	case days > 0:
		return plural(days, "day")
	case hours > 0:
		return plural(hours, "hour")
	default:
		return plural(minutes, "minute")
	}
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
