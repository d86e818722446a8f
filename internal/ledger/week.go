package ledger

import (
	"fmt"
	"regexp"
	"time"
)

// Week is an ISO-8601 week key (e.g. "2024-W07"). Weeks order totally by
// (year, week) and are the only temporal unit the core operates on.
type Week struct {
	Year int `json:"year"`
	Week int `json:"week"`
}

var weekPattern = regexp.MustCompile(`^(\d{4})-W(\d{1,2})$`)

// ParseWeek parses a "YYYY-Www" key.
func ParseWeek(s string) (Week, error) {
	m := weekPattern.FindStringSubmatch(s)
	if m == nil {
		return Week{}, fmt.Errorf("invalid week key %q: expected YYYY-Www", s)
	}
	var w Week
	fmt.Sscanf(m[1], "%d", &w.Year)
	fmt.Sscanf(m[2], "%d", &w.Week)
	if w.Week < 1 || w.Week > 53 {
		return Week{}, fmt.Errorf("invalid week number %d in %q", w.Week, s)
	}
	return w, nil
}

// WeekOf returns the ISO week containing the given date.
func WeekOf(t time.Time) Week {
	y, w := t.ISOWeek()
	return Week{Year: y, Week: w}
}

// String formats the key as "YYYY-Www".
func (w Week) String() string {
	return fmt.Sprintf("%04d-W%02d", w.Year, w.Week)
}

// IsZero reports whether the week is unset.
func (w Week) IsZero() bool {
	return w.Year == 0 && w.Week == 0
}

// Compare returns -1, 0 or 1 by temporal order.
func (w Week) Compare(other Week) int {
	switch {
	case w.Year != other.Year:
		if w.Year < other.Year {
			return -1
		}
		return 1
	case w.Week != other.Week:
		if w.Week < other.Week {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// Before reports whether w is strictly earlier than other.
func (w Week) Before(other Week) bool { return w.Compare(other) < 0 }

// After reports whether w is strictly later than other.
func (w Week) After(other Week) bool { return w.Compare(other) > 0 }

// Next returns the following ISO week. Year length is resolved from the
// calendar (52 or 53 weeks) so zero-filled series stay aligned.
func (w Week) Next() Week {
	if w.Week < weeksInYear(w.Year) {
		return Week{Year: w.Year, Week: w.Week + 1}
	}
	return Week{Year: w.Year + 1, Week: 1}
}

// weeksInYear returns 52 or 53 per the ISO calendar.
func weeksInYear(year int) int {
	// Dec 28 is always in the last ISO week of its year.
	_, w := time.Date(year, 12, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return w
}

// MarshalJSON emits the canonical "YYYY-Www" form.
func (w Week) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", w.String())), nil
}

// UnmarshalJSON accepts the canonical "YYYY-Www" form.
func (w *Week) UnmarshalJSON(data []byte) error {
	var s string
	if _, err := fmt.Sscanf(string(data), "%q", &s); err != nil {
		return fmt.Errorf("invalid week JSON %s: %w", data, err)
	}
	parsed, err := ParseWeek(s)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}
