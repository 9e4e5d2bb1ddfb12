package policy

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock time within a day, stored as seconds since
// midnight. It carries no date and no zone; callers convert an instant to a
// TimeOfDay in whatever location applies before comparing.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS" (24-hour clock).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m, sec int
	if n, err := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec); err != nil || n != 3 {
		sec = 0
		if n, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil || n != 2 {
			return 0, fmt.Errorf("%w: invalid time of day %q", ErrValidation, s)
		}
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("%w: time of day %q out of range", ErrValidation, s)
	}
	return TimeOfDay(h*3600 + m*60 + sec), nil
}

// MustTimeOfDay is ParseTimeOfDay that panics on error. For tests and seeds.
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// TimeOfDayFromTime extracts the local wall-clock time of the given instant.
func TimeOfDayFromTime(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay(h*3600 + m*60 + s)
}

// MinuteOfDay returns the number of whole minutes since midnight.
func (t TimeOfDay) MinuteOfDay() int {
	return int(t) / 60
}

// String renders "HH:MM:SS".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", int(t)/3600, int(t)%3600/60, int(t)%60)
}

// Window is a pair of optional time-of-day bounds. A nil bound is unbounded
// on that side. The containment check is inclusive on both ends.
//
// Windows do not wrap past midnight: a window with Earliest > Latest never
// contains any time of day. This mirrors the stored policy semantics and is a
// documented limitation, not a bug.
type Window struct {
	Earliest *TimeOfDay
	Latest   *TimeOfDay
}

// Contains reports whether now falls within the window, inclusive of both
// bounds.
func (w Window) Contains(now TimeOfDay) bool {
	if w.Earliest != nil && now < *w.Earliest {
		return false
	}
	if w.Latest != nil && now > *w.Latest {
		return false
	}
	return true
}

// Bounded reports whether at least one bound is set.
func (w Window) Bounded() bool {
	return w.Earliest != nil || w.Latest != nil
}

// String renders the window for human-readable deny messages.
func (w Window) String() string {
	switch {
	case w.Earliest != nil && w.Latest != nil:
		return fmt.Sprintf("%s-%s", *w.Earliest, *w.Latest)
	case w.Earliest != nil:
		return fmt.Sprintf("from %s", *w.Earliest)
	case w.Latest != nil:
		return fmt.Sprintf("until %s", *w.Latest)
	default:
		return "unbounded"
	}
}
