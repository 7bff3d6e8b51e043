package promotion

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// TimeOfDay is a wall-clock time expressed as minutes since midnight.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS". Seconds are accepted but
// ignored since windows have minute resolution.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, errors.Errorf("invalid time of day %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, errors.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, errors.Errorf("invalid minute in %q", s)
	}
	if len(parts) == 3 {
		if sec, err := strconv.Atoi(parts[2]); err != nil || sec < 0 || sec > 59 {
			return 0, errors.Errorf("invalid second in %q", s)
		}
	}
	return TimeOfDay(h*60 + m), nil
}

// Of returns the minutes since midnight of t in t's location.
func Of(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Window is a same-day time-of-day range, inclusive on both ends. Windows
// that would cross midnight (End before Start) contain no time at all.
type Window struct {
	Start TimeOfDay
	End   TimeOfDay
}

// NewWindow parses both bounds. It returns nil without error when either
// bound is empty, meaning the promotion has no time-of-day restriction.
func NewWindow(start, end string) (*Window, error) {
	if strings.TrimSpace(start) == "" || strings.TrimSpace(end) == "" {
		return nil, nil
	}
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return nil, errors.Wrap(err, "start time frame")
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return nil, errors.Wrap(err, "end time frame")
	}
	return &Window{Start: s, End: e}, nil
}

// Contains reports whether t's time of day lies inside the window.
func (w Window) Contains(t time.Time) bool {
	m := Of(t)
	return w.Start <= m && m <= w.End
}
