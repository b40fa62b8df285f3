package sensor

import (
	"fmt"
	"regexp"
	"time"
)

var hhmmPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// QuietHours is a daily recurring window, expressed in the sensor's local
// time, during which motion is not admitted. The timezone is stored as an
// IANA name; UTC-offset storage would break across DST transitions.
type QuietHours struct {
	Start    string // "HH:MM"
	End      string // "HH:MM"
	Timezone string // IANA name, e.g. "Europe/London"
}

// NewQuietHours validates and builds a quiet-hours window.
func NewQuietHours(start, end, timezone string) (*QuietHours, error) {
	if !hhmmPattern.MatchString(start) {
		return nil, fmt.Errorf("invalid quiet hours start %q: want HH:MM", start)
	}
	if !hhmmPattern.MatchString(end) {
		return nil, fmt.Errorf("invalid quiet hours end %q: want HH:MM", end)
	}
	if start == end {
		return nil, fmt.Errorf("quiet hours start and end are equal; window would be empty")
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return nil, fmt.Errorf("invalid quiet hours timezone %q: %w", timezone, err)
	}
	return &QuietHours{Start: start, End: end, Timezone: timezone}, nil
}

// Contains reports whether the given instant falls inside the window. Windows
// that cross midnight (start > end) use "now >= start OR now < end";
// same-day windows use "start <= now < end".
func (q *QuietHours) Contains(at time.Time) (bool, error) {
	loc, err := time.LoadLocation(q.Timezone)
	if err != nil {
		return false, fmt.Errorf("load timezone %q: %w", q.Timezone, err)
	}

	local := at.In(loc)
	now := local.Hour()*60 + local.Minute()
	start := minutesOfDay(q.Start)
	end := minutesOfDay(q.End)

	if start > end {
		return now >= start || now < end, nil
	}
	return now >= start && now < end, nil
}

// minutesOfDay converts a validated "HH:MM" string to minutes since midnight.
func minutesOfDay(hhmm string) int {
	h := int(hhmm[0]-'0')*10 + int(hhmm[1]-'0')
	m := int(hhmm[3]-'0')*10 + int(hhmm[4]-'0')
	return h*60 + m
}
