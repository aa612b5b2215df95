package schedule

import (
	"strconv"
	"strings"
	"time"
)

// MinutesOfDay parses "HH:MM" or "HH:MM:SS" into minutes since
// midnight. Missing fields count as zero; callers validate input.
func MinutesOfDay(s string) int {
	parts := strings.Split(s, ":")

	var h, m int
	if len(parts) > 0 {
		h, _ = strconv.Atoi(parts[0])
	}
	if len(parts) > 1 {
		m, _ = strconv.Atoi(parts[1])
	}

	return h*60 + m
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) share at least one instant. Touching endpoints do not
// overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// DayStart returns midnight of t's calendar day in loc.
func DayStart(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// AtMinute returns the instant minute-of-day minutes after midnight of
// day in loc. Constructing via time.Date keeps the UTC offset correct
// across DST transitions.
func AtMinute(day time.Time, minute int, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minute/60, minute%60, 0, 0, loc)
}

// ISOWeekday maps Go's Sunday-based weekday to ISO numbering,
// Monday=1..Sunday=7.
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
