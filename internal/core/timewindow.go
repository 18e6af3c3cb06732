package core

import (
	"time"
)

// InBedtimeWindow reports whether now's time-of-day falls inside the window
// [start, end). If end < start the window is interpreted as crossing midnight
// (e.g. 21:00-07:00). The check respects now's location; callers pass a time
// already converted to the guardian's timezone.
func InBedtimeWindow(now time.Time, start, end TimeOfDay) bool {
	currentMinutes := now.Hour()*60 + now.Minute()
	startMinutes := start.MinuteOfDay()
	endMinutes := end.MinuteOfDay()

	if startMinutes > endMinutes {
		// Overnight window (e.g., 21:00 to 07:00)
		return currentMinutes >= startMinutes || currentMinutes < endMinutes
	}

	// Same-day window (e.g., 13:00 to 15:00)
	return currentMinutes >= startMinutes && currentMinutes < endMinutes
}

// DayBoundaries returns the start (inclusive) and end (exclusive) of the
// calendar day containing now in the given timezone. An aggregation day is
// whatever the guardian's configured zone considers a calendar day.
func DayBoundaries(now time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	year, month, day := local.Date()
	dayStart := time.Date(year, month, day, 0, 0, 0, 0, loc)
	return dayStart, dayStart.AddDate(0, 0, 1)
}

// NormalizeDate normalizes a time to midnight of its calendar day in the
// given timezone
func NormalizeDate(t time.Time, loc *time.Location) time.Time {
	dayStart, _ := DayBoundaries(t, loc)
	return dayStart
}
