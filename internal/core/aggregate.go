package core

import (
	"context"
	"fmt"
	"time"
)

// AggregateDelta is the set of increments applied to one (child, date) row.
// Deltas are commutative, so concurrent applications only need an atomic
// increment at the store boundary, not a read-modify-write cycle.
type AggregateDelta struct {
	TotalSeconds         int
	EducationalSeconds   int
	EntertainmentSeconds int
	BonusMinutes         int
	SessionCount         int
}

// AggregateStorage defines the storage operations the aggregate engine needs
type AggregateStorage interface {
	// IncrementDailyAggregate atomically applies a delta to the (childID, date)
	// row, creating it with zero counters first if it does not exist.
	IncrementDailyAggregate(ctx context.Context, childID string, date time.Time, delta AggregateDelta) error
	GetDailyAggregate(ctx context.Context, childID string, date time.Time) (*DailyAggregate, error)
}

// AggregateEngine rolls closed sessions and reward credits into per-child
// per-day totals. Recomputation is incremental: each closed session is applied
// exactly once (the session's Applied marker, set with the close, is the
// caller's idempotence guard), and each credit at most once per completion id
// (tracked by the reward service).
type AggregateEngine struct {
	storage  AggregateStorage
	timezone *time.Location
}

// NewAggregateEngine creates a new aggregate engine
func NewAggregateEngine(storage AggregateStorage, timezone *time.Location) *AggregateEngine {
	if timezone == nil {
		timezone = time.UTC
	}
	return &AggregateEngine{
		storage:  storage,
		timezone: timezone,
	}
}

// daySpan is the portion of a session attributed to one calendar day
type daySpan struct {
	date    time.Time
	seconds int
}

// ApplySessionClose applies a closed session's seconds to every calendar day
// the session spans. A session straddling midnight is split at the day
// boundary, attributing to each day the seconds that actually occurred in it.
func (e *AggregateEngine) ApplySessionClose(ctx context.Context, session *Session) error {
	if session.EndTime == nil {
		return fmt.Errorf("apply session %s: %w", session.ID, ErrSessionNotClosed)
	}

	spans := e.splitByDay(session.StartTime, *session.EndTime)

	for i, span := range spans {
		delta := AggregateDelta{TotalSeconds: span.seconds}
		switch session.AppCategory {
		case CategoryEducational:
			delta.EducationalSeconds = span.seconds
		case CategoryEntertainment:
			delta.EntertainmentSeconds = span.seconds
		}
		// Count the session once, on the day it started
		if i == 0 {
			delta.SessionCount = 1
		}

		if err := e.storage.IncrementDailyAggregate(ctx, session.ChildID, span.date, delta); err != nil {
			return fmt.Errorf("failed to apply session %s to %s: %w",
				session.ID, span.date.Format("2006-01-02"), err)
		}
	}

	return nil
}

// ApplyCredit adds reward minutes to the day's bonus bucket, creating the
// aggregate row with zero counters first if it does not exist. Callers invoke
// it at most once per task completion.
func (e *AggregateEngine) ApplyCredit(ctx context.Context, childID string, date time.Time, minutes int) error {
	if minutes <= 0 {
		return ErrInvalidRewardMinutes
	}

	normalized := NormalizeDate(date, e.timezone)
	delta := AggregateDelta{BonusMinutes: minutes}

	if err := e.storage.IncrementDailyAggregate(ctx, childID, normalized, delta); err != nil {
		return fmt.Errorf("failed to credit %d bonus minutes for child %s: %w", minutes, childID, err)
	}

	return nil
}

// GetDailyAggregate returns the aggregate for a child on a calendar day
func (e *AggregateEngine) GetDailyAggregate(ctx context.Context, childID string, date time.Time) (*DailyAggregate, error) {
	return e.storage.GetDailyAggregate(ctx, childID, NormalizeDate(date, e.timezone))
}

// splitByDay splits [start, end) at calendar-day boundaries in the engine's
// timezone. The last span takes the remainder so the per-day seconds always
// sum to the session's total duration.
func (e *AggregateEngine) splitByDay(start, end time.Time) []daySpan {
	if !end.After(start) {
		// Zero-length session (clock-skew clamp): attribute it to the start
		// day so the session count is still recorded.
		return []daySpan{{date: NormalizeDate(start, e.timezone), seconds: 0}}
	}

	total := int(end.Sub(start).Seconds())
	var spans []daySpan
	allocated := 0

	for cursor := start; cursor.Before(end); {
		dayStart, dayEnd := DayBoundaries(cursor, e.timezone)
		spanEnd := dayEnd
		if end.Before(dayEnd) {
			spanEnd = end
		}

		var seconds int
		if spanEnd.Equal(end) {
			seconds = total - allocated
		} else {
			seconds = int(spanEnd.Sub(cursor).Seconds())
		}
		allocated += seconds

		spans = append(spans, daySpan{date: dayStart, seconds: seconds})
		cursor = spanEnd
	}

	return spans
}
