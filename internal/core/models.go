package core

import (
	"errors"
	"fmt"
	"time"
)

// AppCategory classifies the application a session was spent in
type AppCategory string

const (
	CategoryGames         AppCategory = "games"
	CategorySocial        AppCategory = "social"
	CategoryEducational   AppCategory = "educational"
	CategoryEntertainment AppCategory = "entertainment"
	CategoryProductivity  AppCategory = "productivity"
	CategoryOther         AppCategory = "other"
)

// Valid reports whether the category is one of the known values
func (c AppCategory) Valid() bool {
	switch c {
	case CategoryGames, CategorySocial, CategoryEducational,
		CategoryEntertainment, CategoryProductivity, CategoryOther:
		return true
	}
	return false
}

// Session represents one contiguous span of device usage by a child.
// A session is open while EndTime is nil; once closed it is immutable.
// At most one session per (ChildID, DeviceID) pair may be open at a time.
type Session struct {
	ID              string
	ChildID         string
	DeviceID        string
	AppName         string
	AppCategory     AppCategory
	StartTime       time.Time
	EndTime         *time.Time // nil = open
	DurationMinutes *int       // nil while open
	LastActivityAt  time.Time  // bumped on heartbeat; close point for stale sessions
	Applied         bool       // set atomically with close once handed to aggregation
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsOpen returns true if the session has not been closed yet
func (s *Session) IsOpen() bool {
	return s.EndTime == nil
}

// Validate validates a Session
func (s *Session) Validate() error {
	if s.ChildID == "" {
		return ErrInvalidChildID
	}
	if s.DeviceID == "" {
		return ErrInvalidDeviceID
	}
	if !s.AppCategory.Valid() {
		return ErrInvalidAppCategory
	}
	if s.StartTime.IsZero() {
		return ErrInvalidStartTime
	}
	return nil
}

// TimeOfDay is a wall-clock time without a date, used for bedtime windows
type TimeOfDay struct {
	Hour   int
	Minute int
}

// MinuteOfDay returns minutes since midnight
func (t TimeOfDay) MinuteOfDay() int {
	return t.Hour*60 + t.Minute
}

// Valid reports whether the time is a real wall-clock time
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimeOfDay parses "HH:MM" into a TimeOfDay
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var t TimeOfDay
	if _, err := fmt.Sscanf(s, "%d:%d", &t.Hour, &t.Minute); err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: %q is not HH:MM", ErrInvalidTimeOfDay, s)
	}
	if !t.Valid() {
		return TimeOfDay{}, fmt.Errorf("%w: %q out of range", ErrInvalidTimeOfDay, s)
	}
	return t, nil
}

// DailyAggregate is the per-child-per-day rollup of usage and bonus time.
// Rows are created lazily on first touch and updated by add-delta increments;
// the engine never deletes them.
type DailyAggregate struct {
	ChildID              string
	Date                 time.Time // midnight in the guardian's timezone
	TotalSeconds         int
	EducationalSeconds   int
	EntertainmentSeconds int
	BonusMinutes         int
	SessionCount         int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ParentalControls holds the policy configuration for one child
type ParentalControls struct {
	ChildID                 string
	Enabled                 bool
	DailyTimeLimitMinutes   *int       // nil = unlimited
	BedtimeStart            *TimeOfDay // set together with BedtimeEnd or not at all
	BedtimeEnd              *TimeOfDay
	WarningThresholdMinutes int
	FocusModeUntil          *time.Time // while in the future, full block
	UpdatedAt               time.Time
}

// Validate validates a ParentalControls record. Invalid configurations are
// rejected at write time, never silently coerced.
func (c *ParentalControls) Validate() error {
	if c.ChildID == "" {
		return ErrInvalidChildID
	}
	if (c.BedtimeStart == nil) != (c.BedtimeEnd == nil) {
		return fmt.Errorf("%w: bedtime start and end must be set together", ErrInvalidControls)
	}
	if c.BedtimeStart != nil && (!c.BedtimeStart.Valid() || !c.BedtimeEnd.Valid()) {
		return fmt.Errorf("%w: bedtime times out of range", ErrInvalidControls)
	}
	if c.WarningThresholdMinutes < 0 {
		return fmt.Errorf("%w: warning threshold must not be negative", ErrInvalidControls)
	}
	if c.DailyTimeLimitMinutes != nil && *c.DailyTimeLimitMinutes <= 0 {
		return fmt.Errorf("%w: daily time limit must be positive", ErrInvalidControls)
	}
	return nil
}

// BedtimeConfigured returns true if a bedtime window is set
func (c *ParentalControls) BedtimeConfigured() bool {
	return c.BedtimeStart != nil && c.BedtimeEnd != nil
}

// CompletionStatus is the review state of a task completion claim
type CompletionStatus string

const (
	CompletionStatusPending  CompletionStatus = "pending"
	CompletionStatusApproved CompletionStatus = "approved"
	CompletionStatusRejected CompletionStatus = "rejected"
)

// Task is a guardian-configured task with a screen-time reward
type Task struct {
	ID            string
	Title         string
	RewardMinutes int
	CreatedAt     time.Time
}

// Validate validates a Task
func (t *Task) Validate() error {
	if t.Title == "" {
		return ErrInvalidTaskTitle
	}
	if t.RewardMinutes <= 0 {
		return ErrInvalidRewardMinutes
	}
	return nil
}

// TaskCompletion is a child's claim of having completed a task. Reward
// minutes are credited exactly once, on the transition into approved.
type TaskCompletion struct {
	ID          string
	TaskID      string
	ChildID     string
	Status      CompletionStatus
	CompletedAt time.Time
	ReviewedAt  *time.Time
}

// Validation and domain errors
var (
	ErrInvalidChildID       = errors.New("invalid child ID")
	ErrInvalidDeviceID      = errors.New("invalid device ID")
	ErrInvalidAppCategory   = errors.New("invalid app category")
	ErrInvalidStartTime     = errors.New("session start time is required")
	ErrInvalidTimeOfDay     = errors.New("invalid time of day")
	ErrInvalidControls      = errors.New("invalid controls configuration")
	ErrInvalidTaskTitle     = errors.New("task title cannot be empty")
	ErrInvalidRewardMinutes = errors.New("reward minutes must be positive")

	ErrNoActiveSession    = errors.New("no active session for child and device")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionNotClosed   = errors.New("session is not closed")
	ErrControlsNotFound   = errors.New("parental controls not found")
	ErrTaskNotFound       = errors.New("task not found")
	ErrCompletionNotFound = errors.New("task completion not found")
	ErrAlreadyReviewed    = errors.New("task completion already reviewed")
	ErrStoreUnavailable   = errors.New("record store unavailable")
)
