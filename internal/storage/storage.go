package storage

import (
	"context"
	"time"

	"vigil/internal/core"
)

// Storage defines the interface for the record store. The core depends on the
// narrower per-engine slices of this interface; a single implementation backs
// all of them.
type Storage interface {
	// Sessions
	CreateSession(ctx context.Context, session *core.Session) error
	GetSession(ctx context.Context, id string) (*core.Session, error)
	GetOpenSession(ctx context.Context, childID, deviceID string) (*core.Session, error)
	ListOpenSessions(ctx context.Context) ([]*core.Session, error)
	ListSessionsByChild(ctx context.Context, childID string, date time.Time) ([]*core.Session, error)
	CloseSession(ctx context.Context, session *core.Session) error
	UpdateSessionActivity(ctx context.Context, sessionID string, at time.Time) error

	// Daily aggregates
	GetDailyAggregate(ctx context.Context, childID string, date time.Time) (*core.DailyAggregate, error)
	IncrementDailyAggregate(ctx context.Context, childID string, date time.Time, delta core.AggregateDelta) error

	// Parental controls
	GetParentalControls(ctx context.Context, childID string) (*core.ParentalControls, error)
	UpsertParentalControls(ctx context.Context, controls *core.ParentalControls) error

	// Tasks and completions
	CreateTask(ctx context.Context, task *core.Task) error
	GetTask(ctx context.Context, id string) (*core.Task, error)
	ListTasks(ctx context.Context) ([]*core.Task, error)
	CreateTaskCompletion(ctx context.Context, completion *core.TaskCompletion) error
	GetTaskCompletion(ctx context.Context, id string) (*core.TaskCompletion, error)
	ReviewTaskCompletion(ctx context.Context, id string, status core.CompletionStatus, reviewedAt time.Time) error

	// Lifecycle
	Close() error
}
