package core

import (
	"context"
	"time"
)

// ServiceInterface defines the contract exposed to reporting devices and
// guardian-facing views
type ServiceInterface interface {
	ReportSessionEvent(ctx context.Context, event SessionEvent) (*EventResult, error)
	GetVerdict(ctx context.Context, childID string, at time.Time) (Verdict, error)
	GetDailyAggregate(ctx context.Context, childID string, date time.Time) (*DailyAggregate, error)
	UpdateControls(ctx context.Context, controls *ParentalControls) error
	GetControls(ctx context.Context, childID string) (*ParentalControls, error)
	CreateTask(ctx context.Context, task *Task) (*Task, error)
	ListTasks(ctx context.Context) ([]*Task, error)
	ClaimCompletion(ctx context.Context, taskID, childID string) (*TaskCompletion, error)
	ApproveCompletion(ctx context.Context, completionID string) error
	RejectCompletion(ctx context.Context, completionID string) error
}
