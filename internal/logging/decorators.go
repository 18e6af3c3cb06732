package logging

import (
	"context"
	"log/slog"
	"time"

	"vigil/internal/core"
)

// ServiceLogger wraps the core service and logs all method calls
type ServiceLogger struct {
	service core.ServiceInterface
	logger  *slog.Logger
}

// NewServiceLogger creates a new logging decorator for the core service
func NewServiceLogger(service core.ServiceInterface, logger *slog.Logger) core.ServiceInterface {
	return &ServiceLogger{
		service: service,
		logger:  logger.With("interface", "Service"),
	}
}

func (l *ServiceLogger) ReportSessionEvent(ctx context.Context, event core.SessionEvent) (*core.EventResult, error) {
	start := time.Now()
	l.logger.Debug("ReportSessionEvent called",
		"event_type", string(event.Type),
		"child_id", event.ChildID,
		"device_id", event.DeviceID)

	result, err := l.service.ReportSessionEvent(ctx, event)
	duration := time.Since(start)

	if err != nil {
		l.logger.Error("ReportSessionEvent failed",
			"event_type", string(event.Type),
			"child_id", event.ChildID,
			"device_id", event.DeviceID,
			"duration", duration,
			"error", err)
		return nil, err
	}

	l.logger.Info("ReportSessionEvent completed",
		"event_type", string(event.Type),
		"child_id", event.ChildID,
		"device_id", event.DeviceID,
		"session_id", result.SessionID,
		"decision", string(result.Verdict.Decision),
		"duration", duration)

	return result, nil
}

func (l *ServiceLogger) GetVerdict(ctx context.Context, childID string, at time.Time) (core.Verdict, error) {
	verdict, err := l.service.GetVerdict(ctx, childID, at)
	if err != nil {
		l.logger.Error("GetVerdict failed",
			"child_id", childID,
			"error", err)
		return core.Verdict{}, err
	}

	l.logger.Debug("GetVerdict completed",
		"child_id", childID,
		"decision", string(verdict.Decision),
		"reason", verdict.Reason)

	return verdict, nil
}

func (l *ServiceLogger) GetDailyAggregate(ctx context.Context, childID string, date time.Time) (*core.DailyAggregate, error) {
	aggregate, err := l.service.GetDailyAggregate(ctx, childID, date)
	if err != nil {
		l.logger.Error("GetDailyAggregate failed",
			"child_id", childID,
			"date", date.Format("2006-01-02"),
			"error", err)
		return nil, err
	}
	return aggregate, nil
}

func (l *ServiceLogger) UpdateControls(ctx context.Context, controls *core.ParentalControls) error {
	err := l.service.UpdateControls(ctx, controls)
	if err != nil {
		l.logger.Error("UpdateControls failed",
			"child_id", controls.ChildID,
			"error", err)
		return err
	}

	l.logger.Info("UpdateControls completed",
		"child_id", controls.ChildID,
		"enabled", controls.Enabled)

	return nil
}

func (l *ServiceLogger) GetControls(ctx context.Context, childID string) (*core.ParentalControls, error) {
	return l.service.GetControls(ctx, childID)
}

func (l *ServiceLogger) CreateTask(ctx context.Context, task *core.Task) (*core.Task, error) {
	created, err := l.service.CreateTask(ctx, task)
	if err != nil {
		l.logger.Error("CreateTask failed",
			"title", task.Title,
			"error", err)
		return nil, err
	}

	l.logger.Info("CreateTask completed",
		"task_id", created.ID,
		"reward_minutes", created.RewardMinutes)

	return created, nil
}

func (l *ServiceLogger) ListTasks(ctx context.Context) ([]*core.Task, error) {
	return l.service.ListTasks(ctx)
}

func (l *ServiceLogger) ClaimCompletion(ctx context.Context, taskID, childID string) (*core.TaskCompletion, error) {
	completion, err := l.service.ClaimCompletion(ctx, taskID, childID)
	if err != nil {
		l.logger.Error("ClaimCompletion failed",
			"task_id", taskID,
			"child_id", childID,
			"error", err)
		return nil, err
	}

	l.logger.Info("ClaimCompletion completed",
		"completion_id", completion.ID,
		"task_id", taskID,
		"child_id", childID)

	return completion, nil
}

func (l *ServiceLogger) ApproveCompletion(ctx context.Context, completionID string) error {
	start := time.Now()
	err := l.service.ApproveCompletion(ctx, completionID)
	duration := time.Since(start)

	if err != nil {
		l.logger.Error("ApproveCompletion failed",
			"completion_id", completionID,
			"duration", duration,
			"error", err)
		return err
	}

	l.logger.Info("ApproveCompletion completed",
		"completion_id", completionID,
		"duration", duration)

	return nil
}

func (l *ServiceLogger) RejectCompletion(ctx context.Context, completionID string) error {
	err := l.service.RejectCompletion(ctx, completionID)
	if err != nil {
		l.logger.Error("RejectCompletion failed",
			"completion_id", completionID,
			"error", err)
		return err
	}

	l.logger.Info("RejectCompletion completed",
		"completion_id", completionID)

	return nil
}
