package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"vigil/internal/idgen"
)

// EventType is the kind of session event a device reports
type EventType string

const (
	EventStart     EventType = "start"
	EventStop      EventType = "stop"
	EventHeartbeat EventType = "heartbeat"
)

// Valid reports whether the event type is known
func (t EventType) Valid() bool {
	switch t {
	case EventStart, EventStop, EventHeartbeat:
		return true
	}
	return false
}

// SessionEvent is a device's report of session activity
type SessionEvent struct {
	Type        EventType
	ChildID     string
	DeviceID    string
	AppName     string
	AppCategory AppCategory
	Timestamp   time.Time
}

// EventResult is returned to the reporting device. The verdict is the policy
// evaluator's current result, returned opportunistically so a device can
// self-throttle.
type EventResult struct {
	SessionID string
	Verdict   Verdict
}

// ServiceStorage defines the storage operations the service facade needs
// beyond those of the engines it composes
type ServiceStorage interface {
	GetParentalControls(ctx context.Context, childID string) (*ParentalControls, error)
	UpsertParentalControls(ctx context.Context, controls *ParentalControls) error

	CreateTask(ctx context.Context, task *Task) error
	ListTasks(ctx context.Context) ([]*Task, error)
	CreateTaskCompletion(ctx context.Context, completion *TaskCompletion) error
}

// ErrInvalidEvent is returned for malformed session event reports
var ErrInvalidEvent = errors.New("invalid session event")

// Service is the facade reporting devices and dashboard views talk to. It
// routes session events through the lifecycle engine, evaluates policy
// against the fresh aggregate, and owns the controls/tasks write paths.
type Service struct {
	sessions   *SessionEngine
	aggregates *AggregateEngine
	policy     *Evaluator
	rewards    *RewardService
	storage    ServiceStorage
	timezone   *time.Location
	clock      Clock
	logger     *slog.Logger
}

// NewService creates the service facade
func NewService(
	sessions *SessionEngine,
	aggregates *AggregateEngine,
	policy *Evaluator,
	rewards *RewardService,
	storage ServiceStorage,
	timezone *time.Location,
	clock Clock,
	logger *slog.Logger,
) *Service {
	if timezone == nil {
		timezone = time.UTC
	}
	if clock == nil {
		clock = RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		sessions:   sessions,
		aggregates: aggregates,
		policy:     policy,
		rewards:    rewards,
		storage:    storage,
		timezone:   timezone,
		clock:      clock,
		logger:     logger,
	}
}

// ReportSessionEvent processes a start/stop/heartbeat report and returns the
// session id (when one is open or was just acted on) plus the current policy
// verdict. A stop or heartbeat that finds nothing open is treated as an
// idempotent no-op: a duplicate stop is expected after an auto-close.
func (s *Service) ReportSessionEvent(ctx context.Context, event SessionEvent) (*EventResult, error) {
	if !event.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, event.Type)
	}
	if event.ChildID == "" || event.DeviceID == "" {
		return nil, fmt.Errorf("%w: child and device are required", ErrInvalidEvent)
	}
	if event.Timestamp.IsZero() {
		return nil, fmt.Errorf("%w: timestamp is required", ErrInvalidEvent)
	}

	var sessionID string

	switch event.Type {
	case EventStart:
		category := event.AppCategory
		if category == "" {
			category = CategoryOther
		}
		session, err := s.sessions.Start(ctx, event.ChildID, event.DeviceID, event.AppName, category, event.Timestamp)
		if err != nil {
			return nil, err
		}
		sessionID = session.ID

	case EventHeartbeat:
		session, err := s.sessions.Heartbeat(ctx, event.ChildID, event.DeviceID, event.Timestamp)
		if errors.Is(err, ErrNoActiveSession) {
			s.logger.Debug("Heartbeat without active session",
				"component", "core",
				"child_id", event.ChildID,
				"device_id", event.DeviceID)
		} else if err != nil {
			return nil, err
		} else {
			sessionID = session.ID
		}

	case EventStop:
		session, err := s.sessions.Stop(ctx, event.ChildID, event.DeviceID, event.Timestamp)
		if errors.Is(err, ErrNoActiveSession) {
			s.logger.Debug("Stop without active session",
				"component", "core",
				"child_id", event.ChildID,
				"device_id", event.DeviceID)
		} else if err != nil {
			return nil, err
		} else {
			sessionID = session.ID
		}
	}

	verdict, err := s.GetVerdict(ctx, event.ChildID, event.Timestamp)
	if err != nil {
		return nil, err
	}

	return &EventResult{SessionID: sessionID, Verdict: verdict}, nil
}

// GetVerdict evaluates policy for a child at the given time, independent of
// any session event. A child with no controls row is treated as unrestricted.
func (s *Service) GetVerdict(ctx context.Context, childID string, at time.Time) (Verdict, error) {
	controls, err := s.storage.GetParentalControls(ctx, childID)
	if errors.Is(err, ErrControlsNotFound) {
		controls = nil
	} else if err != nil {
		return Verdict{}, fmt.Errorf("failed to load controls for child %s: %w", childID, err)
	}

	aggregate, err := s.aggregates.GetDailyAggregate(ctx, childID, at)
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to load aggregate for child %s: %w", childID, err)
	}

	return s.policy.Evaluate(controls, aggregate, at), nil
}

// GetDailyAggregate returns the rollup for a child on a calendar day
func (s *Service) GetDailyAggregate(ctx context.Context, childID string, date time.Time) (*DailyAggregate, error) {
	return s.aggregates.GetDailyAggregate(ctx, childID, date)
}

// UpdateControls validates and persists a child's controls configuration
func (s *Service) UpdateControls(ctx context.Context, controls *ParentalControls) error {
	if err := controls.Validate(); err != nil {
		return err
	}
	controls.UpdatedAt = s.clock.Now()
	if err := s.storage.UpsertParentalControls(ctx, controls); err != nil {
		return fmt.Errorf("failed to save controls for child %s: %w", controls.ChildID, err)
	}

	s.logger.Info("Parental controls updated",
		"component", "core",
		"child_id", controls.ChildID,
		"enabled", controls.Enabled)

	return nil
}

// GetControls returns a child's controls configuration
func (s *Service) GetControls(ctx context.Context, childID string) (*ParentalControls, error) {
	return s.storage.GetParentalControls(ctx, childID)
}

// CreateTask registers a rewardable task
func (s *Service) CreateTask(ctx context.Context, task *Task) (*Task, error) {
	if err := task.Validate(); err != nil {
		return nil, err
	}
	task.ID = idgen.NewTask()
	task.CreatedAt = s.clock.Now()
	if err := s.storage.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

// ListTasks returns all rewardable tasks
func (s *Service) ListTasks(ctx context.Context) ([]*Task, error) {
	return s.storage.ListTasks(ctx)
}

// ClaimCompletion records a child's pending claim of a completed task
func (s *Service) ClaimCompletion(ctx context.Context, taskID, childID string) (*TaskCompletion, error) {
	if taskID == "" || childID == "" {
		return nil, ErrInvalidChildID
	}

	completion := &TaskCompletion{
		ID:          idgen.NewCompletion(),
		TaskID:      taskID,
		ChildID:     childID,
		Status:      CompletionStatusPending,
		CompletedAt: s.clock.Now(),
	}

	if err := s.storage.CreateTaskCompletion(ctx, completion); err != nil {
		return nil, fmt.Errorf("failed to record completion: %w", err)
	}

	return completion, nil
}

// ApproveCompletion approves a pending completion and credits its reward
func (s *Service) ApproveCompletion(ctx context.Context, completionID string) error {
	return s.rewards.ApproveCompletion(ctx, completionID)
}

// RejectCompletion rejects a pending completion
func (s *Service) RejectCompletion(ctx context.Context, completionID string) error {
	return s.rewards.RejectCompletion(ctx, completionID)
}
