package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RewardStorage defines the storage operations the reward service needs
type RewardStorage interface {
	GetTask(ctx context.Context, id string) (*Task, error)
	GetTaskCompletion(ctx context.Context, id string) (*TaskCompletion, error)
	// ReviewTaskCompletion transitions a completion from pending to the given
	// status as a compare-and-set. It fails with ErrAlreadyReviewed if the
	// completion is no longer pending, so two racing approvals cannot both
	// win the transition.
	ReviewTaskCompletion(ctx context.Context, id string, status CompletionStatus, reviewedAt time.Time) error
}

// RewardService applies approved task rewards to the day's bonus bucket.
// The pending->approved transition at the store is the idempotence key: a
// completion id is credited exactly once no matter how often approval is
// requested.
type RewardService struct {
	storage    RewardStorage
	aggregates *AggregateEngine
	clock      Clock
	logger     *slog.Logger
}

// NewRewardService creates a new reward crediting service
func NewRewardService(storage RewardStorage, aggregates *AggregateEngine, clock Clock, logger *slog.Logger) *RewardService {
	if clock == nil {
		clock = RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RewardService{
		storage:    storage,
		aggregates: aggregates,
		clock:      clock,
		logger:     logger,
	}
}

// ApproveCompletion approves a pending completion and credits the task's
// reward minutes to today's bonus bucket. Fails with ErrCompletionNotFound
// for an unknown id and ErrAlreadyReviewed if the completion is not pending.
func (s *RewardService) ApproveCompletion(ctx context.Context, completionID string) error {
	completion, err := s.storage.GetTaskCompletion(ctx, completionID)
	if err != nil {
		return err
	}
	if completion.Status != CompletionStatusPending {
		return ErrAlreadyReviewed
	}

	task, err := s.storage.GetTask(ctx, completion.TaskID)
	if err != nil {
		return fmt.Errorf("failed to look up task %s: %w", completion.TaskID, err)
	}

	now := s.clock.Now()

	// The CAS transition guards the credit: only the caller that wins the
	// pending->approved write goes on to apply bonus minutes.
	if err := s.storage.ReviewTaskCompletion(ctx, completionID, CompletionStatusApproved, now); err != nil {
		return err
	}

	if err := s.aggregates.ApplyCredit(ctx, completion.ChildID, now, task.RewardMinutes); err != nil {
		return err
	}

	s.logger.Info("Task completion approved",
		"component", "core",
		"completion_id", completionID,
		"task_id", task.ID,
		"child_id", completion.ChildID,
		"reward_minutes", task.RewardMinutes)

	return nil
}

// RejectCompletion rejects a pending completion. No minutes are credited.
func (s *RewardService) RejectCompletion(ctx context.Context, completionID string) error {
	completion, err := s.storage.GetTaskCompletion(ctx, completionID)
	if err != nil {
		return err
	}
	if completion.Status != CompletionStatusPending {
		return ErrAlreadyReviewed
	}

	if err := s.storage.ReviewTaskCompletion(ctx, completionID, CompletionStatusRejected, s.clock.Now()); err != nil {
		return err
	}

	s.logger.Info("Task completion rejected",
		"component", "core",
		"completion_id", completionID,
		"child_id", completion.ChildID)

	return nil
}
