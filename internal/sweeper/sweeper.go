package sweeper

import (
	"context"
	"log/slog"
	"time"

	"vigil/internal/core"
)

// Storage interface for sweeper operations
type Storage interface {
	ListOpenSessions(ctx context.Context) ([]*core.Session, error)
}

// SessionCloser force-closes sessions using the engine's stop logic
type SessionCloser interface {
	ForceCloseStale(ctx context.Context, session *core.Session) error
}

// Sweeper periodically force-closes open sessions that have gone silent past
// the grace period. Heartbeats already self-heal stale sessions on the next
// event; the sweeper catches devices that never report again.
type Sweeper struct {
	storage  Storage
	closer   SessionCloser
	grace    time.Duration
	interval time.Duration
	stopChan chan struct{}
	logger   *slog.Logger
}

// NewSweeper creates a new sweeper
func NewSweeper(storage Storage, closer SessionCloser, grace, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		storage:  storage,
		closer:   closer,
		grace:    grace,
		interval: interval,
		stopChan: make(chan struct{}),
		logger:   logger,
	}
}

// Start begins the sweeper loop
func (s *Sweeper) Start() {
	s.logger.Info("Sweeper started",
		"grace", s.grace.String(),
		"interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(time.Now())
		case <-s.stopChan:
			s.logger.Info("Sweeper stopped")
			return
		}
	}
}

// Stop stops the sweeper
func (s *Sweeper) Stop() {
	close(s.stopChan)
}

// tick performs one sweep cycle
func (s *Sweeper) tick(now time.Time) {
	ctx := context.Background()

	sessions, err := s.storage.ListOpenSessions(ctx)
	if err != nil {
		s.logger.Error("Failed to list open sessions", "error", err)
		return
	}

	s.logger.Debug("Sweeper tick", "open_sessions", len(sessions))

	for _, session := range sessions {
		if now.Sub(session.LastActivityAt) <= s.grace {
			continue
		}

		s.logger.Info("Sweeping abandoned session",
			"session_id", session.ID,
			"child_id", session.ChildID,
			"device_id", session.DeviceID,
			"last_activity_at", session.LastActivityAt)

		if err := s.closer.ForceCloseStale(ctx, session); err != nil {
			s.logger.Error("Failed to force-close session",
				"session_id", session.ID,
				"error", err)
		}
	}
}
