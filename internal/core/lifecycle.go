package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"vigil/internal/idgen"
)

// SessionStorage defines the storage operations the lifecycle engine needs
type SessionStorage interface {
	CreateSession(ctx context.Context, session *Session) error
	// GetOpenSession returns the open session for a (child, device) pair, or
	// ErrSessionNotFound if none is open.
	GetOpenSession(ctx context.Context, childID, deviceID string) (*Session, error)
	// CloseSession persists EndTime, DurationMinutes and the Applied marker in
	// one write. It fails with ErrSessionNotFound if the session is already
	// closed, so racing closers cannot double-apply.
	CloseSession(ctx context.Context, session *Session) error
	UpdateSessionActivity(ctx context.Context, sessionID string, at time.Time) error
}

// SessionEngine is the state machine governing one device/child usage
// session: start, heartbeat, stop. It guarantees at most one open session per
// (child, device) pair by serializing events per pair.
type SessionEngine struct {
	storage        SessionStorage
	aggregates     *AggregateEngine
	staleThreshold time.Duration
	locks          *keyedMutex
	logger         *slog.Logger
}

// NewSessionEngine creates a new session lifecycle engine. staleThreshold is
// how long a session may go without an observed event before a heartbeat
// closes it as abandoned.
func NewSessionEngine(storage SessionStorage, aggregates *AggregateEngine, staleThreshold time.Duration, logger *slog.Logger) *SessionEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionEngine{
		storage:        storage,
		aggregates:     aggregates,
		staleThreshold: staleThreshold,
		locks:          newKeyedMutex(),
		logger:         logger,
	}
}

// Start opens a session for the (child, device) pair. If one is already open
// the call is an idempotent no-op returning the existing session: a duplicate
// start signal from an unreliable reporting client must not fork parallel
// sessions.
func (e *SessionEngine) Start(ctx context.Context, childID, deviceID, appName string, category AppCategory, at time.Time) (*Session, error) {
	unlock := e.locks.Lock(sessionKey(childID, deviceID))
	defer unlock()

	existing, err := e.storage.GetOpenSession(ctx, childID, deviceID)
	if err == nil {
		e.logger.Debug("Duplicate start ignored",
			"component", "core",
			"session_id", existing.ID,
			"child_id", childID,
			"device_id", deviceID)
		return existing, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return nil, fmt.Errorf("failed to look up open session: %w", err)
	}

	session := &Session{
		ID:             idgen.NewSession(),
		ChildID:        childID,
		DeviceID:       deviceID,
		AppName:        appName,
		AppCategory:    category,
		StartTime:      at,
		LastActivityAt: at,
	}

	if err := session.Validate(); err != nil {
		return nil, err
	}

	if err := e.storage.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	e.logger.Info("Session started",
		"component", "core",
		"session_id", session.ID,
		"child_id", childID,
		"device_id", deviceID,
		"app_name", appName,
		"app_category", string(category))

	return session, nil
}

// Heartbeat records liveness for the open session. If the session has been
// silent longer than the stale threshold it is closed at its last observed
// activity first (self-healing against devices that crash without sending
// stop), and the heartbeat fails with ErrNoActiveSession so the device
// re-starts.
func (e *SessionEngine) Heartbeat(ctx context.Context, childID, deviceID string, at time.Time) (*Session, error) {
	unlock := e.locks.Lock(sessionKey(childID, deviceID))
	defer unlock()

	session, err := e.storage.GetOpenSession(ctx, childID, deviceID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, ErrNoActiveSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up open session: %w", err)
	}

	if at.Sub(session.LastActivityAt) > e.staleThreshold {
		e.logger.Warn("Stale session detected on heartbeat, closing at last activity",
			"component", "core",
			"session_id", session.ID,
			"last_activity_at", session.LastActivityAt,
			"heartbeat_at", at)

		if err := e.close(ctx, session, session.LastActivityAt); err != nil {
			return nil, err
		}
		return nil, ErrNoActiveSession
	}

	session.LastActivityAt = at
	if err := e.storage.UpdateSessionActivity(ctx, session.ID, at); err != nil {
		return nil, fmt.Errorf("failed to update session activity: %w", err)
	}

	return session, nil
}

// Stop closes the open session at the given time and applies it to the daily
// aggregates for every calendar day it spans. With no open session it fails
// with ErrNoActiveSession; callers log and proceed, since a duplicate stop is
// expected after a heartbeat-triggered auto-close.
func (e *SessionEngine) Stop(ctx context.Context, childID, deviceID string, at time.Time) (*Session, error) {
	unlock := e.locks.Lock(sessionKey(childID, deviceID))
	defer unlock()

	session, err := e.storage.GetOpenSession(ctx, childID, deviceID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, ErrNoActiveSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up open session: %w", err)
	}

	if err := e.close(ctx, session, at); err != nil {
		return nil, err
	}

	return session, nil
}

// ForceCloseStale closes a session that has outlived the abandoned-session
// grace period, using the same close logic as stop. The session is re-fetched
// under the pair lock; a session already closed by a racing stop is left
// alone.
func (e *SessionEngine) ForceCloseStale(ctx context.Context, session *Session) error {
	unlock := e.locks.Lock(sessionKey(session.ChildID, session.DeviceID))
	defer unlock()

	current, err := e.storage.GetOpenSession(ctx, session.ChildID, session.DeviceID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up open session: %w", err)
	}
	if current.ID != session.ID {
		return nil
	}

	e.logger.Info("Force-closing abandoned session",
		"component", "core",
		"session_id", current.ID,
		"last_activity_at", current.LastActivityAt)

	return e.close(ctx, current, current.LastActivityAt)
}

// close transitions a session to Closed and applies it to the aggregates.
// Must be called with the pair lock held. If the reported end precedes the
// start (clock skew) the duration is clamped to zero rather than negative.
func (e *SessionEngine) close(ctx context.Context, session *Session, at time.Time) error {
	end := at
	if end.Before(session.StartTime) {
		e.logger.Warn("Stop time precedes session start, clamping duration to zero",
			"component", "core",
			"session_id", session.ID,
			"start_time", session.StartTime,
			"stop_time", at)
		end = session.StartTime
	}

	duration := int(end.Sub(session.StartTime).Minutes())
	session.EndTime = &end
	session.DurationMinutes = &duration
	session.Applied = true

	if err := e.storage.CloseSession(ctx, session); err != nil {
		return fmt.Errorf("failed to close session %s: %w", session.ID, err)
	}

	if err := e.aggregates.ApplySessionClose(ctx, session); err != nil {
		return err
	}

	e.logger.Info("Session closed",
		"component", "core",
		"session_id", session.ID,
		"child_id", session.ChildID,
		"device_id", session.DeviceID,
		"duration_minutes", duration)

	return nil
}
