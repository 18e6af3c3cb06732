package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"vigil/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStorage struct {
	sessions []*core.Session
	failList bool
}

func (m *mockStorage) ListOpenSessions(ctx context.Context) ([]*core.Session, error) {
	if m.failList {
		return nil, errors.New("list failed")
	}
	return m.sessions, nil
}

type mockCloser struct {
	closed    []string
	failClose bool
}

func (m *mockCloser) ForceCloseStale(ctx context.Context, session *core.Session) error {
	if m.failClose {
		return errors.New("close failed")
	}
	m.closed = append(m.closed, session.ID)
	return nil
}

func openSession(id string, lastActivity time.Time) *core.Session {
	return &core.Session{
		ID:             id,
		ChildID:        "child1",
		DeviceID:       "tablet1",
		AppCategory:    core.CategoryGames,
		StartTime:      lastActivity.Add(-time.Hour),
		LastActivityAt: lastActivity,
	}
}

func TestSweeper_ClosesAbandonedSessions(t *testing.T) {
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

	storage := &mockStorage{sessions: []*core.Session{
		openSession("sess_fresh", now.Add(-5*time.Minute)),
		openSession("sess_stale", now.Add(-30*time.Minute)),
		openSession("sess_at_grace", now.Add(-15*time.Minute)),
	}}
	closer := &mockCloser{}

	sweeper := NewSweeper(storage, closer, 15*time.Minute, time.Minute, nil)
	sweeper.tick(now)

	// Only the session strictly past the grace period is closed
	require.Len(t, closer.closed, 1)
	assert.Equal(t, "sess_stale", closer.closed[0])
}

func TestSweeper_NoOpenSessions(t *testing.T) {
	storage := &mockStorage{}
	closer := &mockCloser{}

	sweeper := NewSweeper(storage, closer, 15*time.Minute, time.Minute, nil)
	sweeper.tick(time.Now())

	assert.Empty(t, closer.closed)
}

func TestSweeper_ContinuesAfterCloseFailure(t *testing.T) {
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

	storage := &mockStorage{sessions: []*core.Session{
		openSession("sess_1", now.Add(-30*time.Minute)),
	}}
	closer := &mockCloser{failClose: true}

	sweeper := NewSweeper(storage, closer, 15*time.Minute, time.Minute, nil)

	// A failing close is logged, not fatal
	sweeper.tick(now)
}

func TestSweeper_StartStop(t *testing.T) {
	storage := &mockStorage{}
	closer := &mockCloser{}

	sweeper := NewSweeper(storage, closer, 15*time.Minute, 10*time.Millisecond, nil)

	done := make(chan struct{})
	go func() {
		sweeper.Start()
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	sweeper.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
