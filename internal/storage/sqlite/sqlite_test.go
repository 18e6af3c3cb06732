package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"vigil/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	storage, err := New(dbPath, time.UTC)
	require.NoError(t, err)

	t.Cleanup(func() {
		storage.Close()
	})

	return storage
}

func newOpenSession(id, childID, deviceID string, start time.Time) *core.Session {
	return &core.Session{
		ID:             id,
		ChildID:        childID,
		DeviceID:       deviceID,
		AppName:        "MathApp",
		AppCategory:    core.CategoryEducational,
		StartTime:      start,
		LastActivityAt: start,
	}
}

func TestSQLiteStorage_Sessions(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	start := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	session := newOpenSession("sess_1", "child1", "tablet1", start)

	err := storage.CreateSession(ctx, session)
	require.NoError(t, err)

	// GetSession
	retrieved, err := storage.GetSession(ctx, "sess_1")
	require.NoError(t, err)
	assert.Equal(t, session.ID, retrieved.ID)
	assert.Equal(t, session.ChildID, retrieved.ChildID)
	assert.Equal(t, core.CategoryEducational, retrieved.AppCategory)
	assert.True(t, retrieved.IsOpen())
	assert.False(t, retrieved.Applied)

	// GetSession - not found
	_, err = storage.GetSession(ctx, "nonexistent")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)

	// GetOpenSession
	open, err := storage.GetOpenSession(ctx, "child1", "tablet1")
	require.NoError(t, err)
	assert.Equal(t, "sess_1", open.ID)

	_, err = storage.GetOpenSession(ctx, "child1", "phone1")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)

	// UpdateSessionActivity
	beat := start.Add(2 * time.Minute)
	require.NoError(t, storage.UpdateSessionActivity(ctx, "sess_1", beat))
	retrieved, err = storage.GetSession(ctx, "sess_1")
	require.NoError(t, err)
	assert.True(t, retrieved.LastActivityAt.Equal(beat))
}

func TestSQLiteStorage_OpenSessionUniquePerPair(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	start := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	require.NoError(t, storage.CreateSession(ctx, newOpenSession("sess_1", "child1", "tablet1", start)))

	// The partial unique index rejects a second open row for the pair
	err := storage.CreateSession(ctx, newOpenSession("sess_2", "child1", "tablet1", start))
	assert.Error(t, err)

	// A different device is fine
	require.NoError(t, storage.CreateSession(ctx, newOpenSession("sess_3", "child1", "phone1", start)))
}

func TestSQLiteStorage_CloseSession(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	start := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	session := newOpenSession("sess_1", "child1", "tablet1", start)
	require.NoError(t, storage.CreateSession(ctx, session))

	end := start.Add(30 * time.Minute)
	duration := 30
	session.EndTime = &end
	session.DurationMinutes = &duration
	session.Applied = true

	require.NoError(t, storage.CloseSession(ctx, session))

	retrieved, err := storage.GetSession(ctx, "sess_1")
	require.NoError(t, err)
	assert.False(t, retrieved.IsOpen())
	require.NotNil(t, retrieved.DurationMinutes)
	assert.Equal(t, 30, *retrieved.DurationMinutes)
	assert.True(t, retrieved.Applied)

	// Closing an already-closed session fails the compare-and-set
	err = storage.CloseSession(ctx, session)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)

	// The pair has no open session anymore, so a new one can start
	require.NoError(t, storage.CreateSession(ctx, newOpenSession("sess_2", "child1", "tablet1", end)))
}

func TestSQLiteStorage_ListOpenSessions(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	start := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	require.NoError(t, storage.CreateSession(ctx, newOpenSession("sess_1", "child1", "tablet1", start)))
	require.NoError(t, storage.CreateSession(ctx, newOpenSession("sess_2", "child2", "tablet2", start)))

	closing := newOpenSession("sess_3", "child3", "tablet3", start)
	require.NoError(t, storage.CreateSession(ctx, closing))
	end := start.Add(time.Minute)
	duration := 1
	closing.EndTime = &end
	closing.DurationMinutes = &duration
	require.NoError(t, storage.CloseSession(ctx, closing))

	open, err := storage.ListOpenSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 2)
}

func TestSQLiteStorage_ListSessionsByChild(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	day1 := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 6, 4, 10, 0, 0, 0, time.UTC)
	require.NoError(t, storage.CreateSession(ctx, newOpenSession("sess_1", "child1", "tablet1", day1)))
	require.NoError(t, storage.CreateSession(ctx, newOpenSession("sess_2", "child1", "phone1", day2)))
	require.NoError(t, storage.CreateSession(ctx, newOpenSession("sess_3", "child2", "tablet2", day1)))

	sessions, err := storage.ListSessionsByChild(ctx, "child1", day1)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "sess_1", sessions[0].ID)
}

func TestSQLiteStorage_DailyAggregates(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	date := time.Date(2024, 6, 3, 14, 30, 0, 0, time.UTC)

	// Missing row reads as zero usage
	agg, err := storage.GetDailyAggregate(ctx, "child1", date)
	require.NoError(t, err)
	assert.Equal(t, 0, agg.TotalSeconds)
	assert.Equal(t, 0, agg.SessionCount)

	// First increment creates the row
	err = storage.IncrementDailyAggregate(ctx, "child1", date, core.AggregateDelta{
		TotalSeconds:       1800,
		EducationalSeconds: 1800,
		SessionCount:       1,
	})
	require.NoError(t, err)

	// Second increment accumulates
	err = storage.IncrementDailyAggregate(ctx, "child1", date, core.AggregateDelta{
		TotalSeconds:         600,
		EntertainmentSeconds: 600,
		SessionCount:         1,
	})
	require.NoError(t, err)

	err = storage.IncrementDailyAggregate(ctx, "child1", date, core.AggregateDelta{BonusMinutes: 15})
	require.NoError(t, err)

	agg, err = storage.GetDailyAggregate(ctx, "child1", date)
	require.NoError(t, err)
	assert.Equal(t, 2400, agg.TotalSeconds)
	assert.Equal(t, 1800, agg.EducationalSeconds)
	assert.Equal(t, 600, agg.EntertainmentSeconds)
	assert.Equal(t, 15, agg.BonusMinutes)
	assert.Equal(t, 2, agg.SessionCount)

	// Different times on the same day hit the same row
	sameDay, err := storage.GetDailyAggregate(ctx, "child1", date.Add(5*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2400, sameDay.TotalSeconds)
}

func TestSQLiteStorage_ParentalControls(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	// Missing row
	_, err := storage.GetParentalControls(ctx, "child1")
	assert.ErrorIs(t, err, core.ErrControlsNotFound)

	limit := 120
	bedStart := core.TimeOfDay{Hour: 21, Minute: 0}
	bedEnd := core.TimeOfDay{Hour: 7, Minute: 30}
	focusUntil := time.Date(2024, 6, 3, 17, 0, 0, 0, time.UTC)

	controls := &core.ParentalControls{
		ChildID:                 "child1",
		Enabled:                 true,
		DailyTimeLimitMinutes:   &limit,
		BedtimeStart:            &bedStart,
		BedtimeEnd:              &bedEnd,
		WarningThresholdMinutes: 15,
		FocusModeUntil:          &focusUntil,
		UpdatedAt:               time.Now(),
	}

	require.NoError(t, storage.UpsertParentalControls(ctx, controls))

	retrieved, err := storage.GetParentalControls(ctx, "child1")
	require.NoError(t, err)
	assert.True(t, retrieved.Enabled)
	require.NotNil(t, retrieved.DailyTimeLimitMinutes)
	assert.Equal(t, 120, *retrieved.DailyTimeLimitMinutes)
	require.NotNil(t, retrieved.BedtimeStart)
	assert.Equal(t, bedStart, *retrieved.BedtimeStart)
	require.NotNil(t, retrieved.BedtimeEnd)
	assert.Equal(t, bedEnd, *retrieved.BedtimeEnd)
	require.NotNil(t, retrieved.FocusModeUntil)
	assert.True(t, retrieved.FocusModeUntil.Equal(focusUntil))

	// Upsert replaces the whole row, clearing unset optionals
	require.NoError(t, storage.UpsertParentalControls(ctx, &core.ParentalControls{
		ChildID:   "child1",
		Enabled:   false,
		UpdatedAt: time.Now(),
	}))

	retrieved, err = storage.GetParentalControls(ctx, "child1")
	require.NoError(t, err)
	assert.False(t, retrieved.Enabled)
	assert.Nil(t, retrieved.DailyTimeLimitMinutes)
	assert.Nil(t, retrieved.BedtimeStart)
	assert.Nil(t, retrieved.FocusModeUntil)
}

func TestSQLiteStorage_Tasks(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	task := &core.Task{
		ID:            "task_1",
		Title:         "Clean room",
		RewardMinutes: 30,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, storage.CreateTask(ctx, task))

	retrieved, err := storage.GetTask(ctx, "task_1")
	require.NoError(t, err)
	assert.Equal(t, task.Title, retrieved.Title)
	assert.Equal(t, 30, retrieved.RewardMinutes)

	_, err = storage.GetTask(ctx, "nonexistent")
	assert.ErrorIs(t, err, core.ErrTaskNotFound)

	tasks, err := storage.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestSQLiteStorage_TaskCompletions(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	task := &core.Task{ID: "task_1", Title: "Clean room", RewardMinutes: 30, CreatedAt: time.Now()}
	require.NoError(t, storage.CreateTask(ctx, task))

	completion := &core.TaskCompletion{
		ID:          "cmp_1",
		TaskID:      "task_1",
		ChildID:     "child1",
		Status:      core.CompletionStatusPending,
		CompletedAt: time.Now(),
	}
	require.NoError(t, storage.CreateTaskCompletion(ctx, completion))

	retrieved, err := storage.GetTaskCompletion(ctx, "cmp_1")
	require.NoError(t, err)
	assert.Equal(t, core.CompletionStatusPending, retrieved.Status)
	assert.Nil(t, retrieved.ReviewedAt)

	_, err = storage.GetTaskCompletion(ctx, "nonexistent")
	assert.ErrorIs(t, err, core.ErrCompletionNotFound)

	// Review transitions pending exactly once
	reviewedAt := time.Now()
	require.NoError(t, storage.ReviewTaskCompletion(ctx, "cmp_1", core.CompletionStatusApproved, reviewedAt))

	retrieved, err = storage.GetTaskCompletion(ctx, "cmp_1")
	require.NoError(t, err)
	assert.Equal(t, core.CompletionStatusApproved, retrieved.Status)
	require.NotNil(t, retrieved.ReviewedAt)

	// A second review loses the compare-and-set
	err = storage.ReviewTaskCompletion(ctx, "cmp_1", core.CompletionStatusRejected, time.Now())
	assert.ErrorIs(t, err, core.ErrAlreadyReviewed)

	// Unknown id is distinguished from an already-reviewed one
	err = storage.ReviewTaskCompletion(ctx, "cmp_unknown", core.CompletionStatusApproved, time.Now())
	assert.ErrorIs(t, err, core.ErrCompletionNotFound)
}
