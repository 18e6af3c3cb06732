package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"vigil/internal/core"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStorage implements storage.Storage using SQLite
type SQLiteStorage struct {
	db       *sql.DB
	timezone *time.Location
}

// New creates a new SQLite storage instance
func New(dbPath string, timezone *time.Location) (*SQLiteStorage, error) {
	if timezone == nil {
		timezone = time.UTC
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	storage := &SQLiteStorage{
		db:       db,
		timezone: timezone,
	}

	if err := storage.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return storage, nil
}

// migrate creates the database schema
func (s *SQLiteStorage) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			child_id TEXT NOT NULL,
			device_id TEXT NOT NULL,
			app_name TEXT NOT NULL,
			app_category TEXT NOT NULL,
			start_time DATETIME NOT NULL,
			end_time DATETIME,
			duration_minutes INTEGER,
			last_activity_at DATETIME NOT NULL,
			applied INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		-- Only one open session per (child, device) pair
		CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_open
			ON sessions(child_id, device_id) WHERE end_time IS NULL;
		CREATE INDEX IF NOT EXISTS idx_sessions_child ON sessions(child_id, start_time);

		CREATE TABLE IF NOT EXISTS daily_aggregates (
			child_id TEXT NOT NULL,
			date DATE NOT NULL,
			total_seconds INTEGER NOT NULL DEFAULT 0,
			educational_seconds INTEGER NOT NULL DEFAULT 0,
			entertainment_seconds INTEGER NOT NULL DEFAULT 0,
			bonus_minutes INTEGER NOT NULL DEFAULT 0,
			session_count INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (child_id, date)
		);

		CREATE INDEX IF NOT EXISTS idx_daily_aggregates_date ON daily_aggregates(date);

		CREATE TABLE IF NOT EXISTS parental_controls (
			child_id TEXT PRIMARY KEY,
			enabled INTEGER NOT NULL DEFAULT 0,
			daily_limit_minutes INTEGER,
			bedtime_start_minutes INTEGER,
			bedtime_end_minutes INTEGER,
			warning_threshold_minutes INTEGER NOT NULL DEFAULT 15,
			focus_mode_until DATETIME,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			reward_minutes INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS task_completions (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			child_id TEXT NOT NULL,
			status TEXT NOT NULL,
			completed_at DATETIME NOT NULL,
			reviewed_at DATETIME,
			FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_completions_status ON task_completions(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateSession creates a new session
func (s *SQLiteStorage) CreateSession(ctx context.Context, session *core.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}

	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, child_id, device_id, app_name, app_category,
			start_time, end_time, duration_minutes, last_activity_at, applied,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, NULL, NULL, ?, 0, ?, ?)
	`, session.ID, session.ChildID, session.DeviceID, session.AppName, string(session.AppCategory),
		session.StartTime, session.LastActivityAt, session.CreatedAt, session.UpdatedAt)

	return err
}

// GetSession retrieves a session by ID
func (s *SQLiteStorage) GetSession(ctx context.Context, id string) (*core.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, child_id, device_id, app_name, app_category, start_time,
			end_time, duration_minutes, last_activity_at, applied, created_at, updated_at
		FROM sessions WHERE id = ?
	`, id)

	return s.scanSession(row)
}

// GetOpenSession retrieves the open session for a (child, device) pair
func (s *SQLiteStorage) GetOpenSession(ctx context.Context, childID, deviceID string) (*core.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, child_id, device_id, app_name, app_category, start_time,
			end_time, duration_minutes, last_activity_at, applied, created_at, updated_at
		FROM sessions WHERE child_id = ? AND device_id = ? AND end_time IS NULL
	`, childID, deviceID)

	return s.scanSession(row)
}

// ListOpenSessions retrieves all open sessions
func (s *SQLiteStorage) ListOpenSessions(ctx context.Context) ([]*core.Session, error) {
	return s.listSessionsByCondition(ctx, "end_time IS NULL")
}

// ListSessionsByChild retrieves a child's sessions that started on a given
// calendar day
func (s *SQLiteStorage) ListSessionsByChild(ctx context.Context, childID string, date time.Time) ([]*core.Session, error) {
	dayStart := core.NormalizeDate(date, s.timezone)
	dayEnd := dayStart.AddDate(0, 0, 1)

	return s.listSessionsByCondition(ctx,
		"child_id = ? AND start_time >= ? AND start_time < ?",
		childID, dayStart, dayEnd)
}

// CloseSession persists the closed state of a session. The WHERE clause only
// matches an open row, so a session already closed by a racing caller fails
// with ErrSessionNotFound instead of being closed twice.
func (s *SQLiteStorage) CloseSession(ctx context.Context, session *core.Session) error {
	if session.EndTime == nil || session.DurationMinutes == nil {
		return core.ErrSessionNotClosed
	}

	session.UpdatedAt = time.Now()

	result, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET end_time = ?, duration_minutes = ?, applied = 1, updated_at = ?
		WHERE id = ? AND end_time IS NULL
	`, *session.EndTime, *session.DurationMinutes, session.UpdatedAt, session.ID)

	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return core.ErrSessionNotFound
	}

	return nil
}

// UpdateSessionActivity bumps a session's last observed activity time
func (s *SQLiteStorage) UpdateSessionActivity(ctx context.Context, sessionID string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET last_activity_at = ?, updated_at = ? WHERE id = ?
	`, at, time.Now(), sessionID)

	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return core.ErrSessionNotFound
	}

	return nil
}

// GetDailyAggregate retrieves the aggregate for a child on a specific date.
// A missing row reads as zero usage.
func (s *SQLiteStorage) GetDailyAggregate(ctx context.Context, childID string, date time.Time) (*core.DailyAggregate, error) {
	normalizedDate := core.NormalizeDate(date, s.timezone)

	var agg core.DailyAggregate
	err := s.db.QueryRowContext(ctx, `
		SELECT child_id, date, total_seconds, educational_seconds, entertainment_seconds,
			bonus_minutes, session_count, created_at, updated_at
		FROM daily_aggregates WHERE child_id = ? AND date = ?
	`, childID, normalizedDate).Scan(&agg.ChildID, &agg.Date, &agg.TotalSeconds,
		&agg.EducationalSeconds, &agg.EntertainmentSeconds, &agg.BonusMinutes,
		&agg.SessionCount, &agg.CreatedAt, &agg.UpdatedAt)

	if err == sql.ErrNoRows {
		return &core.DailyAggregate{
			ChildID: childID,
			Date:    normalizedDate,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	return &agg, nil
}

// IncrementDailyAggregate atomically applies a delta to the (child, date)
// row, creating it first if it does not exist. The upsert-with-increment
// replaces a fetch-then-branch cycle so concurrent session closes and credit
// applications cannot lose updates.
func (s *SQLiteStorage) IncrementDailyAggregate(ctx context.Context, childID string, date time.Time, delta core.AggregateDelta) error {
	normalizedDate := core.NormalizeDate(date, s.timezone)
	now := time.Now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_aggregates (child_id, date, total_seconds, educational_seconds,
			entertainment_seconds, bonus_minutes, session_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(child_id, date) DO UPDATE SET
			total_seconds = total_seconds + excluded.total_seconds,
			educational_seconds = educational_seconds + excluded.educational_seconds,
			entertainment_seconds = entertainment_seconds + excluded.entertainment_seconds,
			bonus_minutes = bonus_minutes + excluded.bonus_minutes,
			session_count = session_count + excluded.session_count,
			updated_at = excluded.updated_at
	`, childID, normalizedDate, delta.TotalSeconds, delta.EducationalSeconds,
		delta.EntertainmentSeconds, delta.BonusMinutes, delta.SessionCount, now, now)

	return err
}

// GetParentalControls retrieves a child's controls configuration
func (s *SQLiteStorage) GetParentalControls(ctx context.Context, childID string) (*core.ParentalControls, error) {
	var controls core.ParentalControls
	var enabled int
	var dailyLimit, bedtimeStart, bedtimeEnd sql.NullInt64
	var focusModeUntil sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT child_id, enabled, daily_limit_minutes, bedtime_start_minutes,
			bedtime_end_minutes, warning_threshold_minutes, focus_mode_until, updated_at
		FROM parental_controls WHERE child_id = ?
	`, childID).Scan(&controls.ChildID, &enabled, &dailyLimit, &bedtimeStart,
		&bedtimeEnd, &controls.WarningThresholdMinutes, &focusModeUntil, &controls.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, core.ErrControlsNotFound
	}
	if err != nil {
		return nil, err
	}

	controls.Enabled = enabled != 0
	if dailyLimit.Valid {
		limit := int(dailyLimit.Int64)
		controls.DailyTimeLimitMinutes = &limit
	}
	if bedtimeStart.Valid {
		t := minutesToTimeOfDay(int(bedtimeStart.Int64))
		controls.BedtimeStart = &t
	}
	if bedtimeEnd.Valid {
		t := minutesToTimeOfDay(int(bedtimeEnd.Int64))
		controls.BedtimeEnd = &t
	}
	if focusModeUntil.Valid {
		controls.FocusModeUntil = &focusModeUntil.Time
	}

	return &controls, nil
}

// UpsertParentalControls creates or replaces a child's controls configuration
func (s *SQLiteStorage) UpsertParentalControls(ctx context.Context, controls *core.ParentalControls) error {
	if err := controls.Validate(); err != nil {
		return err
	}

	var dailyLimit, bedtimeStart, bedtimeEnd sql.NullInt64
	var focusModeUntil sql.NullTime

	if controls.DailyTimeLimitMinutes != nil {
		dailyLimit = sql.NullInt64{Int64: int64(*controls.DailyTimeLimitMinutes), Valid: true}
	}
	if controls.BedtimeStart != nil {
		bedtimeStart = sql.NullInt64{Int64: int64(controls.BedtimeStart.MinuteOfDay()), Valid: true}
	}
	if controls.BedtimeEnd != nil {
		bedtimeEnd = sql.NullInt64{Int64: int64(controls.BedtimeEnd.MinuteOfDay()), Valid: true}
	}
	if controls.FocusModeUntil != nil {
		focusModeUntil = sql.NullTime{Time: *controls.FocusModeUntil, Valid: true}
	}

	enabled := 0
	if controls.Enabled {
		enabled = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO parental_controls (child_id, enabled, daily_limit_minutes,
			bedtime_start_minutes, bedtime_end_minutes, warning_threshold_minutes,
			focus_mode_until, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(child_id) DO UPDATE SET
			enabled = excluded.enabled,
			daily_limit_minutes = excluded.daily_limit_minutes,
			bedtime_start_minutes = excluded.bedtime_start_minutes,
			bedtime_end_minutes = excluded.bedtime_end_minutes,
			warning_threshold_minutes = excluded.warning_threshold_minutes,
			focus_mode_until = excluded.focus_mode_until,
			updated_at = excluded.updated_at
	`, controls.ChildID, enabled, dailyLimit, bedtimeStart, bedtimeEnd,
		controls.WarningThresholdMinutes, focusModeUntil, controls.UpdatedAt)

	return err
}

// CreateTask creates a new task
func (s *SQLiteStorage) CreateTask(ctx context.Context, task *core.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, title, reward_minutes, created_at)
		VALUES (?, ?, ?, ?)
	`, task.ID, task.Title, task.RewardMinutes, task.CreatedAt)

	return err
}

// GetTask retrieves a task by ID
func (s *SQLiteStorage) GetTask(ctx context.Context, id string) (*core.Task, error) {
	var task core.Task
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, reward_minutes, created_at FROM tasks WHERE id = ?
	`, id).Scan(&task.ID, &task.Title, &task.RewardMinutes, &task.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, core.ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}

	return &task, nil
}

// ListTasks retrieves all tasks
func (s *SQLiteStorage) ListTasks(ctx context.Context) ([]*core.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, reward_minutes, created_at FROM tasks ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*core.Task
	for rows.Next() {
		var task core.Task
		if err := rows.Scan(&task.ID, &task.Title, &task.RewardMinutes, &task.CreatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, &task)
	}

	return tasks, rows.Err()
}

// CreateTaskCompletion records a pending completion claim
func (s *SQLiteStorage) CreateTaskCompletion(ctx context.Context, completion *core.TaskCompletion) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_completions (id, task_id, child_id, status, completed_at, reviewed_at)
		VALUES (?, ?, ?, ?, ?, NULL)
	`, completion.ID, completion.TaskID, completion.ChildID, string(completion.Status), completion.CompletedAt)

	return err
}

// GetTaskCompletion retrieves a completion by ID
func (s *SQLiteStorage) GetTaskCompletion(ctx context.Context, id string) (*core.TaskCompletion, error) {
	var completion core.TaskCompletion
	var status string
	var reviewedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT id, task_id, child_id, status, completed_at, reviewed_at
		FROM task_completions WHERE id = ?
	`, id).Scan(&completion.ID, &completion.TaskID, &completion.ChildID,
		&status, &completion.CompletedAt, &reviewedAt)

	if err == sql.ErrNoRows {
		return nil, core.ErrCompletionNotFound
	}
	if err != nil {
		return nil, err
	}

	completion.Status = core.CompletionStatus(status)
	if reviewedAt.Valid {
		completion.ReviewedAt = &reviewedAt.Time
	}

	return &completion, nil
}

// ReviewTaskCompletion transitions a pending completion to the given status.
// The WHERE clause only matches a pending row, so a completion reviewed by a
// racing caller fails with ErrAlreadyReviewed instead of transitioning twice.
func (s *SQLiteStorage) ReviewTaskCompletion(ctx context.Context, id string, status core.CompletionStatus, reviewedAt time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE task_completions
		SET status = ?, reviewed_at = ?
		WHERE id = ? AND status = ?
	`, string(status), reviewedAt, id, string(core.CompletionStatusPending))

	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// Distinguish an unknown id from a non-pending one
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM task_completions WHERE id = ?)", id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return core.ErrCompletionNotFound
		}
		return core.ErrAlreadyReviewed
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Helper functions

func (s *SQLiteStorage) listSessionsByCondition(ctx context.Context, condition string, args ...interface{}) ([]*core.Session, error) {
	query := `
		SELECT id, child_id, device_id, app_name, app_category, start_time,
			end_time, duration_minutes, last_activity_at, applied, created_at, updated_at
		FROM sessions WHERE ` + condition + ` ORDER BY start_time DESC
	`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*core.Session
	for rows.Next() {
		session, err := s.scanSessionRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}

func (s *SQLiteStorage) scanSession(row *sql.Row) (*core.Session, error) {
	session, err := s.scanSessionRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, core.ErrSessionNotFound
	}
	return session, err
}

func (s *SQLiteStorage) scanSessionRow(scan func(dest ...interface{}) error) (*core.Session, error) {
	var session core.Session
	var category string
	var endTime sql.NullTime
	var duration sql.NullInt64
	var applied int

	err := scan(&session.ID, &session.ChildID, &session.DeviceID, &session.AppName,
		&category, &session.StartTime, &endTime, &duration, &session.LastActivityAt,
		&applied, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return nil, err
	}

	session.AppCategory = core.AppCategory(category)
	session.Applied = applied != 0
	if endTime.Valid {
		session.EndTime = &endTime.Time
	}
	if duration.Valid {
		d := int(duration.Int64)
		session.DurationMinutes = &d
	}

	return &session, nil
}

func minutesToTimeOfDay(minutes int) core.TimeOfDay {
	return core.TimeOfDay{Hour: minutes / 60, Minute: minutes % 60}
}
