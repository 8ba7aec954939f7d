package repository

import (
	"database/sql"
	"fmt"

	"readingclash/internal/database"
	"readingclash/internal/models"
)

// ReadingRepository handles database operations for reading sessions and
// per-student level state
type ReadingRepository struct {
	db *database.DB
}

// NewReadingRepository creates a new reading repository
func NewReadingRepository(db *database.DB) *ReadingRepository {
	return &ReadingRepository{db: db}
}

// InsertSession appends an immutable reading session record
func (r *ReadingRepository) InsertSession(studentID int64, sessionDate string, durationMinutes int, completed bool) (*models.ReadingSession, error) {
	query := "INSERT INTO reading_sessions (student_id, session_date, duration_minutes, completed) VALUES (?, ?, ?, ?)"
	id, err := r.db.ExecReturningID(query, studentID, sessionDate, durationMinutes, completed)
	if err != nil {
		return nil, fmt.Errorf("failed to insert reading session: %w", err)
	}

	return &models.ReadingSession{
		ID:              id,
		StudentID:       studentID,
		SessionDate:     sessionDate,
		DurationMinutes: durationMinutes,
		Completed:       completed,
	}, nil
}

// GetCompletedDates returns the set of dates on or after since that hold
// at least one completed session for the student
func (r *ReadingRepository) GetCompletedDates(studentID int64, since string) (map[string]bool, error) {
	query := `
		SELECT DISTINCT session_date
		FROM reading_sessions
		WHERE student_id = ? AND session_date >= ? AND completed = ?
	`
	rows, err := r.db.Query(query, studentID, since, true)
	if err != nil {
		return nil, fmt.Errorf("failed to query completed dates: %w", err)
	}
	defer rows.Close()

	dates := make(map[string]bool)
	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return nil, fmt.Errorf("failed to scan session date: %w", err)
		}
		dates[date] = true
	}

	return dates, nil
}

// GetDailyMinutes returns total reading minutes per date within [from, to]
func (r *ReadingRepository) GetDailyMinutes(studentID int64, from, to string) (map[string]int, error) {
	query := `
		SELECT session_date, SUM(duration_minutes)
		FROM reading_sessions
		WHERE student_id = ? AND session_date >= ? AND session_date <= ?
		GROUP BY session_date
	`
	rows, err := r.db.Query(query, studentID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily minutes: %w", err)
	}
	defer rows.Close()

	minutes := make(map[string]int)
	for rows.Next() {
		var date string
		var total int
		if err := rows.Scan(&date, &total); err != nil {
			return nil, fmt.Errorf("failed to scan daily minutes: %w", err)
		}
		minutes[date] = total
	}

	return minutes, nil
}

// GetStudentSessions returns a student's sessions newest first
func (r *ReadingRepository) GetStudentSessions(studentID int64, limit int) ([]models.ReadingSession, error) {
	query := `
		SELECT id, student_id, session_date, duration_minutes, completed, created_at
		FROM reading_sessions
		WHERE student_id = ?
		ORDER BY session_date DESC, id DESC
		LIMIT ?
	`
	rows, err := r.db.Query(query, studentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query student sessions: %w", err)
	}
	defer rows.Close()

	return scanReadingSessions(rows)
}

// GetAllSessions retrieves every reading session
func (r *ReadingRepository) GetAllSessions() ([]models.ReadingSession, error) {
	query := `
		SELECT id, student_id, session_date, duration_minutes, completed, created_at
		FROM reading_sessions
		ORDER BY id ASC
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query reading sessions: %w", err)
	}
	defer rows.Close()

	return scanReadingSessions(rows)
}

func scanReadingSessions(rows *sql.Rows) ([]models.ReadingSession, error) {
	var sessions []models.ReadingSession
	for rows.Next() {
		var session models.ReadingSession
		if err := rows.Scan(
			&session.ID,
			&session.StudentID,
			&session.SessionDate,
			&session.DurationMinutes,
			&session.Completed,
			&session.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reading session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// GetLevelState retrieves a student's level state
func (r *ReadingRepository) GetLevelState(studentID int64) (*models.StudentLevelState, error) {
	query := `
		SELECT student_id, current_level, days_at_current_level, days_below_threshold, last_evaluated, updated_at
		FROM student_level_state
		WHERE student_id = ?
	`
	state := &models.StudentLevelState{}
	err := r.db.QueryRow(query, studentID).Scan(
		&state.StudentID,
		&state.CurrentLevel,
		&state.DaysAtCurrentLevel,
		&state.DaysBelowThreshold,
		&state.LastEvaluated,
		&state.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get level state: %w", err)
	}

	return state, nil
}

// SaveLevelState upserts a student's level state
func (r *ReadingRepository) SaveLevelState(state *models.StudentLevelState) error {
	query := `
		UPDATE student_level_state
		SET current_level = ?, days_at_current_level = ?, days_below_threshold = ?,
		    last_evaluated = ?, updated_at = CURRENT_TIMESTAMP
		WHERE student_id = ?
	`
	result, err := r.db.Exec(query,
		state.CurrentLevel, state.DaysAtCurrentLevel, state.DaysBelowThreshold,
		state.LastEvaluated, state.StudentID)
	if err != nil {
		return fmt.Errorf("failed to update level state: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check level state update: %w", err)
	}
	if affected > 0 {
		return nil
	}

	query = `
		INSERT INTO student_level_state
		(student_id, current_level, days_at_current_level, days_below_threshold, last_evaluated)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query,
		state.StudentID, state.CurrentLevel, state.DaysAtCurrentLevel,
		state.DaysBelowThreshold, state.LastEvaluated)
	if err != nil {
		return fmt.Errorf("failed to insert level state: %w", err)
	}
	return nil
}
