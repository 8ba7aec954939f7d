package service

import (
	"errors"
	"fmt"
	"time"

	"readingclash/internal/models"
	"readingclash/internal/repository"
)

var (
	ErrStudentNotFound = errors.New("student not found")
	ErrInvalidDuration = errors.New("duration must be a positive number of minutes")
)

// streakIterationCap bounds the backward walk; not a business rule
const streakIterationCap = 365

// ComputeStreak counts consecutive completed days ending at today, with a
// one-day grace window: a miss today does not zero the streak until
// tomorrow. completed is keyed by YYYY-MM-DD.
func ComputeStreak(completed map[string]bool, today time.Time) int {
	day := today
	if !completed[day.Format(models.DateLayout)] {
		day = day.AddDate(0, 0, -1)
		if !completed[day.Format(models.DateLayout)] {
			return 0
		}
	}

	streak := 0
	for i := 0; i < streakIterationCap; i++ {
		if !completed[day.Format(models.DateLayout)] {
			break
		}
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// BuildTimelineCalendar returns the 21-day display window spanning
// today-14 through today+6 inclusive
func BuildTimelineCalendar(completed map[string]bool, today time.Time) []models.DayCell {
	cells := make([]models.DayCell, 0, 21)
	for offset := -14; offset <= 6; offset++ {
		day := today.AddDate(0, 0, offset)
		key := day.Format(models.DateLayout)
		cells = append(cells, models.DayCell{
			Date:       key,
			HasReading: completed[key],
			DayName:    day.Format("Mon"),
			DayNumber:  day.Day(),
			IsToday:    offset == 0,
			IsFuture:   offset > 0,
			IsRecent:   offset >= -7 && offset <= 7,
		})
	}
	return cells
}

// RecomputeLevel applies one day's level transition to state. last7Minutes
// holds total minutes per day for the trailing week, oldest first, with
// the final element being today; missing days are zeroes.
func RecomputeLevel(state models.StudentLevelState, last7Minutes [7]int) models.StudentLevelState {
	todayMinutes := last7Minutes[len(last7Minutes)-1]

	sum := 0
	for _, m := range last7Minutes {
		sum += m
	}
	avg7 := float64(sum) / float64(len(last7Minutes))

	band := models.BandFor(state.CurrentLevel)

	switch {
	case todayMinutes >= band.MinMinutes && (band.MaxMinutes < 0 || todayMinutes <= band.MaxMinutes):
		state.DaysBelowThreshold = 0
		state.DaysAtCurrentLevel++

	case todayMinutes < band.MinMinutes:
		state.DaysBelowThreshold++
		if state.DaysBelowThreshold >= models.DemotionDayLimit && !models.IsFloor(state.CurrentLevel) {
			state.CurrentLevel = models.PreviousLevel(state.CurrentLevel)
			state.DaysAtCurrentLevel = 1
			state.DaysBelowThreshold = 0
		}

	default:
		state.DaysBelowThreshold = 0
		if state.DaysAtCurrentLevel >= models.PromotionDayMinimum &&
			!models.IsCeiling(state.CurrentLevel) &&
			models.LevelForMinutes(avg7) == models.NextLevel(state.CurrentLevel) {
			state.CurrentLevel = models.NextLevel(state.CurrentLevel)
			state.DaysAtCurrentLevel = 1
		}
	}

	return state
}

// HabitsDashboard is the read-model returned to the habits screen
type HabitsDashboard struct {
	Streak       int               `json:"streak"`
	Calendar     []models.DayCell  `json:"calendar"`
	CurrentLevel models.LevelBand  `json:"currentLevel"`
	LevelState   LevelStateSummary `json:"levelState"`
	TodayMinutes int               `json:"todayMinutes"`
}

// LevelStateSummary is the public slice of the persisted level state
type LevelStateSummary struct {
	DaysAtCurrentLevel int `json:"daysAtCurrentLevel"`
	DaysBelowThreshold int `json:"daysBelowThreshold"`
}

// HabitsService orchestrates session recording, streak derivation, and
// the daily level transition
type HabitsService struct {
	readingRepo *repository.ReadingRepository
	studentRepo *repository.StudentRepository
	now         func() time.Time
}

// NewHabitsService creates a new habits service
func NewHabitsService(readingRepo *repository.ReadingRepository, studentRepo *repository.StudentRepository) *HabitsService {
	return &HabitsService{
		readingRepo: readingRepo,
		studentRepo: studentRepo,
		now:         time.Now,
	}
}

// RecordSession writes an immutable session for today. Sessions under the
// completion threshold are banked as partial progress.
func (s *HabitsService) RecordSession(studentID int64, durationMinutes int) (*models.ReadingSession, error) {
	if durationMinutes <= 0 {
		return nil, ErrInvalidDuration
	}

	student, err := s.studentRepo.GetStudentByID(studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up student: %w", err)
	}
	if student == nil {
		return nil, ErrStudentNotFound
	}

	today := s.now().Format(models.DateLayout)
	completed := durationMinutes >= models.CompletionThresholdMinutes

	session, err := s.readingRepo.InsertSession(studentID, today, durationMinutes, completed)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// RecentSessions returns the student's most recent sessions, newest first
func (s *HabitsService) RecentSessions(studentID int64, limit int) ([]models.ReadingSession, error) {
	student, err := s.studentRepo.GetStudentByID(studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up student: %w", err)
	}
	if student == nil {
		return nil, ErrStudentNotFound
	}

	return s.readingRepo.GetStudentSessions(studentID, limit)
}

// EvaluateDay applies today's level transition for the student. Repeated
// calls on the same day are no-ops; the prior persisted state is left
// untouched when anything fails.
func (s *HabitsService) EvaluateDay(studentID int64) (*models.StudentLevelState, error) {
	today := s.now()
	todayKey := today.Format(models.DateLayout)

	state, err := s.readingRepo.GetLevelState(studentID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		initial := models.NewLevelState(studentID)
		state = &initial
	}
	if state.LastEvaluated == todayKey {
		return state, nil
	}

	from := today.AddDate(0, 0, -6).Format(models.DateLayout)
	daily, err := s.readingRepo.GetDailyMinutes(studentID, from, todayKey)
	if err != nil {
		return nil, err
	}

	var last7 [7]int
	for i := 0; i < 7; i++ {
		key := today.AddDate(0, 0, i-6).Format(models.DateLayout)
		last7[i] = daily[key]
	}

	next := RecomputeLevel(*state, last7)
	next.LastEvaluated = todayKey

	if err := s.readingRepo.SaveLevelState(&next); err != nil {
		return nil, err
	}
	return &next, nil
}

// GetDashboard assembles the habits read-model for a student, running the
// daily evaluation first so the level shown is current
func (s *HabitsService) GetDashboard(studentID int64) (*HabitsDashboard, error) {
	student, err := s.studentRepo.GetStudentByID(studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up student: %w", err)
	}
	if student == nil {
		return nil, ErrStudentNotFound
	}

	state, err := s.EvaluateDay(studentID)
	if err != nil {
		return nil, err
	}

	today := s.now()
	todayKey := today.Format(models.DateLayout)
	since := today.AddDate(0, 0, -(streakIterationCap + 1)).Format(models.DateLayout)

	completed, err := s.readingRepo.GetCompletedDates(studentID, since)
	if err != nil {
		return nil, err
	}

	daily, err := s.readingRepo.GetDailyMinutes(studentID, todayKey, todayKey)
	if err != nil {
		return nil, err
	}

	return &HabitsDashboard{
		Streak:       ComputeStreak(completed, today),
		Calendar:     BuildTimelineCalendar(completed, today),
		CurrentLevel: models.BandFor(state.CurrentLevel),
		LevelState: LevelStateSummary{
			DaysAtCurrentLevel: state.DaysAtCurrentLevel,
			DaysBelowThreshold: state.DaysBelowThreshold,
		},
		TodayMinutes: daily[todayKey],
	}, nil
}
