package service

import (
	"testing"
	"time"

	"readingclash/internal/models"
	"readingclash/internal/repository"
)

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	day, err := time.Parse(models.DateLayout, value)
	if err != nil {
		t.Fatalf("bad date %q: %v", value, err)
	}
	return day
}

func dateSet(dates ...string) map[string]bool {
	set := make(map[string]bool, len(dates))
	for _, d := range dates {
		set[d] = true
	}
	return set
}

func TestComputeStreak(t *testing.T) {
	tests := []struct {
		name      string
		completed map[string]bool
		today     string
		want      int
	}{
		{
			name:      "empty history",
			completed: dateSet(),
			today:     "2025-01-10",
			want:      0,
		},
		{
			name:      "single completed day today",
			completed: dateSet("2025-01-10"),
			today:     "2025-01-10",
			want:      1,
		},
		{
			name:      "run ending today",
			completed: dateSet("2025-01-08", "2025-01-09", "2025-01-10"),
			today:     "2025-01-10",
			want:      3,
		},
		{
			name:      "grace window preserves run ending yesterday",
			completed: dateSet("2025-01-07", "2025-01-08", "2025-01-09"),
			today:     "2025-01-10",
			want:      3,
		},
		{
			name:      "two day gap resets to zero",
			completed: dateSet("2025-01-05", "2025-01-06", "2025-01-07", "2025-01-08"),
			today:     "2025-01-10",
			want:      0,
		},
		{
			name:      "gap inside history only counts recent run",
			completed: dateSet("2025-01-01", "2025-01-02", "2025-01-09", "2025-01-10"),
			today:     "2025-01-10",
			want:      2,
		},
		{
			name:      "incomplete today complete yesterday",
			completed: dateSet("2025-01-01"),
			today:     "2025-01-02",
			want:      1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeStreak(tt.completed, mustDate(t, tt.today))
			if got != tt.want {
				t.Errorf("ComputeStreak() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestComputeStreakCrossesMonthBoundary(t *testing.T) {
	completed := dateSet("2025-01-30", "2025-01-31", "2025-02-01")
	got := ComputeStreak(completed, mustDate(t, "2025-02-01"))
	if got != 3 {
		t.Errorf("ComputeStreak() = %d, want 3", got)
	}
}

func TestBuildTimelineCalendar(t *testing.T) {
	today := mustDate(t, "2025-01-15")
	completed := dateSet("2025-01-14", "2025-01-01")

	cells := BuildTimelineCalendar(completed, today)

	if len(cells) != 21 {
		t.Fatalf("expected 21 cells, got %d", len(cells))
	}
	if cells[0].Date != "2025-01-01" {
		t.Errorf("first cell = %s, want 2025-01-01", cells[0].Date)
	}
	if cells[20].Date != "2025-01-21" {
		t.Errorf("last cell = %s, want 2025-01-21", cells[20].Date)
	}

	todayCell := cells[14]
	if !todayCell.IsToday || todayCell.Date != "2025-01-15" {
		t.Errorf("cell 14 = %+v, want today 2025-01-15", todayCell)
	}
	if todayCell.IsFuture {
		t.Error("today must not be marked future")
	}
	if !cells[15].IsFuture {
		t.Error("cell after today must be marked future")
	}
	if cells[13].IsFuture {
		t.Error("cell before today must not be marked future")
	}

	if !cells[13].HasReading {
		t.Error("2025-01-14 should have reading")
	}
	if !cells[0].HasReading {
		t.Error("2025-01-01 should have reading")
	}
	if cells[12].HasReading {
		t.Error("2025-01-13 should not have reading")
	}

	// recency window is today plus or minus seven days
	if cells[6].IsRecent {
		t.Error("2025-01-07 is outside the recency window")
	}
	if !cells[7].IsRecent {
		t.Error("2025-01-08 is inside the recency window")
	}
	if !cells[20].IsRecent {
		t.Error("2025-01-21 is inside the recency window")
	}

	if cells[14].DayNumber != 15 {
		t.Errorf("today DayNumber = %d, want 15", cells[14].DayNumber)
	}
	if cells[14].DayName == "" {
		t.Error("DayName must be set")
	}
}

func TestRecomputeLevelWithinBand(t *testing.T) {
	state := models.StudentLevelState{
		CurrentLevel:       models.LevelBrightBeacon,
		DaysAtCurrentLevel: 3,
		DaysBelowThreshold: 2,
	}

	next := RecomputeLevel(state, [7]int{0, 0, 0, 0, 0, 0, 25})

	if next.CurrentLevel != models.LevelBrightBeacon {
		t.Errorf("level = %s, want bright_beacon", next.CurrentLevel)
	}
	if next.DaysAtCurrentLevel != 4 {
		t.Errorf("daysAtCurrentLevel = %d, want 4", next.DaysAtCurrentLevel)
	}
	if next.DaysBelowThreshold != 0 {
		t.Errorf("daysBelowThreshold = %d, want 0", next.DaysBelowThreshold)
	}
}

func TestRecomputeLevelDemotion(t *testing.T) {
	state := models.StudentLevelState{
		CurrentLevel:       models.LevelRadiantReader,
		DaysAtCurrentLevel: 10,
		DaysBelowThreshold: 0,
	}

	// three below-minimum days accumulate without demoting
	for i := 0; i < 3; i++ {
		state = RecomputeLevel(state, [7]int{0, 0, 0, 0, 0, 0, 10})
		if state.CurrentLevel != models.LevelRadiantReader {
			t.Fatalf("demoted after %d below days", i+1)
		}
	}
	if state.DaysBelowThreshold != 3 {
		t.Fatalf("daysBelowThreshold = %d, want 3", state.DaysBelowThreshold)
	}

	// the fourth drops one tier and resets counters
	state = RecomputeLevel(state, [7]int{0, 0, 0, 0, 0, 0, 10})
	if state.CurrentLevel != models.LevelBrightBeacon {
		t.Errorf("level = %s, want bright_beacon", state.CurrentLevel)
	}
	if state.DaysAtCurrentLevel != 1 {
		t.Errorf("daysAtCurrentLevel = %d, want 1", state.DaysAtCurrentLevel)
	}
	if state.DaysBelowThreshold != 0 {
		t.Errorf("daysBelowThreshold = %d, want 0", state.DaysBelowThreshold)
	}
}

func TestRecomputeLevelDemotionFloor(t *testing.T) {
	state := models.StudentLevelState{CurrentLevel: models.LevelFaithfulFlame}

	for i := 0; i < 12; i++ {
		state = RecomputeLevel(state, [7]int{0, 0, 0, 0, 0, 0, 0})
	}

	if state.CurrentLevel != models.LevelFaithfulFlame {
		t.Errorf("level = %s, want faithful_flame", state.CurrentLevel)
	}
}

func TestRecomputeLevelPromotion(t *testing.T) {
	state := models.StudentLevelState{
		CurrentLevel:       models.LevelFaithfulFlame,
		DaysAtCurrentLevel: 7,
	}

	// today exceeds the band and the weekly average lands in the next tier
	next := RecomputeLevel(state, [7]int{25, 25, 25, 25, 25, 25, 25})

	if next.CurrentLevel != models.LevelBrightBeacon {
		t.Errorf("level = %s, want bright_beacon", next.CurrentLevel)
	}
	if next.DaysAtCurrentLevel != 1 {
		t.Errorf("daysAtCurrentLevel = %d, want 1", next.DaysAtCurrentLevel)
	}
}

func TestRecomputeLevelPromotionRequiresTenure(t *testing.T) {
	state := models.StudentLevelState{
		CurrentLevel:       models.LevelFaithfulFlame,
		DaysAtCurrentLevel: 5,
	}

	next := RecomputeLevel(state, [7]int{25, 25, 25, 25, 25, 25, 25})

	if next.CurrentLevel != models.LevelFaithfulFlame {
		t.Errorf("level = %s, want faithful_flame", next.CurrentLevel)
	}
}

func TestRecomputeLevelPromotionRequiresAverageInNextTier(t *testing.T) {
	state := models.StudentLevelState{
		CurrentLevel:       models.LevelFaithfulFlame,
		DaysAtCurrentLevel: 9,
	}

	// one big day with a flat week: average stays in the current tier
	next := RecomputeLevel(state, [7]int{0, 0, 0, 0, 0, 0, 40})

	if next.CurrentLevel != models.LevelFaithfulFlame {
		t.Errorf("level = %s, want faithful_flame", next.CurrentLevel)
	}
	if next.DaysBelowThreshold != 0 {
		t.Errorf("daysBelowThreshold = %d, want 0", next.DaysBelowThreshold)
	}
}

func TestRecomputeLevelPromotionSkipsTiers(t *testing.T) {
	state := models.StudentLevelState{
		CurrentLevel:       models.LevelFaithfulFlame,
		DaysAtCurrentLevel: 9,
	}

	// average implies radiant_reader, two tiers up, so no promotion fires
	next := RecomputeLevel(state, [7]int{45, 45, 45, 45, 45, 45, 45})

	if next.CurrentLevel != models.LevelFaithfulFlame {
		t.Errorf("level = %s, want faithful_flame", next.CurrentLevel)
	}
}

func TestRecomputeLevelPromotionCeiling(t *testing.T) {
	state := models.StudentLevelState{
		CurrentLevel:       models.LevelLuminousLegend,
		DaysAtCurrentLevel: 30,
	}

	for i := 0; i < 10; i++ {
		state = RecomputeLevel(state, [7]int{90, 90, 90, 90, 90, 90, 90})
	}

	if state.CurrentLevel != models.LevelLuminousLegend {
		t.Errorf("level = %s, want luminous_legend", state.CurrentLevel)
	}
}

func TestEvaluateDaySameDayIdempotent(t *testing.T) {
	f := newLinkingFixture(t)
	school := f.createSchool(t, "TXTEST-DEMO")
	student := f.createStudent(t, school, "Emma", "S", 5)

	readingRepo := repository.NewReadingRepository(f.db)
	svc := NewHabitsService(readingRepo, f.studentRepo)
	today := mustDate(t, "2025-01-15")
	svc.now = func() time.Time { return today }

	// 15 minutes sits inside the floor band, so the first evaluation
	// counts a day at the current level
	if _, err := svc.RecordSession(student.ID, 15); err != nil {
		t.Fatalf("RecordSession() error = %v", err)
	}

	first, err := svc.EvaluateDay(student.ID)
	if err != nil {
		t.Fatalf("EvaluateDay() error = %v", err)
	}
	if first.DaysAtCurrentLevel != 1 {
		t.Fatalf("daysAtCurrentLevel = %d, want 1", first.DaysAtCurrentLevel)
	}
	if first.LastEvaluated != "2025-01-15" {
		t.Fatalf("lastEvaluated = %q, want 2025-01-15", first.LastEvaluated)
	}

	// repeated same-day calls must not re-count the day
	second, err := svc.EvaluateDay(student.ID)
	if err != nil {
		t.Fatalf("EvaluateDay() second call error = %v", err)
	}
	if second.DaysAtCurrentLevel != 1 {
		t.Errorf("daysAtCurrentLevel after repeat = %d, want 1", second.DaysAtCurrentLevel)
	}

	// the dashboard runs the evaluation too; a page reload is another
	// same-day call
	dashboard, err := svc.GetDashboard(student.ID)
	if err != nil {
		t.Fatalf("GetDashboard() error = %v", err)
	}
	if dashboard.LevelState.DaysAtCurrentLevel != 1 {
		t.Errorf("dashboard daysAtCurrentLevel = %d, want 1", dashboard.LevelState.DaysAtCurrentLevel)
	}
	if dashboard.TodayMinutes != 15 {
		t.Errorf("todayMinutes = %d, want 15", dashboard.TodayMinutes)
	}

	persisted, err := readingRepo.GetLevelState(student.ID)
	if err != nil || persisted == nil {
		t.Fatalf("GetLevelState() = %v, %v", persisted, err)
	}
	if persisted.DaysAtCurrentLevel != 1 {
		t.Errorf("persisted daysAtCurrentLevel = %d, want 1", persisted.DaysAtCurrentLevel)
	}

	// the next day evaluates again
	svc.now = func() time.Time { return today.AddDate(0, 0, 1) }
	if _, err := svc.RecordSession(student.ID, 15); err != nil {
		t.Fatalf("RecordSession() error = %v", err)
	}
	third, err := svc.EvaluateDay(student.ID)
	if err != nil {
		t.Fatalf("EvaluateDay() next-day error = %v", err)
	}
	if third.DaysAtCurrentLevel != 2 {
		t.Errorf("daysAtCurrentLevel next day = %d, want 2", third.DaysAtCurrentLevel)
	}
	if third.LastEvaluated != "2025-01-16" {
		t.Errorf("lastEvaluated = %q, want 2025-01-16", third.LastEvaluated)
	}
}
