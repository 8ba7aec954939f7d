package models

import (
	"testing"
)

func TestLevelForMinutes(t *testing.T) {
	tests := []struct {
		name     string
		minutes  float64
		expected ReadingLevel
	}{
		{name: "zero minutes", minutes: 0, expected: LevelFaithfulFlame},
		{name: "top of floor band", minutes: 20, expected: LevelFaithfulFlame},
		{name: "bottom of second band", minutes: 21, expected: LevelBrightBeacon},
		{name: "fractional average inside band", minutes: 27.5, expected: LevelBrightBeacon},
		{name: "top of second band", minutes: 35, expected: LevelBrightBeacon},
		{name: "bottom of third band", minutes: 36, expected: LevelRadiantReader},
		{name: "top of third band", minutes: 50, expected: LevelRadiantReader},
		{name: "bottom of unbounded band", minutes: 51, expected: LevelLuminousLegend},
		{name: "very large average", minutes: 600, expected: LevelLuminousLegend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := LevelForMinutes(tt.minutes)
			if result != tt.expected {
				t.Errorf("LevelForMinutes(%v) = %v, want %v", tt.minutes, result, tt.expected)
			}
		})
	}
}

func TestNextLevel(t *testing.T) {
	tests := []struct {
		name     string
		level    ReadingLevel
		expected ReadingLevel
	}{
		{name: "floor promotes to second", level: LevelFaithfulFlame, expected: LevelBrightBeacon},
		{name: "second promotes to third", level: LevelBrightBeacon, expected: LevelRadiantReader},
		{name: "third promotes to ceiling", level: LevelRadiantReader, expected: LevelLuminousLegend},
		{name: "ceiling stays at ceiling", level: LevelLuminousLegend, expected: LevelLuminousLegend},
		{name: "unknown maps to floor", level: ReadingLevel("mystery"), expected: LevelFaithfulFlame},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NextLevel(tt.level)
			if result != tt.expected {
				t.Errorf("NextLevel(%v) = %v, want %v", tt.level, result, tt.expected)
			}
		})
	}
}

func TestPreviousLevel(t *testing.T) {
	tests := []struct {
		name     string
		level    ReadingLevel
		expected ReadingLevel
	}{
		{name: "floor stays at floor", level: LevelFaithfulFlame, expected: LevelFaithfulFlame},
		{name: "second demotes to floor", level: LevelBrightBeacon, expected: LevelFaithfulFlame},
		{name: "third demotes to second", level: LevelRadiantReader, expected: LevelBrightBeacon},
		{name: "ceiling demotes to third", level: LevelLuminousLegend, expected: LevelRadiantReader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := PreviousLevel(tt.level)
			if result != tt.expected {
				t.Errorf("PreviousLevel(%v) = %v, want %v", tt.level, result, tt.expected)
			}
		})
	}
}

func TestFloorAndCeiling(t *testing.T) {
	if !IsFloor(LevelFaithfulFlame) {
		t.Error("IsFloor(LevelFaithfulFlame) should be true")
	}
	if IsFloor(LevelBrightBeacon) {
		t.Error("IsFloor(LevelBrightBeacon) should be false")
	}
	if !IsCeiling(LevelLuminousLegend) {
		t.Error("IsCeiling(LevelLuminousLegend) should be true")
	}
	if IsCeiling(LevelRadiantReader) {
		t.Error("IsCeiling(LevelRadiantReader) should be false")
	}
}

func TestBandFor(t *testing.T) {
	band := BandFor(LevelRadiantReader)
	if band.MinMinutes != 36 || band.MaxMinutes != 50 {
		t.Errorf("BandFor(LevelRadiantReader) = [%d, %d], want [36, 50]", band.MinMinutes, band.MaxMinutes)
	}
	if band.Title != "Radiant Reader" {
		t.Errorf("BandFor(LevelRadiantReader).Title = %v, want Radiant Reader", band.Title)
	}

	top := BandFor(LevelLuminousLegend)
	if top.MaxMinutes >= 0 {
		t.Errorf("BandFor(LevelLuminousLegend).MaxMinutes = %d, want unbounded (< 0)", top.MaxMinutes)
	}

	unknown := BandFor(ReadingLevel("mystery"))
	if unknown.Level != LevelFaithfulFlame {
		t.Errorf("BandFor(unknown) = %v, want floor tier", unknown.Level)
	}
}

func TestNewLevelState(t *testing.T) {
	state := NewLevelState(42)
	if state.StudentID != 42 {
		t.Errorf("StudentID = %d, want 42", state.StudentID)
	}
	if state.CurrentLevel != LevelFaithfulFlame {
		t.Errorf("CurrentLevel = %v, want %v", state.CurrentLevel, LevelFaithfulFlame)
	}
	if state.DaysAtCurrentLevel != 0 || state.DaysBelowThreshold != 0 {
		t.Error("fresh state should have zero day counters")
	}
}

func TestStudentDisplayName(t *testing.T) {
	tests := []struct {
		name     string
		student  Student
		expected string
	}{
		{name: "with last initial", student: Student{FirstName: "Emma", LastInitial: "S"}, expected: "Emma S."},
		{name: "without last initial", student: Student{FirstName: "Emma"}, expected: "Emma"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.student.DisplayName()
			if result != tt.expected {
				t.Errorf("DisplayName() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestStudentLinkingOpen(t *testing.T) {
	tests := []struct {
		name     string
		student  Student
		expected bool
	}{
		{name: "both flags set", student: Student{AllowParentAccess: true, ParentLinkingEnabled: true}, expected: true},
		{name: "access disabled", student: Student{AllowParentAccess: false, ParentLinkingEnabled: true}, expected: false},
		{name: "linking disabled", student: Student{AllowParentAccess: true, ParentLinkingEnabled: false}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.student.LinkingOpen()
			if result != tt.expected {
				t.Errorf("LinkingOpen() = %v, want %v", result, tt.expected)
			}
		})
	}
}
