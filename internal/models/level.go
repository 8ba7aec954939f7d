package models

import "time"

// ReadingLevel is one of four ordered tiers reflecting a student's
// rolling daily reading minutes
type ReadingLevel string

const (
	LevelFaithfulFlame  ReadingLevel = "faithful_flame"
	LevelBrightBeacon   ReadingLevel = "bright_beacon"
	LevelRadiantReader  ReadingLevel = "radiant_reader"
	LevelLuminousLegend ReadingLevel = "luminous_legend"
)

// DemotionDayLimit is how many consecutive below-minimum days trigger a
// demotion, and PromotionDayMinimum how many days at a level are required
// before a promotion can fire.
const (
	DemotionDayLimit    = 4
	PromotionDayMinimum = 7
)

// LevelBand is the inclusive daily-minutes band for one tier.
// MaxMinutes < 0 means unbounded.
type LevelBand struct {
	Level      ReadingLevel
	Title      string
	MinMinutes int
	MaxMinutes int
}

// levelBands is ordered from floor tier to ceiling tier
var levelBands = []LevelBand{
	{Level: LevelFaithfulFlame, Title: "Faithful Flame", MinMinutes: 0, MaxMinutes: 20},
	{Level: LevelBrightBeacon, Title: "Bright Beacon", MinMinutes: 21, MaxMinutes: 35},
	{Level: LevelRadiantReader, Title: "Radiant Reader", MinMinutes: 36, MaxMinutes: 50},
	{Level: LevelLuminousLegend, Title: "Luminous Legend", MinMinutes: 51, MaxMinutes: -1},
}

// LevelBands returns the ordered tier definitions
func LevelBands() []LevelBand {
	return levelBands
}

// BandFor returns the band definition for a level. Unknown levels map to
// the floor tier.
func BandFor(level ReadingLevel) LevelBand {
	for _, band := range levelBands {
		if band.Level == level {
			return band
		}
	}
	return levelBands[0]
}

// LevelForMinutes returns the tier whose band contains the given daily
// minutes
func LevelForMinutes(minutes float64) ReadingLevel {
	for _, band := range levelBands {
		if minutes < float64(band.MinMinutes) {
			continue
		}
		if band.MaxMinutes < 0 || minutes <= float64(band.MaxMinutes) {
			return band.Level
		}
	}
	return levelBands[0].Level
}

// NextLevel returns the tier one above, or the same tier at the ceiling
func NextLevel(level ReadingLevel) ReadingLevel {
	for i, band := range levelBands {
		if band.Level == level {
			if i+1 < len(levelBands) {
				return levelBands[i+1].Level
			}
			return level
		}
	}
	return levelBands[0].Level
}

// PreviousLevel returns the tier one below, or the same tier at the floor
func PreviousLevel(level ReadingLevel) ReadingLevel {
	for i, band := range levelBands {
		if band.Level == level {
			if i > 0 {
				return levelBands[i-1].Level
			}
			return level
		}
	}
	return levelBands[0].Level
}

// IsFloor reports whether level is the lowest tier
func IsFloor(level ReadingLevel) bool {
	return level == levelBands[0].Level
}

// IsCeiling reports whether level is the highest tier
func IsCeiling(level ReadingLevel) bool {
	return level == levelBands[len(levelBands)-1].Level
}

// StudentLevelState is the mutable level-progression state attached to a
// student. Transitioned once per day, never deleted.
type StudentLevelState struct {
	StudentID          int64
	CurrentLevel       ReadingLevel
	DaysAtCurrentLevel int
	DaysBelowThreshold int
	LastEvaluated      string // YYYY-MM-DD of the last applied transition
	UpdatedAt          time.Time
}

// NewLevelState returns the default state for a student with no history
func NewLevelState(studentID int64) StudentLevelState {
	return StudentLevelState{
		StudentID:    studentID,
		CurrentLevel: LevelFaithfulFlame,
	}
}
