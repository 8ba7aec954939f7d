package models

import "time"

// CompletionThresholdMinutes is the daily minutes needed for a session to
// count toward the streak
const CompletionThresholdMinutes = 20

// DateLayout is the calendar-date key used throughout the habits engine
const DateLayout = "2006-01-02"

// ReadingSession is one completed or banked reading interval. Immutable
// once written.
type ReadingSession struct {
	ID              int64
	StudentID       int64
	SessionDate     string // YYYY-MM-DD, local to the student
	DurationMinutes int
	Completed       bool
	CreatedAt       time.Time
}

// DayCell is one entry in the 21-day habits calendar
type DayCell struct {
	Date       string `json:"date"`
	HasReading bool   `json:"hasReading"`
	DayName    string `json:"dayName"`
	DayNumber  int    `json:"dayNumber"`
	IsToday    bool   `json:"isToday"`
	IsFuture   bool   `json:"isFuture"`
	IsRecent   bool   `json:"isRecent"`
}
