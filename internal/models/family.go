package models

import "time"

// MaxFamilyParents caps how many parent accounts may share one family
const MaxFamilyParents = 2

// Family aggregates 1-2 parent accounts and their linked students for
// shared reading-competition accounting
type Family struct {
	ID         string
	FamilyName string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// LinkedStudent is one ordered entry in a family's student list
type LinkedStudent struct {
	StudentID   int64
	StudentName string
	SchoolName  string
	EntityID    int64
	SchoolID    int64
	Grade       int
	Position    int
}

// FamilyWithMembers combines a family with its parents and students
type FamilyWithMembers struct {
	Family   Family
	Parents  []Parent
	Students []LinkedStudent
}
