package models

import (
	"database/sql"
	"time"
)

// Student represents a student record within an entity/school hierarchy
type Student struct {
	ID                   int64
	EntityID             int64
	SchoolID             int64
	FirstName            string
	LastInitial          string
	Grade                int
	SignInCode           string
	FamilyID             sql.NullString
	ParentInviteCode     sql.NullString
	AllowParentAccess    bool
	ParentLinkingEnabled bool
	MaxLinkedParents     int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// DisplayName is the short name shown to parents ("Emma S.")
func (s *Student) DisplayName() string {
	if s.LastInitial == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastInitial + "."
}

// LinkingOpen reports whether a parent may use this student's invite code
func (s *Student) LinkingOpen() bool {
	return s.AllowParentAccess && s.ParentLinkingEnabled
}

// StudentSummary is the denormalized form carried on link results and
// family membership rows
type StudentSummary struct {
	StudentID   int64
	StudentName string
	SchoolName  string
	EntityID    int64
	SchoolID    int64
	Grade       int
}

// StudentSession represents an authenticated student session
type StudentSession struct {
	ID        string
	StudentID int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired checks if the session has expired
func (s *StudentSession) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
