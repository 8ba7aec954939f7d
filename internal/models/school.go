package models

import "time"

// Entity represents a top-level tenant (e.g., a diocese) owning schools
type Entity struct {
	ID        int64
	Name      string
	Code      string
	CreatedAt time.Time
}

// School belongs to exactly one entity. Its sign-in code is the
// two-segment prefix of every student invite code it issues
// (e.g., "TXTEST-DEMO").
type School struct {
	ID         int64
	EntityID   int64
	Name       string
	SignInCode string
	CreatedAt  time.Time
}
