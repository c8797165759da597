package models

import "time"

// DefaultMembershipName names the membership created with a user's first workspace.
const DefaultMembershipName = "default"

// Membership links a user to a workspace. A user holds at most one
// membership per workspace.
type Membership struct {
	ID           string
	UserID       string
	WorkspaceID  string
	Name         string
	ParentItemID *int64
	CreatedAt    time.Time
	ModifiedAt   time.Time
}
