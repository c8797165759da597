package models

import "time"

// Workspace is a sync root backed 1:1 by an object-storage container.
type Workspace struct {
	ID             string
	OwnerID        string
	LatestRevision int64
	IsShared       bool
	IsEncrypted    bool
	SwiftContainer string
	SwiftURL       string
	CreatedAt      time.Time
}
