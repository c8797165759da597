// Package models defines the records persisted by the provisioning manager.
package models

import "time"

// User is a StackSync account. SwiftUser names the identity-provider
// account created for it and is unique across users.
type User struct {
	ID           string
	Name         string
	Email        string
	SwiftUser    string
	SwiftAccount string
	// QuotaLimit is in bytes; 0 means no limit is enforced on the container.
	QuotaLimit int64
	QuotaUsed  int64
	CreatedAt  time.Time
}
