// Package identity talks to the identity provider (Keystone v2 admin API)
// on behalf of the provisioning manager: admin authentication, tenant
// lookup, and creation/listing/deletion of per-user accounts.
package identity

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/dmitrijs2005/stacksync/internal/common"
)

// Session is an authenticated admin session. It is obtained from
// Client.Authenticate and passed back into every other call.
type Session struct {
	Token    string
	TenantID string
	IssuedAt time.Time

	conn requester
}

// Tenant is an isolation scope (project) grouping accounts.
type Tenant struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Account is a sub-account of a tenant.
type Account struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	TenantID string `json:"tenantId,omitempty"`
	Enabled  bool   `json:"enabled"`
}

// Client is the contract the provisioning manager relies on.
//
// Errors wrap the sentinels of package common: ErrorAuthFailure when the
// admin credentials are rejected or the endpoint is unreachable,
// ErrorNotFound, ErrorConflict for a taken account name and
// ErrorAmbiguousResult when a name filter matches more than once.
type Client interface {
	Authenticate(ctx context.Context) (*Session, error)
	ResolveTenant(ctx context.Context, s *Session, name string) (*Tenant, error)
	CreateAccount(ctx context.Context, s *Session, name, password string, tenant *Tenant) (*Account, error)
	// ListAccounts yields the existing accounts. The listing is fetched
	// when iteration starts, so ranging twice issues two requests.
	ListAccounts(ctx context.Context, s *Session) iter.Seq2[*Account, error]
	DeleteAccount(ctx context.Context, s *Session, account *Account) error
}

// FindAccount scans the accounts of c for one named name. It returns
// common.ErrorNotFound when there is none and common.ErrorAmbiguousResult
// when there are several. A failed listing never reads as ErrorNotFound.
func FindAccount(ctx context.Context, c Client, s *Session, name string) (*Account, error) {
	var found []*Account
	for acct, err := range c.ListAccounts(ctx, s) {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: %v", common.ErrorAuthFailure, err)
		}
		if err != nil {
			return nil, err
		}
		if acct.Name == name {
			found = append(found, acct)
		}
	}
	return single(found, "account", name)
}
