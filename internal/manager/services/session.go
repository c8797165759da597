package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/stacksync/internal/identity"
)

// SessionSource hands out the admin session and the resolved tenant.
type SessionSource interface {
	// Session returns the current session, establishing one if needed.
	Session(ctx context.Context) (*identity.Session, *identity.Tenant, error)
	// Refresh discards the current session and establishes a new one.
	Refresh(ctx context.Context) (*identity.Session, *identity.Tenant, error)
}

// SessionCache authenticates once and reuses the session until Refresh is
// called. It is safe for concurrent use.
type SessionCache struct {
	client     identity.Client
	tenantName string

	mu      sync.Mutex
	session *identity.Session
	tenant  *identity.Tenant
}

func NewSessionCache(client identity.Client, tenantName string) *SessionCache {
	return &SessionCache{client: client, tenantName: tenantName}
}

func (c *SessionCache) Session(ctx context.Context) (*identity.Session, *identity.Tenant, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return c.session, c.tenant, nil
	}
	return c.establish(ctx)
}

func (c *SessionCache) Refresh(ctx context.Context) (*identity.Session, *identity.Tenant, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.session, c.tenant = nil, nil
	return c.establish(ctx)
}

func (c *SessionCache) establish(ctx context.Context) (*identity.Session, *identity.Tenant, error) {
	s, err := c.client.Authenticate(ctx)
	if err != nil {
		return nil, nil, err
	}

	t, err := c.client.ResolveTenant(ctx, s, c.tenantName)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving tenant %q: %w", c.tenantName, err)
	}

	c.session, c.tenant = s, t
	return s, t, nil
}
