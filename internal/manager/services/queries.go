package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/stacksync/internal/manager/models"
	"github.com/dmitrijs2005/stacksync/internal/objectstore"
)

// GetUser returns the user record with the given id.
func (p *Provisioner) GetUser(ctx context.Context, id string) (*models.User, error) {
	return p.repomanager.Users(p.db).GetByID(ctx, id)
}

// ListWorkspaces returns the workspaces owned by a user, oldest first.
func (p *Provisioner) ListWorkspaces(ctx context.Context, userID string) ([]*models.Workspace, error) {
	return p.repomanager.Workspaces(p.db).ListByOwner(ctx, userID)
}

// GetContainerMetadata fetches the live metadata of a workspace container.
func (p *Provisioner) GetContainerMetadata(ctx context.Context, workspaceID string) (objectstore.Metadata, error) {
	ws, err := p.repomanager.Workspaces(p.db).GetByID(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("loading workspace %s: %w", workspaceID, err)
	}

	var md objectstore.Metadata
	err = p.withStorage(ctx, func(token string) error {
		var err error
		md, err = p.store.GetMetadata(ctx, token, ws.SwiftURL, ws.SwiftContainer)
		return err
	})
	if err != nil {
		return nil, err
	}
	return md, nil
}

// GetPhysicalQuota returns the byte limit set on a workspace container,
// 0 when none is set. It always asks the object store.
func (p *Provisioner) GetPhysicalQuota(ctx context.Context, workspaceID string) (int64, error) {
	md, err := p.GetContainerMetadata(ctx, workspaceID)
	if err != nil {
		return 0, err
	}
	return md.QuotaBytes(), nil
}
