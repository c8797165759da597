package workspaces

import (
	"context"

	"github.com/dmitrijs2005/stacksync/internal/manager/models"
)

type Repository interface {
	Create(ctx context.Context, ws *models.Workspace) (*models.Workspace, error)
	GetByID(ctx context.Context, id string) (*models.Workspace, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Workspace, error)
	UpdateContainer(ctx context.Context, id string, container string) error
	Delete(ctx context.Context, id string) error
}
