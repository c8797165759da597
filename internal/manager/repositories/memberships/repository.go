package memberships

import (
	"context"

	"github.com/dmitrijs2005/stacksync/internal/manager/models"
)

type Repository interface {
	Create(ctx context.Context, m *models.Membership) (*models.Membership, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Membership, error)
	DeleteByWorkspace(ctx context.Context, workspaceID string) (int64, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}
