package memberships

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/stacksync/internal/common"
	"github.com/dmitrijs2005/stacksync/internal/dbx"
	"github.com/dmitrijs2005/stacksync/internal/manager/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts m. A second membership for the same (user, workspace)
// pair yields common.ErrorConflict.
func (r *PostgresRepository) Create(ctx context.Context, m *models.Membership) (*models.Membership, error) {

	query :=
		`INSERT INTO memberships (user_id, workspace_id, workspace_name, parent_item_id)
         VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, modified_at
		 `

	var parent sql.NullInt64
	if m.ParentItemID != nil {
		parent = sql.NullInt64{Int64: *m.ParentItemID, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query, m.UserID, m.WorkspaceID, m.Name, parent).
		Scan(&m.ID, &m.CreatedAt, &m.ModifiedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: user %s already member of workspace %s", common.ErrorConflict, m.UserID, m.WorkspaceID)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return m, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.Membership, error) {
	query := ` SELECT id, user_id, workspace_id, workspace_name, parent_item_id, created_at, modified_at
		FROM memberships WHERE user_id = $1
		`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select memberships: %w", err)
	}
	defer rows.Close()

	var result []*models.Membership
	for rows.Next() {
		var item models.Membership
		var parent sql.NullInt64
		err := rows.Scan(&item.ID, &item.UserID, &item.WorkspaceID, &item.Name, &parent, &item.CreatedAt, &item.ModifiedAt)
		if err != nil {
			return nil, err
		}
		if parent.Valid {
			item.ParentItemID = &parent.Int64
		}
		result = append(result, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// DeleteByWorkspace removes every membership of the workspace and returns
// how many were removed. Zero is not an error.
func (r *PostgresRepository) DeleteByWorkspace(ctx context.Context, workspaceID string) (int64, error) {
	return r.deleteWhere(ctx, `DELETE FROM memberships WHERE workspace_id = $1`, workspaceID)
}

// DeleteByUser removes every membership held by the user.
func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	return r.deleteWhere(ctx, `DELETE FROM memberships WHERE user_id = $1`, userID)
}

func (r *PostgresRepository) deleteWhere(ctx context.Context, query string, arg string) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, arg)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}

	return n, nil
}
