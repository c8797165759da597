package workspaces

import (
	"context"
	"database/sql"
	"errors"
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

const selectColumns = `id, owner_id, latest_revision, is_shared, is_encrypted, swift_container, swift_url, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanWorkspace(s scanner) (*models.Workspace, error) {
	ws := &models.Workspace{}
	err := s.Scan(&ws.ID, &ws.OwnerID, &ws.LatestRevision, &ws.IsShared, &ws.IsEncrypted,
		&ws.SwiftContainer, &ws.SwiftURL, &ws.CreatedAt)
	if err != nil {
		return nil, err
	}
	return ws, nil
}

// Create inserts ws; a taken container name yields common.ErrorConflict.
func (r *PostgresRepository) Create(ctx context.Context, ws *models.Workspace) (*models.Workspace, error) {

	query :=
		`INSERT INTO workspaces (owner_id, latest_revision, is_shared, is_encrypted, swift_container, swift_url)
         VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		ws.OwnerID, ws.LatestRevision, ws.IsShared, ws.IsEncrypted, ws.SwiftContainer, ws.SwiftURL).
		Scan(&ws.ID, &ws.CreatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: container %q", common.ErrorConflict, ws.SwiftContainer)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return ws, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Workspace, error) {
	query := `SELECT ` + selectColumns + ` FROM workspaces WHERE id = $1`

	ws, err := scanWorkspace(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return ws, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Workspace, error) {
	query := `SELECT ` + selectColumns + ` FROM workspaces WHERE owner_id = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to select workspaces: %w", err)
	}
	defer rows.Close()

	var result []*models.Workspace
	for rows.Next() {
		ws, err := scanWorkspace(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, ws)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PostgresRepository) UpdateContainer(ctx context.Context, id string, container string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE workspaces SET swift_container = $2 WHERE id = $1`, id, container)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return fmt.Errorf("%w: container %q", common.ErrorConflict, container)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return expectOneRow(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM workspaces WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
