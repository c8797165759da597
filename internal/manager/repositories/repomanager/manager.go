package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/stacksync/internal/dbx"
	"github.com/dmitrijs2005/stacksync/internal/manager/repositories/memberships"
	"github.com/dmitrijs2005/stacksync/internal/manager/repositories/users"
	"github.com/dmitrijs2005/stacksync/internal/manager/repositories/workspaces"
)

// RepositoryManager vends repositories bound to a DB handle or transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Workspaces(db dbx.DBTX) workspaces.Repository
	Memberships(db dbx.DBTX) memberships.Repository
}
