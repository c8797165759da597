package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/stacksync/internal/common"
	"github.com/dmitrijs2005/stacksync/internal/dbx"
	"github.com/dmitrijs2005/stacksync/internal/identity"
	"github.com/dmitrijs2005/stacksync/internal/manager/models"
	"go.uber.org/multierr"
)

// DeleteUser removes a user and everything provisioned for it: the
// identity account, every owned workspace with its container and
// memberships, and finally the user record.
//
// Already-absent external resources are skipped. Workspaces are deleted
// one after the other; their failures are aggregated, and if any occurs
// the user record is kept so the call can be repeated. An unknown id
// yields an error wrapping common.ErrorNotFound.
func (p *Provisioner) DeleteUser(ctx context.Context, id string) error {
	user, err := p.repomanager.Users(p.db).GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("loading user %s: %w", id, err)
	}
	log := p.logger.With("user", user.ID, "account", user.SwiftUser)

	if err := p.deleteIdentity(ctx, user); err != nil {
		return fmt.Errorf("deleting identity account of user %s: %w", user.ID, err)
	}

	owned, err := p.repomanager.Workspaces(p.db).ListByOwner(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("listing workspaces of user %s: %w", user.ID, err)
	}

	var wsErr error
	for _, ws := range owned {
		wsErr = multierr.Append(wsErr, p.deleteWorkspace(ctx, ws))
	}
	if wsErr != nil {
		log.Error(ctx, "workspace deletion failed, keeping user record", "error", wsErr)
		return fmt.Errorf("deleting workspaces of user %s: %w", user.ID, wsErr)
	}

	err = dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := p.repomanager.Memberships(tx).DeleteByUser(ctx, user.ID); err != nil {
			return err
		}
		return p.repomanager.Users(tx).Delete(ctx, user.ID)
	})
	if err != nil {
		return fmt.Errorf("deleting user record %s: %w", user.ID, err)
	}

	log.Info(ctx, "user deleted", "workspaces", len(owned))
	return nil
}

// deleteIdentity removes the identity account of user, if it still exists.
func (p *Provisioner) deleteIdentity(ctx context.Context, user *models.User) error {
	s, _, err := p.sessions.Session(ctx)
	if err != nil {
		return err
	}

	acct, err := identity.FindAccount(ctx, p.identity, s, user.SwiftUser)
	if errors.Is(err, common.ErrorNotFound) {
		p.logger.Warn(ctx, "identity account already absent", "account", user.SwiftUser)
		return nil
	}
	if err != nil {
		return err
	}

	err = p.identity.DeleteAccount(ctx, s, acct)
	if errors.Is(err, common.ErrorNotFound) {
		p.logger.Warn(ctx, "identity account vanished before deletion", "account", user.SwiftUser)
		return nil
	}
	return err
}

// DeleteWorkspace removes one workspace: its container, its memberships
// and the record. An unknown id yields an error wrapping
// common.ErrorNotFound.
func (p *Provisioner) DeleteWorkspace(ctx context.Context, id string) error {
	ws, err := p.repomanager.Workspaces(p.db).GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("loading workspace %s: %w", id, err)
	}
	return p.deleteWorkspace(ctx, ws)
}

func (p *Provisioner) deleteWorkspace(ctx context.Context, ws *models.Workspace) error {
	err := p.withStorage(ctx, func(token string) error {
		return p.store.DeleteContainer(ctx, token, ws.SwiftURL, ws.SwiftContainer)
	})
	if err != nil {
		return fmt.Errorf("workspace %s: %w", ws.ID, err)
	}

	err = dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := p.repomanager.Memberships(tx).DeleteByWorkspace(ctx, ws.ID); err != nil {
			return err
		}
		return p.repomanager.Workspaces(tx).Delete(ctx, ws.ID)
	})
	if err != nil {
		return fmt.Errorf("workspace %s: %w", ws.ID, err)
	}

	p.logger.Info(ctx, "workspace deleted", "workspace", ws.ID, "container", ws.SwiftContainer)
	return nil
}
