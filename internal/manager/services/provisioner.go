// Package services contains the provisioning logic of the manager. This
// file implements Provisioner, which creates and removes users together
// with their identity account, default workspace and storage container.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/stacksync/internal/common"
	"github.com/dmitrijs2005/stacksync/internal/dbx"
	"github.com/dmitrijs2005/stacksync/internal/identity"
	"github.com/dmitrijs2005/stacksync/internal/logging"
	"github.com/dmitrijs2005/stacksync/internal/manager/models"
	"github.com/dmitrijs2005/stacksync/internal/manager/repositories/repomanager"
	"github.com/dmitrijs2005/stacksync/internal/objectstore"
	"go.uber.org/multierr"
)

// NewUser is the input of CreateUser. An empty Password lets the
// configured SecretIssuer choose one.
type NewUser struct {
	Name       string
	Email      string
	QuotaLimit int64
	Password   string
}

// Provisioned is the outcome of a successful CreateUser.
type Provisioned struct {
	User       *models.User
	Workspace  *models.Workspace
	Membership *models.Membership
}

// Options configure a Provisioner.
type Options struct {
	// TenantName is the identity tenant owning every account.
	TenantName string
	// StorageBaseURL is the object store endpoint; the storage account
	// ("AUTH_" + tenant id) is appended to form a workspace URL.
	StorageBaseURL string
	// Secrets issues account passwords. Defaults to RandomSecretIssuer.
	Secrets SecretIssuer
	// Sessions overrides the session cache built from the identity client.
	Sessions SessionSource
}

// Provisioner sequences identity, storage and database calls for user and
// workspace lifecycle operations.
type Provisioner struct {
	db             *sql.DB
	repomanager    repomanager.RepositoryManager
	identity       identity.Client
	store          objectstore.Client
	sessions       SessionSource
	secrets        SecretIssuer
	storageBaseURL string
	newPrefix      func() string
	logger         logging.Logger
}

// NewProvisioner constructs a Provisioner.
func NewProvisioner(db *sql.DB, m repomanager.RepositoryManager, idc identity.Client, store objectstore.Client, opts Options, logger logging.Logger) *Provisioner {
	p := &Provisioner{
		db:             db,
		repomanager:    m,
		identity:       idc,
		store:          store,
		sessions:       opts.Sessions,
		secrets:        opts.Secrets,
		storageBaseURL: opts.StorageBaseURL,
		newPrefix:      common.RandomPrefix,
		logger:         logger.With("module", "provisioner"),
	}
	if p.sessions == nil {
		p.sessions = NewSessionCache(idc, opts.TenantName)
	}
	if p.secrets == nil {
		p.secrets = RandomSecretIssuer{}
	}
	return p
}

// AccountName builds the identity account name of a user.
func AccountName(tenant, prefix, userName string) string {
	return tenant + "_" + prefix + "_" + userName
}

// ContainerName builds the storage container name of a workspace from a
// random prefix, the owning identity account id and the user name. The
// prefix is drawn independently of the account's.
func ContainerName(prefix, accountID, userName string) string {
	return prefix + "_" + accountID + "_" + userName
}

// StorageAccount is the storage account of a tenant.
func StorageAccount(tenantID string) string {
	return "AUTH_" + tenantID
}

// StorageURL is the base URL of a storage account.
func StorageURL(base, account string) string {
	return strings.TrimRight(base, "/") + "/" + account
}

// creation tracks what a CreateUser call has done so far.
type creation struct {
	stage     Stage
	session   *identity.Session
	tenant    *identity.Tenant
	account   *identity.Account
	persisted bool
	container bool
	result    Provisioned
}

// CreateUser provisions a user: an identity account, the user record, a
// default workspace with its "default" membership, and the workspace
// container (with a quota when QuotaLimit > 0).
//
// It either completes or returns a *ProvisionError. Failures after the
// identity account exists are compensated: the container, the records and
// the account are removed again.
func (p *Provisioner) CreateUser(ctx context.Context, in NewUser) (*Provisioned, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: user name is required", common.ErrorInvalidArgument)
	}
	if in.QuotaLimit < 0 {
		return nil, fmt.Errorf("%w: negative quota limit %d", common.ErrorInvalidArgument, in.QuotaLimit)
	}

	c := &creation{stage: StagePendingIdentity}

	if err := p.createIdentity(ctx, c, in); err != nil {
		return nil, &ProvisionError{Op: "create user", Stage: c.stage, Cause: err}
	}

	if err := p.createRecordsAndContainer(ctx, c, in); err != nil {
		cleanup := p.compensate(ctx, c)
		return nil, &ProvisionError{Op: "create user", Stage: c.stage, Cause: err, Cleanup: cleanup, Compensated: cleanup == nil}
	}

	p.advance(ctx, c, StageComplete)
	return &c.result, nil
}

func (p *Provisioner) advance(ctx context.Context, c *creation, s Stage) {
	c.stage = s

	args := []any{"stage", s}
	if c.account != nil {
		args = append(args, "account", c.account.Name)
	}
	if u := c.result.User; u != nil {
		args = append(args, "user", u.ID)
	}
	if ws := c.result.Workspace; ws != nil {
		args = append(args, "container", ws.SwiftContainer)
	}
	p.logger.Info(ctx, "provisioning", args...)
}

// createIdentity resolves the admin session and creates the identity
// account, retrying once under a new prefix when the name is taken.
func (p *Provisioner) createIdentity(ctx context.Context, c *creation, in NewUser) error {
	s, t, err := p.sessions.Session(ctx)
	if err != nil {
		return err
	}
	c.session, c.tenant = s, t

	for attempt := 0; ; attempt++ {
		name := AccountName(t.Name, p.newPrefix(), in.Name)

		password := in.Password
		if password == "" {
			if password, err = p.secrets.Issue(ctx, name); err != nil {
				return fmt.Errorf("issuing secret for %q: %w", name, err)
			}
		}

		acct, err := p.identity.CreateAccount(ctx, s, name, password, t)
		if errors.Is(err, common.ErrorConflict) && attempt == 0 {
			p.logger.Warn(ctx, "account name taken, retrying with a new prefix", "account", name)
			continue
		}
		if err != nil {
			return err
		}

		c.account = acct
		p.advance(ctx, c, StageIdentityCreated)
		return nil
	}
}

func (p *Provisioner) createRecordsAndContainer(ctx context.Context, c *creation, in NewUser) error {
	p.advance(ctx, c, StagePendingRecord)

	if err := p.persistRecords(ctx, c, in); errors.Is(err, common.ErrorConflict) {
		p.logger.Warn(ctx, "record conflict, retrying with a new container name", "account", c.account.Name)
		c.stage = StagePendingRecord
		if err := p.persistRecords(ctx, c, in); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	c.persisted = true

	p.advance(ctx, c, StagePendingContainer)
	if err := p.createContainer(ctx, c); err != nil {
		return err
	}
	c.container = true

	if in.QuotaLimit > 0 {
		ws := c.result.Workspace
		err := p.withStorage(ctx, func(token string) error {
			return p.store.SetQuota(ctx, token, ws.SwiftURL, ws.SwiftContainer, in.QuotaLimit)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// persistRecords writes the user, its default workspace and membership in
// one transaction.
func (p *Provisioner) persistRecords(ctx context.Context, c *creation, in NewUser) error {
	account := StorageAccount(c.tenant.ID)

	var result Provisioned
	err := dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := p.repomanager.Users(tx).Create(ctx, &models.User{
			Name:         in.Name,
			Email:        in.Email,
			SwiftUser:    c.account.Name,
			SwiftAccount: account,
			QuotaLimit:   in.QuotaLimit,
		})
		if err != nil {
			return fmt.Errorf("creating user record: %w", err)
		}
		result.User = user
		c.stage = StagePendingWorkspace

		ws, err := p.repomanager.Workspaces(tx).Create(ctx, &models.Workspace{
			OwnerID:        user.ID,
			SwiftContainer: ContainerName(p.newPrefix(), c.account.ID, in.Name),
			SwiftURL:       StorageURL(p.storageBaseURL, account),
		})
		if err != nil {
			return fmt.Errorf("creating workspace record: %w", err)
		}
		result.Workspace = ws

		m, err := p.repomanager.Memberships(tx).Create(ctx, &models.Membership{
			UserID:      user.ID,
			WorkspaceID: ws.ID,
			Name:        models.DefaultMembershipName,
		})
		if err != nil {
			return fmt.Errorf("creating membership record: %w", err)
		}
		result.Membership = m
		return nil
	})
	if err != nil {
		return err
	}

	c.result = result
	p.advance(ctx, c, StageRecordPersisted)
	p.advance(ctx, c, StageWorkspaceCreated)
	return nil
}

// createContainer creates the workspace container. A taken name is
// replaced once by a fresh one, recorded on the workspace.
func (p *Provisioner) createContainer(ctx context.Context, c *creation) error {
	ws := c.result.Workspace
	acl := objectstore.AccountACL(c.tenant.Name, c.account.Name)

	create := func(token string) error {
		return p.store.CreateContainer(ctx, token, ws.SwiftURL, ws.SwiftContainer, acl)
	}

	err := p.withStorage(ctx, create)
	if !errors.Is(err, common.ErrorConflict) {
		return err
	}

	name := ContainerName(p.newPrefix(), c.account.ID, c.result.User.Name)
	p.logger.Warn(ctx, "container name taken, retrying with a new prefix", "container", ws.SwiftContainer, "new", name)

	if err := p.repomanager.Workspaces(p.db).UpdateContainer(ctx, ws.ID, name); err != nil {
		return fmt.Errorf("renaming container of workspace %s: %w", ws.ID, err)
	}
	ws.SwiftContainer = name

	return p.withStorage(ctx, create)
}

// compensate undoes what a failed CreateUser left behind, newest first.
func (p *Provisioner) compensate(ctx context.Context, c *creation) error {
	var cleanup error
	ws := c.result.Workspace

	if c.container {
		err := p.withStorage(ctx, func(token string) error {
			return p.store.DeleteContainer(ctx, token, ws.SwiftURL, ws.SwiftContainer)
		})
		cleanup = multierr.Append(cleanup, err)
	}

	if c.persisted {
		err := dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			if _, err := p.repomanager.Memberships(tx).DeleteByUser(ctx, c.result.User.ID); err != nil {
				return err
			}
			if err := p.repomanager.Workspaces(tx).Delete(ctx, ws.ID); err != nil {
				return err
			}
			return p.repomanager.Users(tx).Delete(ctx, c.result.User.ID)
		})
		cleanup = multierr.Append(cleanup, err)
	}

	if c.account != nil {
		err := p.identity.DeleteAccount(ctx, c.session, c.account)
		if errors.Is(err, common.ErrorNotFound) {
			err = nil
		}
		cleanup = multierr.Append(cleanup, err)
	}

	if cleanup != nil {
		p.logger.Error(ctx, "compensation incomplete", "stage", c.stage, "error", cleanup)
	} else {
		p.logger.Warn(ctx, "provisioning rolled back", "stage", c.stage)
	}
	return cleanup
}

// withStorage runs fn with the session token. A storage error is retried
// once with a freshly authenticated token.
func (p *Provisioner) withStorage(ctx context.Context, fn func(token string) error) error {
	s, _, err := p.sessions.Session(ctx)
	if err != nil {
		return err
	}

	err = fn(s.Token)
	if !errors.Is(err, common.ErrorStorage) {
		return err
	}

	p.logger.Warn(ctx, "storage call failed, retrying with a fresh token", "error", err)
	s, _, rerr := p.sessions.Refresh(ctx)
	if rerr != nil {
		return multierr.Append(err, rerr)
	}
	return fn(s.Token)
}
