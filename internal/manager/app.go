// Package manager wires the provisioning manager together: configuration,
// logging, the PostgreSQL repositories, the identity and object-store
// clients, and the provisioner that the commands run against.
package manager

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/stacksync/internal/identity"
	"github.com/dmitrijs2005/stacksync/internal/logging"
	"github.com/dmitrijs2005/stacksync/internal/manager/cli"
	"github.com/dmitrijs2005/stacksync/internal/manager/config"
	"github.com/dmitrijs2005/stacksync/internal/manager/repositories/repomanager"
	"github.com/dmitrijs2005/stacksync/internal/manager/services"
	"github.com/dmitrijs2005/stacksync/internal/objectstore"
)

// seams for tests
var (
	openPostgres = repomanager.OpenPostgres
	newRepoMgr   = repomanager.NewPostgresRepositoryManager
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	provisioner *services.Provisioner
}

// NewApp validates c, opens and migrates the database and builds the
// provisioner. Logs go to logOut as JSON.
func NewApp(ctx context.Context, c *config.Config, logOut io.Writer) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.NewJSONLogger(logOut, c.LogLevel)

	db, err := openPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := newRepoMgr()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	store, err := newObjectStore(ctx, c, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	idc := identity.NewKeystone(identity.Credentials{
		AuthURL:    c.AuthEndpoint,
		TenantName: c.TenantName,
		Username:   c.AdminUsername,
		Password:   c.AdminPassword,
	}, c.CallTimeout, logger)

	p := services.NewProvisioner(db, rm, idc, store, services.Options{
		TenantName:     c.TenantName,
		StorageBaseURL: c.StorageBaseURL,
		Secrets:        secretIssuer(c),
	}, logger)

	return &App{config: c, logger: logger, db: db, provisioner: p}, nil
}

func newObjectStore(ctx context.Context, c *config.Config, logger logging.Logger) (objectstore.Client, error) {
	switch c.StorageBackend {
	case config.BackendS3:
		s, err := objectstore.NewS3(ctx, objectstore.S3Options{
			Region:       c.S3Region,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			BaseEndpoint: c.S3BaseEndpoint,
		}, c.CallTimeout, logger)
		if err != nil {
			return nil, fmt.Errorf("s3 init error: %w", err)
		}
		return s, nil
	default:
		return objectstore.NewSwift(c.CallTimeout, logger), nil
	}
}

func secretIssuer(c *config.Config) services.SecretIssuer {
	if c.SecretMasterKey != "" {
		return services.DerivedSecretIssuer{MasterKey: []byte(c.SecretMasterKey)}
	}
	return services.RandomSecretIssuer{}
}

// initSignalHandler cancels the command on SIGINT, SIGTERM or SIGQUIT.
// The returned stop function unregisters the handler and waits for its
// goroutine to exit.
func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) (stop func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case <-sigs:
			app.logger.Warn(ctx, "signal received, cancelling")
			cancelFunc()
		case <-ctx.Done():
		}
	}()

	return func() {
		signal.Stop(sigs)
		cancelFunc()
		<-done
	}
}

// Run executes one command. SIGINT/SIGTERM cancel the remote calls in flight.
func (app *App) Run(ctx context.Context, cmd string, args []string, out io.Writer) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer app.initSignalHandler(ctx, cancelFunc)()

	app.logger.Debug(ctx, "running command", "command", cmd)
	err := cli.Run(ctx, app.provisioner, cmd, args, out)
	if err != nil {
		app.logger.Error(ctx, "command failed", "command", cmd, "error", err)
	}
	return err
}

func (app *App) Close() error {
	return app.db.Close()
}
