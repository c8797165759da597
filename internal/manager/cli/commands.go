package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/stacksync/internal/common"
	"github.com/dmitrijs2005/stacksync/internal/manager/models"
	"github.com/dmitrijs2005/stacksync/internal/manager/services"
)

// Provisioner is what the commands need from services.Provisioner.
type Provisioner interface {
	CreateUser(ctx context.Context, in services.NewUser) (*services.Provisioned, error)
	DeleteUser(ctx context.Context, id string) error
	DeleteWorkspace(ctx context.Context, id string) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListWorkspaces(ctx context.Context, userID string) ([]*models.Workspace, error)
	GetPhysicalQuota(ctx context.Context, workspaceID string) (int64, error)
}

// Commands lists the command names accepted by Run.
var Commands = []string{"create", "delete", "delete-workspace", "quota", "workspaces", "user"}

// ErrUsage is returned for an unknown command or bad command flags.
var ErrUsage = errors.New("usage")

// Usage prints the command summary to w.
func Usage(w io.Writer) {
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  create -name NAME -email EMAIL [-quota BYTES] [-password PW]")
	fmt.Fprintln(w, "  delete -id USER_ID")
	fmt.Fprintln(w, "  delete-workspace -id WORKSPACE_ID")
	fmt.Fprintln(w, "  quota -workspace WORKSPACE_ID")
	fmt.Fprintln(w, "  workspaces -id USER_ID")
	fmt.Fprintln(w, "  user -id USER_ID")
}

// Run executes command cmd with its arguments and writes the result to out.
func Run(ctx context.Context, p Provisioner, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "create":
		return create(ctx, p, args, out)
	case "delete":
		return withID(args, "id", func(id string) error {
			if err := p.DeleteUser(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(out, "deleted user %s\n", id)
			return nil
		})
	case "delete-workspace":
		return withID(args, "id", func(id string) error {
			if err := p.DeleteWorkspace(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(out, "deleted workspace %s\n", id)
			return nil
		})
	case "quota":
		return withID(args, "workspace", func(id string) error {
			q, err := p.GetPhysicalQuota(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d\n", q)
			return nil
		})
	case "workspaces":
		return withID(args, "id", func(id string) error {
			list, err := p.ListWorkspaces(ctx, id)
			if err != nil {
				return err
			}
			for _, ws := range list {
				printWorkspace(out, ws)
			}
			return nil
		})
	case "user":
		return withID(args, "id", func(id string) error {
			u, err := p.GetUser(ctx, id)
			if err != nil {
				return err
			}
			printUser(out, u)
			return nil
		})
	default:
		Usage(out)
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

func create(ctx context.Context, p Provisioner, args []string, out io.Writer) error {
	var in services.NewUser

	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&in.Name, "name", "", "display name")
	fs.StringVar(&in.Email, "email", "", "email")
	fs.Int64Var(&in.QuotaLimit, "quota", 0, "quota limit in bytes (0 = none)")
	fs.StringVar(&in.Password, "password", "", "identity account password (generated when empty)")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if in.Name == "" {
		return fmt.Errorf("%w: -name is required", ErrUsage)
	}

	res, err := p.CreateUser(ctx, in)
	if err != nil {
		return err
	}

	printUser(out, res.User)
	printWorkspace(out, res.Workspace)
	fmt.Fprintf(out, "membership\t%s\t%s\n", res.Membership.ID, res.Membership.Name)
	return nil
}

func withID(args []string, name string, fn func(id string) error) error {
	var id string

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&id, name, "", "identifier")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if id == "" {
		return fmt.Errorf("%w: -%s is required", ErrUsage, name)
	}
	return fn(id)
}

func printUser(out io.Writer, u *models.User) {
	fmt.Fprintf(out, "user\t%s\t%s\t%s\t%s\t%s\t%d\n", u.ID, u.Name, u.Email, u.SwiftUser, u.SwiftAccount, u.QuotaLimit)
}

func printWorkspace(out io.Writer, ws *models.Workspace) {
	fmt.Fprintf(out, "workspace\t%s\t%s\t%s\n", ws.ID, ws.SwiftContainer, ws.SwiftURL)
}

// ExitCode maps an error to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrUsage), errors.Is(err, common.ErrorInvalidArgument):
		return 2
	case errors.Is(err, common.ErrorNotFound):
		return 3
	default:
		return 1
	}
}
