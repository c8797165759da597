package identity

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/stacksync/internal/common"
	"github.com/dmitrijs2005/stacksync/internal/logging"
	"github.com/dmitrijs2005/stacksync/internal/netx"
	"github.com/go-goose/goose/v5/client"
	gooseerrors "github.com/go-goose/goose/v5/errors"
	goosehttp "github.com/go-goose/goose/v5/http"
	gooseidentity "github.com/go-goose/goose/v5/identity"
)

const (
	serviceType = "identity"
	apiVersion  = "v2.0"
)

// Credentials are the fixed service credentials used for admin sessions.
type Credentials struct {
	AuthURL    string
	TenantName string
	Username   string
	Password   string
	Region     string
}

type requester interface {
	SendRequest(method, svcType, apiVersion, url string, requestData *goosehttp.RequestData) error
}

type authClient interface {
	requester
	Authenticate() error
	Token() string
	TenantId() string
}

// newGooseClient is a seam for tests.
var newGooseClient = func(creds Credentials) authClient {
	return client.NewClient(&gooseidentity.Credentials{
		URL:        creds.AuthURL,
		User:       creds.Username,
		Secrets:    creds.Password,
		TenantName: creds.TenantName,
		Region:     creds.Region,
	}, gooseidentity.AuthUserPass, nil)
}

// Keystone implements Client against the Keystone v2 admin API using goose.
type Keystone struct {
	creds   Credentials
	timeout time.Duration
	logger  logging.Logger
}

// NewKeystone returns a Keystone client. timeout bounds every remote call;
// zero means no bound beyond ctx.
func NewKeystone(creds Credentials, timeout time.Duration, logger logging.Logger) *Keystone {
	return &Keystone{creds: creds, timeout: timeout, logger: logger.With("module", "keystone")}
}

func (k *Keystone) Authenticate(ctx context.Context) (*Session, error) {
	c := newGooseClient(k.creds)

	if err := netx.Call(ctx, k.timeout, c.Authenticate); err != nil {
		return nil, fmt.Errorf("%w: authenticating %s at %s: %v", common.ErrorAuthFailure, k.creds.Username, k.creds.AuthURL, err)
	}

	k.logger.Debug(ctx, "admin session established", "tenant", k.creds.TenantName)

	return &Session{Token: c.Token(), TenantID: c.TenantId(), IssuedAt: time.Now(), conn: c}, nil
}

type tenantsResponse struct {
	Tenants []*Tenant `json:"tenants"`
}

// ResolveTenant lists the tenants and picks the one called name.
func (k *Keystone) ResolveTenant(ctx context.Context, s *Session, name string) (*Tenant, error) {
	var resp tenantsResponse
	rd := &goosehttp.RequestData{RespValue: &resp, ExpectedStatus: []int{http.StatusOK}}

	if err := k.send(ctx, s, http.MethodGet, "tenants", rd); err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}

	var found []*Tenant
	for _, t := range resp.Tenants {
		if t.Name == name {
			found = append(found, t)
		}
	}
	return single(found, "tenant", name)
}

type createUserRequest struct {
	User struct {
		Name     string `json:"name"`
		Password string `json:"password"`
		TenantID string `json:"tenantId"`
		Enabled  bool   `json:"enabled"`
	} `json:"user"`
}

type userResponse struct {
	User *Account `json:"user"`
}

func (k *Keystone) CreateAccount(ctx context.Context, s *Session, name, password string, tenant *Tenant) (*Account, error) {
	if tenant == nil {
		return nil, fmt.Errorf("%w: nil tenant", common.ErrorInvalidArgument)
	}

	var req createUserRequest
	req.User.Name = name
	req.User.Password = password
	req.User.TenantID = tenant.ID
	req.User.Enabled = true

	var resp userResponse
	rd := &goosehttp.RequestData{ReqValue: &req, RespValue: &resp, ExpectedStatus: []int{http.StatusOK, http.StatusCreated}}

	if err := k.send(ctx, s, http.MethodPost, "users", rd); err != nil {
		return nil, fmt.Errorf("creating account %q: %w", name, err)
	}
	if resp.User == nil || resp.User.ID == "" {
		return nil, fmt.Errorf("creating account %q: empty response", name)
	}
	if resp.User.TenantID == "" {
		resp.User.TenantID = tenant.ID
	}

	return resp.User, nil
}

type usersResponse struct {
	Users []*Account `json:"users"`
}

func (k *Keystone) ListAccounts(ctx context.Context, s *Session) iter.Seq2[*Account, error] {
	return func(yield func(*Account, error) bool) {
		var resp usersResponse
		rd := &goosehttp.RequestData{RespValue: &resp, ExpectedStatus: []int{http.StatusOK}}

		err := k.send(ctx, s, http.MethodGet, "users", rd)
		if errors.Is(err, common.ErrorNotFound) {
			// The users collection lives on the admin endpoint only.
			yield(nil, fmt.Errorf("%w: listing accounts: identity endpoint has no admin API: %v", common.ErrorAuthFailure, err))
			return
		}
		if err != nil {
			yield(nil, fmt.Errorf("listing accounts: %w", err))
			return
		}

		for _, a := range resp.Users {
			if !yield(a, nil) {
				return
			}
		}
	}
}

func (k *Keystone) DeleteAccount(ctx context.Context, s *Session, account *Account) error {
	if account == nil || account.ID == "" {
		return fmt.Errorf("%w: account without id", common.ErrorInvalidArgument)
	}

	rd := &goosehttp.RequestData{ExpectedStatus: []int{http.StatusNoContent, http.StatusOK}}
	if err := k.send(ctx, s, http.MethodDelete, "users/"+account.ID, rd); err != nil {
		return fmt.Errorf("deleting account %q: %w", account.Name, err)
	}

	return nil
}

func (k *Keystone) send(ctx context.Context, s *Session, method, path string, rd *goosehttp.RequestData) error {
	if s == nil || s.conn == nil {
		return fmt.Errorf("%w: session is not authenticated", common.ErrorAuthFailure)
	}

	start := time.Now()
	err := netx.Call(ctx, k.timeout, func() error {
		return s.conn.SendRequest(method, serviceType, apiVersion, path, rd)
	})
	k.logger.Debug(ctx, "keystone call", "method", method, "path", path, "elapsed", time.Since(start), "error", err)

	return classify(err)
}

// classify maps goose and context errors onto the common sentinels.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled), gooseerrors.IsTimeout(err):
		return fmt.Errorf("%w: %v", common.ErrorAuthFailure, err)
	case gooseerrors.IsUnauthorised(err):
		return fmt.Errorf("%w: %v", common.ErrorAuthFailure, err)
	case gooseerrors.IsNotFound(err) || hasStatus(err, http.StatusNotFound):
		return fmt.Errorf("%w: %v", common.ErrorNotFound, err)
	case gooseerrors.IsDuplicateValue(err) || hasStatus(err, http.StatusConflict):
		return fmt.Errorf("%w: %v", common.ErrorConflict, err)
	default:
		return err
	}
}

// hasStatus recognises goose's "unexpected status: NNN" messages for codes
// it does not map to a typed error.
func hasStatus(err error, code int) bool {
	return strings.Contains(err.Error(), fmt.Sprintf("status: %d", code))
}

func single[T any](found []*T, kind, name string) (*T, error) {
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s %q", common.ErrorNotFound, kind, name)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%w: %d %ss named %q", common.ErrorAmbiguousResult, len(found), kind, name)
	}
}
