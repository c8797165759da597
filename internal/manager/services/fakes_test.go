package services

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"maps"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/stacksync/internal/common"
	"github.com/dmitrijs2005/stacksync/internal/dbx"
	"github.com/dmitrijs2005/stacksync/internal/identity"
	"github.com/dmitrijs2005/stacksync/internal/logging"
	"github.com/dmitrijs2005/stacksync/internal/manager/models"
	"github.com/dmitrijs2005/stacksync/internal/manager/repositories/memberships"
	"github.com/dmitrijs2005/stacksync/internal/manager/repositories/workspaces"
	usersrepo "github.com/dmitrijs2005/stacksync/internal/manager/repositories/users"
	"github.com/dmitrijs2005/stacksync/internal/objectstore"
)

// --- identity ---

type fakeIdentity struct {
	mu         sync.Mutex
	tenants    []*identity.Tenant
	accounts   []*identity.Account
	passwords  map[string]string
	authCalls  int
	authErr    error
	createErrs []error
	listErr    error
	deleteErr  error
	seq        int
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{
		tenants:   []*identity.Tenant{{ID: "t1", Name: "stacksync", Enabled: true}, {ID: "t2", Name: "other"}},
		passwords: map[string]string{},
	}
}

func (f *fakeIdentity) Authenticate(context.Context) (*identity.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authCalls++
	if f.authErr != nil {
		return nil, f.authErr
	}
	return &identity.Session{Token: fmt.Sprintf("tok-%d", f.authCalls), TenantID: "admin", IssuedAt: time.Now()}, nil
}

func (f *fakeIdentity) ResolveTenant(_ context.Context, _ *identity.Session, name string) (*identity.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var found []*identity.Tenant
	for _, t := range f.tenants {
		if t.Name == name {
			found = append(found, t)
		}
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: tenant %q", common.ErrorNotFound, name)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%w: tenant %q", common.ErrorAmbiguousResult, name)
	}
}

func (f *fakeIdentity) CreateAccount(_ context.Context, _ *identity.Session, name, password string, tenant *identity.Tenant) (*identity.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	for _, a := range f.accounts {
		if a.Name == name {
			return nil, fmt.Errorf("%w: account %q", common.ErrorConflict, name)
		}
	}
	f.seq++
	a := &identity.Account{ID: fmt.Sprintf("acct-%d", f.seq), Name: name, TenantID: tenant.ID, Enabled: true}
	f.accounts = append(f.accounts, a)
	f.passwords[name] = password
	return a, nil
}

func (f *fakeIdentity) ListAccounts(context.Context, *identity.Session) iter.Seq2[*identity.Account, error] {
	return func(yield func(*identity.Account, error) bool) {
		f.mu.Lock()
		snapshot := append([]*identity.Account(nil), f.accounts...)
		listErr := f.listErr
		f.mu.Unlock()
		if listErr != nil {
			yield(nil, listErr)
			return
		}
		for _, a := range snapshot {
			if !yield(a, nil) {
				return
			}
		}
	}
}

func (f *fakeIdentity) DeleteAccount(_ context.Context, _ *identity.Session, account *identity.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i, a := range f.accounts {
		if a.ID == account.ID {
			f.accounts = append(f.accounts[:i], f.accounts[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: account %q", common.ErrorNotFound, account.ID)
}

func (f *fakeIdentity) accountNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, a := range f.accounts {
		names = append(names, a.Name)
	}
	return names
}

// --- object store ---

type fakeStore struct {
	mu         sync.Mutex
	containers map[string]objectstore.Metadata
	createErrs []error
	quotaErr   error
	deleteErrs map[string]error
	tokens     []string
	urls       []string
	quotaCalls []int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{containers: map[string]objectstore.Metadata{}, deleteErrs: map[string]error{}}
}

func (f *fakeStore) CreateContainer(_ context.Context, token, baseURL, container string, acl objectstore.ACL) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	f.urls = append(f.urls, baseURL)
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return err
		}
	}
	if _, ok := f.containers[container]; ok {
		return fmt.Errorf("%w: container %q", common.ErrorConflict, container)
	}
	f.containers[container] = objectstore.Metadata{objectstore.MetaRead: acl.Read, objectstore.MetaWrite: acl.Write}
	return nil
}

func (f *fakeStore) SetQuota(_ context.Context, token, _, container string, quotaBytes int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	f.quotaCalls = append(f.quotaCalls, quotaBytes)
	if f.quotaErr != nil {
		return f.quotaErr
	}
	md, ok := f.containers[container]
	if !ok {
		return fmt.Errorf("%w: container %q", common.ErrorNotFound, container)
	}
	md[objectstore.MetaQuotaBytes] = fmt.Sprint(quotaBytes)
	return nil
}

func (f *fakeStore) GetMetadata(_ context.Context, token, _, container string) (objectstore.Metadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	md, ok := f.containers[container]
	if !ok {
		return nil, fmt.Errorf("%w: container %q", common.ErrorNotFound, container)
	}
	return maps.Clone(md), nil
}

func (f *fakeStore) DeleteContainer(_ context.Context, token, _, container string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	if err := f.deleteErrs[container]; err != nil {
		return err
	}
	delete(f.containers, container)
	return nil
}

func (f *fakeStore) has(container string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.containers[container]
	return ok
}

// --- repositories ---

// memDB is an in-memory stand-in for the three tables. Repositories share
// it regardless of the DBTX they are bound to, so a rolled back insert
// stays visible.
type memDB struct {
	mu          sync.Mutex
	seq         int
	users       map[string]*models.User
	workspaces  []*models.Workspace
	memberships []*models.Membership

	userCreateErr      error
	workspaceCreateErr []error
	membershipErr      error
}

func newMemDB() *memDB { return &memDB{users: map[string]*models.User{}} }

func (d *memDB) nextID(kind string) string {
	d.seq++
	return fmt.Sprintf("%s-%d", kind, d.seq)
}

type fakeUsers struct{ d *memDB }

func (r fakeUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.d.userCreateErr != nil {
		return nil, r.d.userCreateErr
	}
	c := *u
	c.ID = r.d.nextID("user")
	c.CreatedAt = time.Now()
	r.d.users[c.ID] = &c
	out := c
	return &out, nil
}

func (r fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	u, ok := r.d.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *u
	return &out, nil
}

func (r fakeUsers) Delete(_ context.Context, id string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if _, ok := r.d.users[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.d.users, id)
	return nil
}

type fakeWorkspaces struct{ d *memDB }

func (r fakeWorkspaces) Create(_ context.Context, ws *models.Workspace) (*models.Workspace, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if len(r.d.workspaceCreateErr) > 0 {
		err := r.d.workspaceCreateErr[0]
		r.d.workspaceCreateErr = r.d.workspaceCreateErr[1:]
		if err != nil {
			return nil, err
		}
	}
	for _, x := range r.d.workspaces {
		if x.SwiftContainer == ws.SwiftContainer {
			return nil, common.ErrorConflict
		}
	}
	c := *ws
	c.ID = r.d.nextID("ws")
	c.CreatedAt = time.Now()
	r.d.workspaces = append(r.d.workspaces, &c)
	out := c
	return &out, nil
}

func (r fakeWorkspaces) GetByID(_ context.Context, id string) (*models.Workspace, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, ws := range r.d.workspaces {
		if ws.ID == id {
			out := *ws
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r fakeWorkspaces) ListByOwner(_ context.Context, ownerID string) ([]*models.Workspace, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	var out []*models.Workspace
	for _, ws := range r.d.workspaces {
		if ws.OwnerID == ownerID {
			c := *ws
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r fakeWorkspaces) UpdateContainer(_ context.Context, id string, container string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, ws := range r.d.workspaces {
		if ws.ID == id {
			ws.SwiftContainer = container
			return nil
		}
	}
	return common.ErrorNotFound
}

func (r fakeWorkspaces) Delete(_ context.Context, id string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for i, ws := range r.d.workspaces {
		if ws.ID == id {
			r.d.workspaces = append(r.d.workspaces[:i], r.d.workspaces[i+1:]...)
			return nil
		}
	}
	return common.ErrorNotFound
}

type fakeMemberships struct{ d *memDB }

func (r fakeMemberships) Create(_ context.Context, m *models.Membership) (*models.Membership, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.d.membershipErr != nil {
		return nil, r.d.membershipErr
	}
	for _, x := range r.d.memberships {
		if x.UserID == m.UserID && x.WorkspaceID == m.WorkspaceID {
			return nil, common.ErrorConflict
		}
	}
	c := *m
	c.ID = r.d.nextID("m")
	c.CreatedAt = time.Now()
	c.ModifiedAt = c.CreatedAt
	r.d.memberships = append(r.d.memberships, &c)
	out := c
	return &out, nil
}

func (r fakeMemberships) ListByUser(_ context.Context, userID string) ([]*models.Membership, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	var out []*models.Membership
	for _, m := range r.d.memberships {
		if m.UserID == userID {
			c := *m
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r fakeMemberships) deleteWhere(match func(*models.Membership) bool) int64 {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	kept := r.d.memberships[:0]
	var n int64
	for _, m := range r.d.memberships {
		if match(m) {
			n++
			continue
		}
		kept = append(kept, m)
	}
	r.d.memberships = kept
	return n
}

func (r fakeMemberships) DeleteByWorkspace(_ context.Context, workspaceID string) (int64, error) {
	return r.deleteWhere(func(m *models.Membership) bool { return m.WorkspaceID == workspaceID }), nil
}

func (r fakeMemberships) DeleteByUser(_ context.Context, userID string) (int64, error) {
	return r.deleteWhere(func(m *models.Membership) bool { return m.UserID == userID }), nil
}

type fakeRepoManager struct{ d *memDB }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository           { return fakeUsers{m.d} }
func (m *fakeRepoManager) Workspaces(dbx.DBTX) workspaces.Repository     { return fakeWorkspaces{m.d} }
func (m *fakeRepoManager) Memberships(dbx.DBTX) memberships.Repository   { return fakeMemberships{m.d} }

// --- environment ---

type testEnv struct {
	p     *Provisioner
	db    *sql.DB
	mock  sqlmock.Sqlmock
	id    *fakeIdentity
	store *fakeStore
	mem   *memDB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	e := &testEnv{db: db, mock: mock, id: newFakeIdentity(), store: newFakeStore(), mem: newMemDB()}
	e.p = NewProvisioner(db, &fakeRepoManager{e.mem}, e.id, e.store, Options{
		TenantName:     "stacksync",
		StorageBaseURL: "http://swift:8080/v1/",
	}, logging.Discard())

	n := 0
	e.p.newPrefix = func() string {
		n++
		return fmt.Sprintf("%08x", n)
	}
	return e
}

func (e *testEnv) expectCommit(n int) {
	for range n {
		e.mock.ExpectBegin()
		e.mock.ExpectCommit()
	}
}

func (e *testEnv) expectRollback() {
	e.mock.ExpectBegin()
	e.mock.ExpectRollback()
}

func (e *testEnv) verify(t *testing.T) {
	t.Helper()
	if err := e.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func (e *testEnv) counts() (users, workspaces, memberships int) {
	e.mem.mu.Lock()
	defer e.mem.mu.Unlock()
	return len(e.mem.users), len(e.mem.workspaces), len(e.mem.memberships)
}
