package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/mmazitov/forksy-backend/internal/errs"
	"github.com/mmazitov/forksy-backend/internal/limiter"
	"github.com/mmazitov/forksy-backend/internal/model"
	"github.com/mmazitov/forksy-backend/internal/oauth"
	"github.com/mmazitov/forksy-backend/internal/repository"
)

// fakeUsers enforces the same uniqueness rules as the users table.
type fakeUsers struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*model.User

	// extMisses forces the next N GetByExternalID calls to miss, simulating
	// lookups that ran before a concurrent insert committed.
	extMisses int

	createErr error
	roleErr   error
	roleCalls int
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func newFakeUsers() *fakeUsers { return &fakeUsers{byID: map[uuid.UUID]*model.User{}} }

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, ex := range f.byID {
		if u.Email != "" && ex.Email == u.Email {
			return errs.ErrAlreadyExists
		}
		for _, p := range model.Providers {
			if id := u.ExternalID(p); id != "" && ex.ExternalID(p) == id {
				return errs.ErrAlreadyExists
			}
		}
	}
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cpy := *u
	f.byID[u.ID] = &cpy
	return nil
}

func (f *fakeUsers) find(match func(*model.User) bool) (*model.User, error) {
	for _, u := range f.byID {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.find(func(u *model.User) bool { return u.ID == id })
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.find(func(u *model.User) bool { return u.Email != "" && u.Email == email })
}

func (f *fakeUsers) GetByExternalID(_ context.Context, p model.Provider, ext string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.extMisses > 0 {
		f.extMisses--
		return nil, errs.ErrNotFound
	}
	return f.find(func(u *model.User) bool { return u.ExternalID(p) == ext })
}

func (f *fakeUsers) GetRole(_ context.Context, id uuid.UUID) (model.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roleCalls++
	if f.roleErr != nil {
		return "", f.roleErr
	}
	u, ok := f.byID[id]
	if !ok {
		return "", errs.ErrNotFound
	}
	return u.Role, nil
}

func (f *fakeUsers) SetPasswordHash(_ context.Context, id uuid.UUID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return errs.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, id uuid.UUID, p model.ProfilePatch) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Avatar != nil {
		u.Avatar = *p.Avatar
	}
	c := *u
	return &c, nil
}

func (f *fakeUsers) setRole(id uuid.UUID, r model.Role) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[id].Role = r
}

func (f *fakeUsers) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool
	failErr     error
	successErr  error

	allowCalls   int
	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	l.allowCalls++
	return l.allowOK, 0, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return l.successErr
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, l.failErr
}

// fakeProvider returns a fixed profile for code "ok" and a provider error otherwise.
type fakeProvider struct {
	name    model.Provider
	profile model.Profile
	calls   int
}

var _ oauth.Provider = (*fakeProvider)(nil)

func (p *fakeProvider) Name() model.Provider { return p.name }
func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://idp.example/authorize?state=" + state
}
func (p *fakeProvider) ExchangeCode(_ context.Context, code string) (model.Profile, error) {
	p.calls++
	if code != "ok" {
		return model.Profile{}, errs.ErrProvider
	}
	return p.profile, nil
}

// fakeResources records the order of calls so tests can check that the
// guard ran before any write.
type fakeResources struct {
	mu   sync.Mutex
	byID map[uuid.UUID]model.Resource
	log  *[]string
}

var _ repository.ResourceRepository = (*fakeResources)(nil)

func (f *fakeResources) record(s string) {
	if f.log != nil {
		*f.log = append(*f.log, s)
	}
}

func (f *fakeResources) Create(_ context.Context, r *model.Resource) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("repo.create")
	r.CreatedAt = time.Now()
	f.byID[r.ID] = *r
	return nil
}

func (f *fakeResources) Get(_ context.Context, kind model.ResourceKind, id uuid.UUID) (*model.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("repo.get")
	r, ok := f.byID[id]
	if !ok || r.Kind != kind {
		return nil, errs.ErrNotFound
	}
	return &r, nil
}

func (f *fakeResources) List(_ context.Context, flt model.ResourceFilter) ([]model.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Resource
	for _, r := range f.byID {
		if r.Kind == flt.Kind && (flt.OwnerID == uuid.Nil || r.OwnerID == flt.OwnerID) &&
			(flt.Category == "" || r.Category == flt.Category) &&
			strings.Contains(strings.ToLower(r.Name), strings.ToLower(flt.Search)) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeResources) FindByName(_ context.Context, kind model.ResourceKind, name string) (*model.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *model.Resource
	for _, r := range f.byID {
		if r.Kind == kind && strings.EqualFold(r.Name, name) && (best == nil || r.CreatedAt.After(best.CreatedAt)) {
			cp := r
			best = &cp
		}
	}
	if best == nil {
		return nil, errs.ErrNotFound
	}
	return best, nil
}

func (f *fakeResources) Update(_ context.Context, kind model.ResourceKind, id uuid.UUID, p model.ResourcePatch) (*model.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("repo.update")
	r, ok := f.byID[id]
	if !ok || r.Kind != kind {
		return nil, errs.ErrNotFound
	}
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Category != nil {
		r.Category = *p.Category
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	f.byID[id] = r
	return &r, nil
}

func (f *fakeResources) Delete(_ context.Context, kind model.ResourceKind, id uuid.UUID) (*model.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("repo.delete")
	r, ok := f.byID[id]
	if !ok || r.Kind != kind {
		return nil, errs.ErrNotFound
	}
	delete(f.byID, id)
	return &r, nil
}

// loggingGuard wraps a Guard and appends to the shared call log.
type loggingGuard struct {
	Guard
	log *[]string
}

func (g loggingGuard) RequireOwnerOrAdmin(ctx context.Context, id model.Identity, res Owned) error {
	*g.log = append(*g.log, "guard")
	return g.Guard.RequireOwnerOrAdmin(ctx, id, res)
}
