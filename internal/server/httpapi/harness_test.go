package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mmazitov/forksy-backend/internal/errs"
	"github.com/mmazitov/forksy-backend/internal/limiter"
	"github.com/mmazitov/forksy-backend/internal/model"
	"github.com/mmazitov/forksy-backend/internal/oauth"
	"github.com/mmazitov/forksy-backend/internal/service"
	"github.com/mmazitov/forksy-backend/internal/token"
)

type memUsers struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*model.User
}

func newMemUsers() *memUsers { return &memUsers{byID: map[uuid.UUID]*model.User{}} }

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.byID {
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
	u.CreatedAt, u.UpdatedAt = time.Now(), time.Now()
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) find(match func(*model.User) bool) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.ID == id })
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.Email == email })
}

func (m *memUsers) GetByExternalID(_ context.Context, p model.Provider, ext string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.ExternalID(p) == ext })
}

func (m *memUsers) GetRole(ctx context.Context, id uuid.UUID) (model.Role, error) {
	u, err := m.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return u.Role, nil
}

func (m *memUsers) SetPasswordHash(_ context.Context, id uuid.UUID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return errs.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m *memUsers) UpdateProfile(_ context.Context, id uuid.UUID, p model.ProfilePatch) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Avatar != nil {
		u.Avatar = *p.Avatar
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) setRole(id uuid.UUID, r model.Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[id].Role = r
}

type memResources struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*model.Resource
	seq  int
}

func newMemResources() *memResources { return &memResources{rows: map[uuid.UUID]*model.Resource{}} }

func (m *memResources) Create(_ context.Context, r *model.Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	r.CreatedAt = time.Date(2026, 1, 1, 0, 0, m.seq, 0, time.UTC)
	r.UpdatedAt = r.CreatedAt
	cp := *r
	m.rows[r.ID] = &cp
	return nil
}

func (m *memResources) Get(_ context.Context, kind model.ResourceKind, id uuid.UUID) (*model.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.Kind != kind {
		return nil, errs.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memResources) List(_ context.Context, f model.ResourceFilter) ([]model.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Resource
	for _, r := range m.rows {
		if r.Kind == f.Kind && (f.OwnerID == uuid.Nil || r.OwnerID == f.OwnerID) &&
			(f.Category == "" || r.Category == f.Category) &&
			strings.Contains(strings.ToLower(r.Name), strings.ToLower(f.Search)) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memResources) FindByName(_ context.Context, kind model.ResourceKind, name string) (*model.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *model.Resource
	for _, r := range m.rows {
		if r.Kind == kind && strings.EqualFold(r.Name, name) && (best == nil || r.CreatedAt.After(best.CreatedAt)) {
			best = r
		}
	}
	if best == nil {
		return nil, errs.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *memResources) Update(ctx context.Context, kind model.ResourceKind, id uuid.UUID, p model.ResourcePatch) (*model.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
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
	cp := *r
	return &cp, nil
}

func (m *memResources) Delete(_ context.Context, kind model.ResourceKind, id uuid.UUID) (*model.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.Kind != kind {
		return nil, errs.ErrNotFound
	}
	delete(m.rows, id)
	return r, nil
}

// stubIdP accepts the code "good" and rejects anything else.
type stubIdP struct{ name model.Provider }

func (p stubIdP) Name() model.Provider { return p.name }

func (p stubIdP) AuthCodeURL(state string) string {
	return "https://idp.test/authorize?client_id=cid&state=" + state
}

func (p stubIdP) ExchangeCode(_ context.Context, code string) (model.Profile, error) {
	if code != "good" {
		return model.Profile{}, fmt.Errorf("%w: bad code", errs.ErrProvider)
	}
	return model.Profile{ExternalID: "ext-1", Email: "fed@example.com", DisplayName: "Fed"}, nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type testEnv struct {
	h      http.Handler
	tokens *token.Issuer
	users  *memUsers
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	iss, err := token.NewIssuer(token.Config{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
	})
	require.NoError(t, err)

	users := newMemUsers()
	resolver := service.NewIdentityResolver(users)
	guard := service.NewGuard(resolver)
	auth := service.NewAuthService(users, resolver, guard, iss,
		oauth.NewRegistry(stubIdP{name: model.ProviderGoogle}), limiter.Nop{}, service.AuthConfig{Log: zaptest.NewLogger(t)})

	h, err := NewRouter(Deps{
		Auth:      auth,
		Resources: service.NewResourceService(newMemResources(), guard),
		Tokens:    iss,
		DB:        stubPinger{},
		Log:       zaptest.NewLogger(t),
		ClientURL: "https://app.example.com",
	})
	require.NoError(t, err)
	return &testEnv{h: h, tokens: iss, users: users}
}

type gqlError struct {
	Message    string         `json:"message"`
	Extensions map[string]any `json:"extensions"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

func (r gqlResponse) code() string {
	if len(r.Errors) == 0 {
		return ""
	}
	c, _ := r.Errors[0].Extensions["code"].(string)
	return c
}

type reqOpt func(*http.Request)

func withBearer(tok string) reqOpt {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
}

func withCookie(c *http.Cookie) reqOpt {
	return func(r *http.Request) { r.AddCookie(c) }
}

func (e *testEnv) graphql(t *testing.T, query string, vars map[string]any, opts ...reqOpt) (gqlResponse, *http.Response) {
	t.Helper()
	body, err := json.Marshal(map[string]any{"query": query, "variables": vars})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, o := range opts {
		o(req)
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	res := rec.Result()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var out gqlResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return out, res
}

func findCookie(res *http.Response, name string) *http.Cookie {
	for _, c := range res.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

const registerMutation = `mutation($email: String!, $password: String!, $name: String) {
  register(email: $email, password: $password, name: $name) { token user { id email name role } }
}`

type authData struct {
	Token string `json:"token"`
	User  struct {
		ID    string  `json:"id"`
		Email *string `json:"email"`
		Name  *string `json:"name"`
		Role  string  `json:"role"`
	} `json:"user"`
}

// register creates an account and returns its access token, user id and refresh cookie.
func (e *testEnv) register(t *testing.T, email string) (string, uuid.UUID, *http.Cookie) {
	t.Helper()
	out, res := e.graphql(t, registerMutation, map[string]any{
		"email": email, "password": "s3cret-pass", "name": "Tester",
	})
	require.Empty(t, out.Errors)
	var data struct {
		Register authData `json:"register"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &data))
	return data.Register.Token, uuid.FromStringOrNil(data.Register.User.ID), findCookie(res, RefreshCookie)
}
